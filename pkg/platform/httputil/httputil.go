// Package httputil centralizes JSON encoding and domain error translation so
// every handler produces the same envelopes.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the standard error envelope.
// Internal errors omit the description so infrastructure detail never leaks.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// WriteErrorFor writes an error shaped for the caller's role. Citizens get
// generic envelopes ("not found", "not permitted") with no internal reason
// codes; police and admin surfaces keep the distinguishing code so a
// double-submission is not confused with active invalidity.
func WriteErrorFor(w http.ResponseWriter, actor domain.Actor, err error) {
	if actor.Role != domain.RoleCitizen {
		WriteError(w, err)
		return
	}
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeNotFound:
		WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":             "not_found",
			"error_description": "case not found",
		})
	case dErrors.CodeForbidden, dErrors.CodeUnverifiedActor,
		dErrors.CodeInvalidTransition, dErrors.CodeAlreadyDecided:
		WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":             "forbidden",
			"error_description": "action not permitted",
		})
	default:
		WriteError(w, err)
	}
}

// Decode parses a JSON request body into T, logging and answering the request
// itself on failure. Returns false when the caller should stop.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}
