// Package domainerrors defines the coded error type returned across the
// service boundary. Handlers translate codes to HTTP statuses; services and
// stores never return unstructured errors to transport.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class. Codes are part of the API surface: the
// police/admin dashboards branch on them, so renaming one is a breaking change.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeRateLimited  Code = "rate_limited"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"

	// Case lifecycle codes.
	CodeInvalidTransition Code = "invalid_transition"
	CodeAuditWriteFailed  Code = "audit_write_failed"

	// Match review codes.
	CodeInvalidScore       Code = "invalid_score"
	CodeAlreadyDecided     Code = "already_decided"
	CodeDuplicateCandidate Code = "duplicate_candidate"

	// Authorization codes. CodeUnverifiedActor means "pending approval";
	// CodeForbidden means "not permitted at all". Callers must surface the
	// two differently.
	CodeForbidden       Code = "forbidden"
	CodeUnverifiedActor Code = "unverified_actor"
)

// Error carries a code, a caller-safe message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error with a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable via errors.Is/As for sentinel checks.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// so unexpected errors never leak detail to callers.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// MessageOf extracts the caller-safe message, empty for non-coded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// httpStatuses maps codes to HTTP statuses once, so every handler agrees.
var httpStatuses = map[Code]int{
	CodeBadRequest:         http.StatusBadRequest,
	CodeInvalidInput:       http.StatusBadRequest,
	CodeInvalidScore:       http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeUnverifiedActor:    http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeRateLimited:        http.StatusTooManyRequests,
	CodeInvalidTransition:  http.StatusConflict,
	CodeAlreadyDecided:     http.StatusConflict,
	CodeDuplicateCandidate: http.StatusConflict,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeAuditWriteFailed:   http.StatusServiceUnavailable,
	CodeInternal:           http.StatusInternalServerError,
}

// ToHTTPStatus maps a code to its HTTP status, defaulting to 500.
func ToHTTPStatus(code Code) int {
	if status, ok := httpStatuses[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
