// Package handler exposes the case lifecycle over HTTP. Handlers stay thin:
// parse, call the service, translate the result. All policy lives in the
// service and the capability table.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"casetrace/internal/cases"
	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/httputil"
	"casetrace/pkg/requestcontext"
)

// Service defines the case lifecycle operations the handler needs.
type Service interface {
	CreateReport(ctx context.Context, subject domain.SubjectProfile, reporterName, reporterPhone string) (*domain.Case, error)
	Verify(ctx context.Context, num id.CaseNumber) (*domain.Case, error)
	Reject(ctx context.Context, num id.CaseNumber, reason string) (*domain.Case, error)
	Close(ctx context.Context, num id.CaseNumber, reason string) (*domain.Case, error)
	Get(ctx context.Context, num id.CaseNumber) (*domain.Case, error)
	List(ctx context.Context) ([]*domain.Case, error)
	History(ctx context.Context, num id.CaseNumber) ([]domain.AuditEntry, error)
	CheckConsistency(ctx context.Context, num id.CaseNumber) (cases.ConsistencyReport, error)
}

// Handler handles case lifecycle endpoints.
type Handler struct {
	cases       Service
	logger      *slog.Logger
	limitCreate func(http.Handler) http.Handler
}

// New creates a case Handler.
func New(cases Service, logger *slog.Logger) *Handler {
	return &Handler{cases: cases, logger: logger}
}

// WithReportLimiter throttles the report submission route with the given
// middleware. The other routes are never limited.
func (h *Handler) WithReportLimiter(mw func(http.Handler) http.Handler) *Handler {
	h.limitCreate = mw
	return h
}

// Register registers the case routes with the chi router. Authentication
// middleware is applied by the transport layer, not here.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases", func(r chi.Router) {
		if h.limitCreate != nil {
			r.With(h.limitCreate).Post("/", h.handleCreate)
		} else {
			r.Post("/", h.handleCreate)
		}
		r.Get("/", h.handleList)
		r.Route("/{caseNumber}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/verify", h.handleVerify)
			r.Post("/reject", h.handleReject)
			r.Post("/close", h.handleClose)
			r.Get("/history", h.handleHistory)
			r.Get("/consistency", h.handleConsistency)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	req, ok := httputil.Decode[CreateCaseRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	subject := domain.SubjectProfile{
		Name:             req.Subject.Name,
		BirthYear:        req.Subject.BirthYear,
		Gender:           req.Subject.Gender,
		LastSeenLocation: req.Subject.LastSeenLocation,
		LastSeenAt:       req.Subject.LastSeenAt,
	}
	c, err := h.cases.CreateReport(ctx, subject, req.Reporter.Name, req.Reporter.Phone)
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	cs, err := h.cases.List(ctx)
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cases": toCaseResponses(cs)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		c, err := h.cases.Get(ctx, num)
		if err != nil {
			return nil, err
		}
		return toCaseResponse(c), nil
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		c, err := h.cases.Verify(ctx, num)
		if err != nil {
			return nil, err
		}
		return toCaseResponse(c), nil
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		c, err := h.cases.Reject(ctx, num, req.Reason)
		if err != nil {
			return nil, err
		}
		return toCaseResponse(c), nil
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		c, err := h.cases.Close(ctx, num, req.Reason)
		if err != nil {
			return nil, err
		}
		return toCaseResponse(c), nil
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		entries, err := h.cases.History(ctx, num)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": toAuditResponses(entries)}, nil
	})
}

func (h *Handler) handleConsistency(w http.ResponseWriter, r *http.Request) {
	h.withCase(w, r, func(ctx context.Context, num id.CaseNumber) (any, error) {
		report, err := h.cases.CheckConsistency(ctx, num)
		if err != nil {
			return nil, err
		}
		return ConsistencyResponse{
			CaseNumber: report.CaseNumber.String(),
			Stored:     report.Stored.String(),
			Replayed:   report.Replayed.String(),
			Consistent: report.Consistent,
		}, nil
	})
}

// withCase parses the case number from the URL and runs the operation,
// translating errors through the role-aware envelope writer.
func (h *Handler) withCase(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, num id.CaseNumber) (any, error)) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	num, err := id.ParseCaseNumber(chi.URLParam(r, "caseNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, err := fn(ctx, num)
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}
