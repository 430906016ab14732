// Package handler exposes the match review workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casetrace/internal/domain"
	"casetrace/internal/review"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/httputil"
	"casetrace/pkg/requestcontext"
)

// Service defines the review operations the handler needs.
type Service interface {
	Submit(ctx context.Context, input review.CandidateInput) (*domain.MatchCandidate, error)
	ListCandidates(ctx context.Context, num id.CaseNumber) ([]review.CandidateView, error)
	Decide(ctx context.Context, matchID id.MatchID, decision domain.Decision, note string) (*domain.MatchCandidate, error)
}

// SubmitCandidateRequest is the admin-facing manual candidate entry payload.
type SubmitCandidateRequest struct {
	ExternalRef string  `json:"external_ref"`
	SubjectRef  string  `json:"subject_ref"`
	RawScore    float64 `json:"raw_score"`
}

// DecisionRequest carries a reviewer verdict.
type DecisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// CandidateResponse is the external representation of a match candidate.
// Tier is derived from the raw score on every read.
type CandidateResponse struct {
	MatchID     string     `json:"match_id"`
	CaseNumber  string     `json:"case_number"`
	ExternalRef string     `json:"external_ref"`
	SubjectRef  string     `json:"subject_ref"`
	RawScore    float64    `json:"raw_score"`
	Tier        string     `json:"tier"`
	Decision    string     `json:"decision"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toCandidateResponse(c *domain.MatchCandidate, tier string) CandidateResponse {
	resp := CandidateResponse{
		MatchID:     c.ID.String(),
		CaseNumber:  c.CaseNumber.String(),
		ExternalRef: c.ExternalRef,
		SubjectRef:  c.SubjectRef,
		RawScore:    c.RawScore,
		Tier:        tier,
		Decision:    c.Decision.String(),
		DecidedAt:   c.DecidedAt,
		CreatedAt:   c.CreatedAt,
	}
	if c.DecidedBy != nil {
		resp.DecidedBy = c.DecidedBy.String()
	}
	return resp
}

// Handler handles match review endpoints.
type Handler struct {
	review Service
	logger *slog.Logger
}

// New creates a review Handler.
func New(review Service, logger *slog.Logger) *Handler {
	return &Handler{review: review, logger: logger}
}

// Register registers the review routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cases/{caseNumber}/candidates", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleSubmit)
	})
	r.Post("/matches/{matchID}/decision", h.handleDecide)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	num, err := id.ParseCaseNumber(chi.URLParam(r, "caseNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[SubmitCandidateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cand, err := h.review.Submit(ctx, review.CandidateInput{
		CaseNumber:  num,
		ExternalRef: req.ExternalRef,
		SubjectRef:  req.SubjectRef,
		RawScore:    req.RawScore,
	})
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	tier, err := cand.Tier()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCandidateResponse(cand, string(tier)))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	num, err := id.ParseCaseNumber(chi.URLParam(r, "caseNumber"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views, err := h.review.ListCandidates(ctx, num)
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	out := make([]CandidateResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toCandidateResponse(v.Candidate, string(v.Tier)))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	matchID, err := id.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.Decode[DecisionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	decision, err := domain.ParseDecision(req.Decision)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cand, err := h.review.Decide(ctx, matchID, decision, req.Note)
	if err != nil {
		httputil.WriteErrorFor(w, actor, err)
		return
	}
	tier, err := cand.Tier()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCandidateResponse(cand, string(tier)))
}
