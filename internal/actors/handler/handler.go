// Package handler exposes actor record administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/httputil"
	"casetrace/pkg/requestcontext"
)

// Service defines the actor operations the handler needs.
type Service interface {
	Verify(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error)
	Get(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error)
}

// ActorResponse is the external representation of an actor record.
type ActorResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"`
	Verified   bool       `json:"verified"`
	VerifiedBy string     `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toActorResponse(rec *domain.ActorRecord) ActorResponse {
	resp := ActorResponse{
		ID:         rec.ID.String(),
		Name:       rec.Name,
		Role:       rec.Role.String(),
		Verified:   rec.Verified,
		VerifiedAt: rec.VerifiedAt,
		CreatedAt:  rec.CreatedAt,
	}
	if rec.VerifiedBy != nil {
		resp.VerifiedBy = rec.VerifiedBy.String()
	}
	return resp
}

// Handler handles actor administration endpoints.
type Handler struct {
	actors Service
	logger *slog.Logger
}

// New creates an actors Handler.
func New(actors Service, logger *slog.Logger) *Handler {
	return &Handler{actors: actors, logger: logger}
}

// Register registers the actor routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/actors/{actorID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/verify", h.handleVerify)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.withActor(w, r, h.actors.Verify)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withActor(w, r, h.actors.Get)
}

func (h *Handler) withActor(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error)) {
	ctx := r.Context()
	caller := requestcontext.Actor(ctx)

	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := fn(ctx, actorID)
	if err != nil {
		httputil.WriteErrorFor(w, caller, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toActorResponse(rec))
}
