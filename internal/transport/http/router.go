// Package httptransport assembles the portal's HTTP surface: middleware
// stack, module handlers, health, and metrics exposition.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"casetrace/internal/platform/metrics"
	"casetrace/internal/platform/middleware"
	platformredis "casetrace/internal/platform/redis"
	"casetrace/pkg/platform/httputil"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// Pinger is anything the health endpoint should probe. *sql.DB satisfies
// it directly.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator *middleware.TokenValidator
	Resolver  middleware.ActorResolver

	// Handlers are mounted under the authenticated API group.
	Handlers []Registrar

	// Redis is probed by /healthz when configured.
	Redis *platformredis.Client
	// DB is probed by /healthz when the postgres stores are active.
	DB Pinger
}

// NewRouter builds the full route tree. /healthz and /metrics are open;
// everything else requires a bearer token.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", handleHealth(deps))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Validator, deps.Resolver, deps.Logger))
		for _, h := range deps.Handlers {
			h.Register(r)
		}
	})
	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if deps.DB != nil {
			checks["postgres"] = "ok"
			if err := deps.DB.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if deps.Redis != nil {
			checks["redis"] = "ok"
			if err := deps.Redis.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
