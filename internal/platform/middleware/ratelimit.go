package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	platformredis "casetrace/internal/platform/redis"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/httputil"
	"casetrace/pkg/requestcontext"
)

// reportWindow is the fixed window for the report submission limiter.
const reportWindow = time.Minute

// ReportLimiter throttles case submissions per actor using a fixed redis
// window. It fails open: a redis outage must never block a missing-person
// report.
type ReportLimiter struct {
	client *platformredis.Client
	limit  int
	logger *slog.Logger
}

func NewReportLimiter(client *platformredis.Client, limit int, logger *slog.Logger) *ReportLimiter {
	return &ReportLimiter{client: client, limit: limit, logger: logger}
}

// allow reports whether the actor is under the window's limit.
func (l *ReportLimiter) allow(ctx context.Context, actorID string) bool {
	if l.client == nil || l.limit <= 0 {
		return true
	}
	key := "casetrace:reports:" + actorID
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, failing open", "error", err)
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, reportWindow).Err(); err != nil {
			l.logger.WarnContext(ctx, "rate limiter expire failed", "error", err)
		}
	}
	return count <= int64(l.limit)
}

// Limit is the middleware form, applied to the report submission route.
func (l *ReportLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := requestcontext.Actor(ctx)
		if !actor.IsZero() && !l.allow(ctx, actor.ID.String()) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many reports, try again shortly"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
