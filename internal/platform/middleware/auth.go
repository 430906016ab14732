package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/httputil"
	"casetrace/pkg/requestcontext"
)

// Claims is the token payload the external authentication system mints.
// Subject carries the actor id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HMAC-signed tokens from the authentication system
// and maps their claims onto an Actor.
type TokenValidator struct {
	key []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{key: []byte(signingKey)}
}

// Validate parses and verifies a token. The resulting actor carries no
// verification flag; that is portal state resolved separately.
func (v *TokenValidator) Validate(tokenString string) (id.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.Newf(dErrors.CodeUnauthorized, "unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return id.Actor{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
	}

	actorID, err := id.ParseActorID(claims.Subject)
	if err != nil {
		return id.Actor{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not an actor id")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return id.Actor{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token carries an unsupported role")
	}
	return id.Actor{ID: actorID, Name: claims.Name, Role: role}, nil
}

// ActorResolver overlays portal state (police verification) on the token
// identity.
type ActorResolver interface {
	Resolve(ctx context.Context, actor id.Actor) (id.Actor, error)
}

// Authenticate requires a bearer token on every request, resolves the actor
// through the portal's records, and stores it in the request context.
func Authenticate(validator *TokenValidator, resolver ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "missing bearer token",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			actor, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "token rejected",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			actor, err = resolver.Resolve(ctx, actor)
			if err != nil {
				logger.ErrorContext(ctx, "actor resolution failed",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "actor records unavailable"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
