package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"casetrace/pkg/requestcontext"
)

// RequestIDHeader is the header clients may use to carry their own
// correlation id; one is minted when absent.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a correlation id to the request context and echoes it
// on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), rid)))
	})
}
