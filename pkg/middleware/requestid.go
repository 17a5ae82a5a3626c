package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/robertvmill/inference-backend/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries an id: an incoming X-Request-ID
// header is reused, otherwise a fresh UUID is generated. The id is echoed
// on the response and stored in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
