// Package middleware holds API-specific HTTP middleware.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/robertvmill/inference-backend/pkg/config"
)

const corsMaxAge = 86400 // seconds

// CORS returns middleware that sets CORS response headers for the configured
// frontend origins and answers preflight OPTIONS requests.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join([]string{"GET", "POST", "OPTIONS"}, ", ")
	headers := strings.Join([]string{"Content-Type", "X-Request-ID"}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !originAllowed(cfg.AllowOrigins, origin) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", headers)
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
