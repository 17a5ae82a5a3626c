package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds a handler's execution. It wraps the quick read-side routes
// (reports, market data, feeds); pipeline routes stay unwrapped because
// their model calls legitimately run for minutes.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			done := make(chan struct{})
			tw := &trackedWriter{ResponseWriter: w}
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				// Only respond if the handler has not started writing.
				if !tw.started() {
					slog.Warn("request timed out",
						"method", r.Method, "path", r.URL.Path, "limit", limit)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timed out"}`))
				}
			}
		})
	}
}

// trackedWriter remembers whether the wrapped handler produced any output.
type trackedWriter struct {
	http.ResponseWriter
	mu    sync.Mutex
	wrote bool
}

func (tw *trackedWriter) WriteHeader(code int) {
	tw.mu.Lock()
	tw.wrote = true
	tw.mu.Unlock()
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackedWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	tw.wrote = true
	tw.mu.Unlock()
	return tw.ResponseWriter.Write(b)
}

func (tw *trackedWriter) started() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.wrote
}
