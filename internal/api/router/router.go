// Package router wires up the API routes and applies the middleware chain
// (RequestID → CORS → Metrics).
package router

import (
	"net/http"
	"time"

	apihandler "github.com/robertvmill/inference-backend/internal/api/handler"
	apimw "github.com/robertvmill/inference-backend/internal/api/middleware"
	"github.com/robertvmill/inference-backend/pkg/config"
	"github.com/robertvmill/inference-backend/pkg/health"
	"github.com/robertvmill/inference-backend/pkg/metrics"
	pkgmw "github.com/robertvmill/inference-backend/pkg/middleware"
)

// New builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/research/upload           → analyze document
//	POST   /api/research/question         → answer question (deduplicated)
//	POST   /api/research/generate-report  → generate and save report
//	GET    /api/research/progress         → SSE stream, latest run
//	GET    /api/research/progress/{id}    → SSE stream, one run
//	GET    /api/reports                   → list saved reports
//	GET    /api/reports/{id}              → get saved report
//	GET    /api/financial-metrics         → cached watchlist metrics
//	GET    /api/tech-events               → curated feed
//	GET    /api/regulatory                → curated feed
//	GET    /api/product-news              → curated feed
//	GET    /health                        → liveness
//	GET    /ready                         → dependency readiness
//
// Pipeline routes run for as long as their model calls take, so the timeout
// middleware wraps only the quick read-side routes.
func New(h *apihandler.Handler, checker *health.Checker, m *metrics.Metrics, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	quick := pkgmw.Timeout(15 * time.Second)

	// Health (no middleware concerns beyond the shared chain)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /ready", checker.ReadyHandler())

	// Research pipelines
	mux.HandleFunc("POST /api/research/upload", h.UploadDocument)
	mux.HandleFunc("POST /api/research/question", h.AskQuestion)
	mux.HandleFunc("POST /api/research/generate-report", h.GenerateReport)
	mux.HandleFunc("GET /api/research/progress", h.ProgressStream)
	mux.HandleFunc("GET /api/research/progress/{id}", h.ProgressStream)

	// Saved reports
	mux.Handle("GET /api/reports", quick(http.HandlerFunc(h.ListReports)))
	mux.Handle("GET /api/reports/{id}", quick(http.HandlerFunc(h.GetReport)))

	// Market data and curated feeds
	mux.Handle("GET /api/financial-metrics", quick(http.HandlerFunc(h.FinancialMetrics)))
	mux.Handle("GET /api/tech-events", quick(http.HandlerFunc(h.TechEvents)))
	mux.Handle("GET /api/regulatory", quick(http.HandlerFunc(h.RegulatoryUpdates)))
	mux.Handle("GET /api/product-news", quick(http.HandlerFunc(h.ProductNews)))

	// Middleware chain — applied inside-out:
	// request → RequestID → CORS → Metrics → mux
	var chain http.Handler = mux
	chain = pkgmw.Metrics(m)(chain)
	chain = apimw.CORS(cfg.CORS)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
