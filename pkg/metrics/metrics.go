// Package metrics defines the Prometheus metric collectors used across the
// backend and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the backend.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ModelCallsTotal      *prometheus.CounterVec
	ModelCallDuration    *prometheus.HistogramVec
	PipelineRunsTotal    *prometheus.CounterVec
	PipelineDuration     *prometheus.HistogramVec
	ChunksPerDocument    prometheus.Histogram
	QuoteCacheHitsTotal  prometheus.Counter
	QuoteCacheMissTotal  prometheus.Counter
	QuoteFetchesTotal    *prometheus.CounterVec
	PendingAnswers       prometheus.Gauge
	ProgressStreams      prometheus.Gauge
	ReportsSavedTotal    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_calls_total",
				Help: "Total language-model calls by task, model, and status.",
			},
			[]string{"task", "model", "status"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_call_duration_seconds",
				Help:    "Language-model call latency in seconds.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"task"},
		),
		PipelineRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_runs_total",
				Help: "Total pipeline runs by pipeline (upload, question, report) and status.",
			},
			[]string{"pipeline", "status"},
		),
		PipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_duration_seconds",
				Help:    "End-to-end pipeline latency in seconds.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"pipeline"},
		),
		ChunksPerDocument: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chunks_per_document",
				Help:    "Number of token chunks per processed document.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
		QuoteCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quote_cache_hits_total",
				Help: "Total market-quote cache hits.",
			},
		),
		QuoteCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quote_cache_misses_total",
				Help: "Total market-quote cache misses.",
			},
		),
		QuoteFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_fetches_total",
				Help: "Total upstream market-data batch fetches by status.",
			},
			[]string{"status"},
		),
		PendingAnswers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_answers",
				Help: "Number of entries currently held in the pending-answer store.",
			},
		),
		ProgressStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "progress_streams",
				Help: "Number of open progress SSE subscriptions.",
			},
		),
		ReportsSavedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reports_saved_total",
				Help: "Total reports persisted to PostgreSQL.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ModelCallsTotal,
		m.ModelCallDuration,
		m.PipelineRunsTotal,
		m.PipelineDuration,
		m.ChunksPerDocument,
		m.QuoteCacheHitsTotal,
		m.QuoteCacheMissTotal,
		m.QuoteFetchesTotal,
		m.PendingAnswers,
		m.ProgressStreams,
		m.ReportsSavedTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
