// Package handler implements the HTTP endpoints of the inference backend:
// document upload, question answering, report generation and retrieval,
// stock metrics, the curated news feed, and the SSE progress stream.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/robertvmill/inference-backend/internal/events"
	"github.com/robertvmill/inference-backend/internal/market"
	"github.com/robertvmill/inference-backend/internal/newsfeed"
	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/pending"
	"github.com/robertvmill/inference-backend/internal/research/progress"
	apperrors "github.com/robertvmill/inference-backend/pkg/errors"
	"github.com/robertvmill/inference-backend/pkg/metrics"
)

// Pipeline runs the document-analysis pipelines.
type Pipeline interface {
	ProcessDocument(ctx context.Context, doc research.Document, tr *progress.Tracker) (research.Summary, error)
	Answer(ctx context.Context, q research.Question) (string, error)
	GenerateReport(ctx context.Context, doc research.Document, tr *progress.Tracker) (research.Report, error)
}

// MarketService serves the cached watchlist metrics.
type MarketService interface {
	Metrics(ctx context.Context) ([]market.Metric, error)
}

// ReportStore persists generated reports.
type ReportStore interface {
	Insert(ctx context.Context, r research.Report) (research.Report, error)
	Get(ctx context.Context, id string) (research.Report, error)
	List(ctx context.Context, limit, offset int) ([]research.Report, error)
}

// Handler implements the backend's HTTP endpoints.
type Handler struct {
	pipeline Pipeline
	pending  *pending.Store
	runs     *progress.Registry
	market   MarketService
	reports  ReportStore
	events   *events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Handler. reports may be nil (no report storage configured),
// events may be nil (publishing disabled), and m may be nil (tests).
func New(p Pipeline, pend *pending.Store, runs *progress.Registry, mkt MarketService, reports ReportStore, ev *events.Publisher, m *metrics.Metrics) *Handler {
	return &Handler{
		pipeline: p,
		pending:  pend,
		runs:     runs,
		market:   mkt,
		reports:  reports,
		events:   ev,
		metrics:  m,
		logger:   slog.Default().With("component", "api-handler"),
	}
}

// ---------- Research pipeline handlers ----------

// UploadDocument analyzes a submitted document and returns its structured
// summary. Progress is streamed under the document's progress id (server
// assigned when absent); on failure the run's tracker is failed so open
// streams terminate.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	var doc research.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if doc.Content == "" {
		h.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if doc.ProgressID == "" {
		doc.ProgressID = uuid.NewString()
	}

	tr := h.runs.Start(doc.ProgressID)
	summary, err := h.pipeline.ProcessDocument(r.Context(), doc, tr)
	if err != nil {
		tr.Fail("Analysis failed")
		h.logger.Error("document analysis failed", "title", doc.Title, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	h.events.Emit(events.TypeDocumentProcessed, map[string]any{
		"title":      doc.Title,
		"type":       doc.Type,
		"key_points": len(summary.KeyPoints),
		"entities":   len(summary.Entities),
	})
	h.writeJSON(w, http.StatusOK, summary)
}

// AskQuestion answers a question about a document, deduplicating by question
// id: a repeated submission while the first is still running gets Status
// "processing" immediately, and the next fetch after completion consumes the
// stored answer.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	var q research.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if q.Question == "" || q.DocumentContent == "" {
		h.writeError(w, http.StatusBadRequest, "question and document_content are required")
		return
	}
	if q.QuestionID == "" {
		q.QuestionID = uuid.NewString()
	}

	answer, err := h.pending.Resolve(r.Context(), q.QuestionID, func(ctx context.Context) (string, error) {
		return h.pipeline.Answer(ctx, q)
	})
	if err != nil {
		// The error entry stays stored for a later fetch; this submission
		// still reports the failure.
		h.logger.Error("question answering failed", "question_id", q.QuestionID, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	if answer.Status == pending.StatusComplete {
		h.events.Emit(events.TypeQuestionAnswered, map[string]any{
			"question_id": q.QuestionID,
		})
	}
	h.writeJSON(w, http.StatusOK, answer)
}

// GenerateReport runs the report pipeline and persists the result, returning
// the stored report with its server-assigned id.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		return
	}

	var doc research.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if doc.Content == "" {
		h.writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if doc.ProgressID == "" {
		doc.ProgressID = uuid.NewString()
	}

	tr := h.runs.Start(doc.ProgressID)
	report, err := h.pipeline.GenerateReport(r.Context(), doc, tr)
	if err != nil {
		tr.Fail("Report generation failed")
		h.logger.Error("report generation failed", "title", doc.Title, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	tr.Set(90, "Saving report...")
	saved, err := h.reports.Insert(r.Context(), report)
	if err != nil {
		tr.Fail("Report generation failed")
		h.logger.Error("report save failed", "title", doc.Title, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	tr.Set(100, "Report generation complete!")

	if h.metrics != nil {
		h.metrics.ReportsSavedTotal.Inc()
	}
	h.events.Emit(events.TypeReportSaved, map[string]any{
		"report_id": saved.ID,
		"title":     saved.Title,
	})
	h.writeJSON(w, http.StatusOK, saved)
}

// ---------- Progress streaming ----------

// ProgressStream streams a run's progress as server-sent events. With a path
// id the stream follows that run; without one it follows the most recently
// started run. The stream ends when the run completes, fails, or the client
// disconnects.
func (h *Handler) ProgressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var (
		tr    *progress.Tracker
		found bool
	)
	if id := r.PathValue("id"); id != "" {
		tr, found = h.runs.Get(id)
		if !found {
			h.writeError(w, http.StatusNotFound, "no run with that progress id")
			return
		}
	} else {
		tr, found = h.runs.Latest()
		if !found {
			h.writeError(w, http.StatusNotFound, "no runs in progress")
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.ProgressStreams.Inc()
		defer h.metrics.ProgressStreams.Dec()
	}

	updates, cancel := tr.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case u, open := <-updates:
			if !open {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ---------- Reports ----------

// ListReports returns saved reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		return
	}

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	list, err := h.reports.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing reports failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to list reports")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reports": list,
		"count":   len(list),
		"limit":   limit,
		"offset":  offset,
	})
}

// GetReport returns one saved report by id.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		h.writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "report id is required")
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusNotFound {
			h.writeError(w, status, "report not found")
			return
		}
		h.logger.Error("loading report failed", "report_id", id, "error", err)
		h.writeError(w, status, "failed to load report")
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// ---------- Market & news feed ----------

// FinancialMetrics serves the cached watchlist stock metrics.
func (h *Handler) FinancialMetrics(w http.ResponseWriter, r *http.Request) {
	ms, err := h.market.Metrics(r.Context())
	if err != nil {
		h.logger.Error("fetching financial metrics failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to fetch financial metrics")
		return
	}
	h.writeJSON(w, http.StatusOK, ms)
}

// TechEvents serves the curated tech-event feed.
func (h *Handler) TechEvents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newsfeed.TechEvents())
}

// RegulatoryUpdates serves the curated regulatory feed.
func (h *Handler) RegulatoryUpdates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newsfeed.RegulatoryUpdates())
}

// ProductNews serves the curated product-news feed.
func (h *Handler) ProductNews(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newsfeed.ProductUpdates())
}

// ---------- Health ----------

// Health returns liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "inference-backend"})
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
