// Package pipeline implements the document-analysis pipelines: structured
// summarisation, key-point extraction, entity extraction, question answering,
// and report generation. Long documents are split into token-bounded chunks,
// each chunk is processed with one model call, and a task-specific merge
// policy folds the partial results back together.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/robertvmill/inference-backend/internal/research/progress"
	"github.com/robertvmill/inference-backend/internal/research/token"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/metrics"
)

// chunkSeparator joins chunk texts when the processed document is handed to
// a single model pass (entity extraction, report body).
const chunkSeparator = "\n==========\n"

// LLM is the language-model collaborator: one call, one generated text.
type LLM interface {
	Chat(ctx context.Context, model string, messages []llm.Message, temperature float64) (string, error)
}

// Config selects the model tier per task class and the chunking thresholds.
type Config struct {
	FastModel      string
	StrongModel    string
	MaxChunkTokens int
	ChunkThreshold int
}

// Pipeline runs the analysis pipelines. Chunk calls within one run are
// strictly sequential; concurrency happens across requests, not chunks.
type Pipeline struct {
	llm     LLM
	chunker *token.Chunker
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Pipeline. Metrics may be nil (tests).
func New(model LLM, chunker *token.Chunker, cfg Config, m *metrics.Metrics) *Pipeline {
	if cfg.MaxChunkTokens <= 0 {
		cfg.MaxChunkTokens = 2000
	}
	if cfg.ChunkThreshold <= 0 {
		cfg.ChunkThreshold = 3000
	}
	return &Pipeline{
		llm:     model,
		chunker: chunker,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "pipeline"),
	}
}

// splitDocument applies the threshold policy: documents at or below the
// threshold stay whole and skip the merge stage.
func (p *Pipeline) splitDocument(content string) []string {
	chunks := p.chunker.SplitThreshold(content, p.cfg.ChunkThreshold, p.cfg.MaxChunkTokens)
	if p.metrics != nil {
		p.metrics.ChunksPerDocument.Observe(float64(len(chunks)))
	}
	return chunks
}

// chat issues one model call and records per-task metrics.
func (p *Pipeline) chat(ctx context.Context, task, model string, messages []llm.Message, temperature float64) (string, error) {
	start := time.Now()
	out, err := p.llm.Chat(ctx, model, messages, temperature)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.ModelCallsTotal.WithLabelValues(task, model, status).Inc()
		p.metrics.ModelCallDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	}
	return out, err
}

// observeRun records a completed top-level pipeline run.
func (p *Pipeline) observeRun(name string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.PipelineRunsTotal.WithLabelValues(name, status).Inc()
	p.metrics.PipelineDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// setProgress forwards an update to the run's tracker, if any. Q&A runs
// carry no tracker.
func setProgress(tr *progress.Tracker, percent int, status string) {
	if tr != nil {
		tr.Set(percent, status)
	}
}

// joinChunks rebuilds the processed text for single-pass tasks.
func joinChunks(chunks []string) string {
	if len(chunks) == 1 {
		return chunks[0]
	}
	return strings.Join(chunks, chunkSeparator)
}
