package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/progress"
	"github.com/robertvmill/inference-backend/internal/research/prompt"
	"github.com/robertvmill/inference-backend/pkg/errors"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/logger"
	"github.com/robertvmill/inference-backend/pkg/tracing"
)

// ProcessDocument runs the upload pipeline: chunk, summarise, extract key
// points and entities, and assemble a Summary. Progress is reported on tr
// through the fixed 0→100 stages.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc research.Document, tr *progress.Tracker) (research.Summary, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "upload-pipeline", logger.RequestIDFromContext(ctx))
	var err error
	defer func() {
		span.End()
		span.Log()
		p.observeRun("upload", start, err)
	}()

	setProgress(tr, 0, "Starting document analysis...")
	p.logger.Info("processing document", "title", doc.Title, "type", doc.Type)

	setProgress(tr, 10, "Processing content...")
	chunks := p.splitDocument(doc.Content)
	span.SetAttr("chunks", len(chunks))

	setProgress(tr, 20, "Generating summary...")
	summaryText, err := p.summarize(ctx, chunks, tr)
	if err != nil {
		return research.Summary{}, err
	}

	setProgress(tr, 50, "Extracting key points...")
	keyPoints, err := p.extractKeyPoints(ctx, chunks)
	if err != nil {
		return research.Summary{}, err
	}

	setProgress(tr, 80, "Extracting entities...")
	entities := p.ExtractEntities(ctx, joinChunks(chunks))

	setProgress(tr, 100, "Analysis complete!")

	return research.Summary{
		Title:     doc.Title,
		Summary:   summaryText,
		KeyPoints: keyPoints,
		Entities:  entities,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SourceURL: doc.URL,
		EventDate: doc.Date,
	}, nil
}

// summarize produces the structured summary. A single chunk gets one direct
// call; multiple chunks get one call each followed by a reconciliation pass
// that deduplicates and reorganises under the final heading set. A failed
// chunk call contributes nothing and does not abort the run.
func (p *Pipeline) summarize(ctx context.Context, chunks []string, tr *progress.Tracker) (string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "summarize")
	defer span.End()

	if len(chunks) == 1 {
		out, err := p.chat(ctx, "summarize", p.cfg.StrongModel, []llm.Message{
			llm.System(prompt.DirectSummarySystem),
			llm.User(chunks[0]),
		}, 0.5)
		if err != nil {
			return "", fmt.Errorf("generating summary: %w", err)
		}
		return out, nil
	}

	// 60% of the progress bar is spread across the chunk passes.
	chunkProgress := 60.0 / float64(len(chunks)*3)

	sections := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		setProgress(tr, 20+int(float64(i+1)*chunkProgress),
			fmt.Sprintf("Generating summary for section %d/%d...", i+1, len(chunks)))

		out, err := p.chat(ctx, "summarize_chunk", p.cfg.StrongModel, []llm.Message{
			llm.System(prompt.ChunkSummarySystem),
			llm.User(chunk),
		}, 0.5)
		if err != nil {
			p.logger.Error("chunk summary failed, skipping chunk",
				"chunk", i+1, "total", len(chunks), "error", err)
			continue
		}
		sections = append(sections, out)
	}

	if len(sections) == 0 {
		return "", errors.New(errors.ErrUpstreamModel, 500, "every chunk summary call failed")
	}

	setProgress(tr, 40, "Combining summaries...")
	out, err := p.chat(ctx, "merge_summary", p.cfg.StrongModel, []llm.Message{
		llm.System(prompt.FinalSummarySystem),
		llm.User(strings.Join(sections, "\n\n")),
	}, 0.5)
	if err != nil {
		return "", fmt.Errorf("combining chunk summaries: %w", err)
	}
	return out, nil
}
