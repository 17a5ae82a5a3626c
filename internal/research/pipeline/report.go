package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/progress"
	"github.com/robertvmill/inference-backend/internal/research/prompt"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/logger"
	"github.com/robertvmill/inference-backend/pkg/tracing"
)

// GenerateReport builds a full HTML report for the document: structured
// summary, report-grade key points, entities, and the rendered report body.
// The returned Report carries no id or creation time; persistence assigns
// both. Progress stops at 80 here so the caller can report the save step.
func (p *Pipeline) GenerateReport(ctx context.Context, doc research.Document, tr *progress.Tracker) (research.Report, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "report-pipeline", logger.RequestIDFromContext(ctx))
	var err error
	defer func() {
		span.End()
		span.Log()
		p.observeRun("report", start, err)
	}()

	setProgress(tr, 0, "Starting report generation...")
	p.logger.Info("generating report", "title", doc.Title)

	chunks := p.splitDocument(doc.Content)
	span.SetAttr("chunks", len(chunks))
	content := joinChunks(chunks)

	setProgress(tr, 20, "Generating summary...")
	summary, err := p.summarize(ctx, chunks, nil)
	if err != nil {
		return research.Report{}, err
	}

	setProgress(tr, 40, "Extracting key points...")
	kpOut, err := p.chat(ctx, "report_key_points", p.cfg.StrongModel, []llm.Message{
		llm.System(prompt.ReportKeyPointsSystem),
		llm.User(content),
	}, 0.3)
	if err != nil {
		err = fmt.Errorf("extracting report key points: %w", err)
		return research.Report{}, err
	}
	keyPoints := splitBulletLines(kpOut)

	setProgress(tr, 60, "Extracting entities...")
	entities := p.ExtractEntities(ctx, content)

	setProgress(tr, 80, "Generating final report...")
	body, err := p.chat(ctx, "report_body", p.cfg.StrongModel, []llm.Message{
		llm.System(prompt.ReportSystem),
		llm.User(content),
	}, 0.5)
	if err != nil {
		err = fmt.Errorf("generating report body: %w", err)
		return research.Report{}, err
	}

	return research.Report{
		Title:     doc.Title,
		Content:   body,
		Summary:   summary,
		KeyPoints: keyPoints,
		Entities:  entities,
		SourceURL: doc.URL,
		EventDate: doc.Date,
	}, nil
}
