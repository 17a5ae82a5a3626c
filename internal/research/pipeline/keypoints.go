package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/robertvmill/inference-backend/internal/research/prompt"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/tracing"
)

// extractKeyPoints collects 2-3 bullet candidates per chunk in chunk order.
// When the combined candidate count exceeds five, one further call reduces
// them to 3-5 deduplicated points; otherwise the candidates pass through
// unchanged. A failed chunk call contributes nothing.
func (p *Pipeline) extractKeyPoints(ctx context.Context, chunks []string) ([]string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "key-points")
	defer span.End()

	if len(chunks) == 1 {
		out, err := p.chat(ctx, "key_points", p.cfg.FastModel, []llm.Message{
			llm.System(prompt.DirectKeyPointsSystem),
			llm.User(chunks[0]),
		}, 0.3)
		if err != nil {
			return nil, fmt.Errorf("extracting key points: %w", err)
		}
		return splitBulletLines(out), nil
	}

	var candidates []string
	for i, chunk := range chunks {
		out, err := p.chat(ctx, "key_points_chunk", p.cfg.FastModel, []llm.Message{
			llm.System(prompt.ChunkKeyPointsSystem),
			llm.User(chunk),
		}, 0.3)
		if err != nil {
			p.logger.Error("chunk key-point extraction failed, skipping chunk",
				"chunk", i+1, "total", len(chunks), "error", err)
			continue
		}
		candidates = append(candidates, splitBulletLines(out)...)
	}

	if len(candidates) <= 5 {
		return candidates, nil
	}

	out, err := p.chat(ctx, "merge_key_points", p.cfg.FastModel, []llm.Message{
		llm.System(prompt.ReduceKeyPointsSystem),
		llm.User(strings.Join(candidates, "\n")),
	}, 0.3)
	if err != nil {
		return nil, fmt.Errorf("reducing key points: %w", err)
	}
	return splitBulletLines(out), nil
}

// splitBulletLines turns raw model output into clean point strings: one per
// non-blank line, with bullet markers and surrounding whitespace stripped.
func splitBulletLines(raw string) []string {
	lines := strings.Split(raw, "\n")
	points := make([]string, 0, len(lines))
	for _, line := range lines {
		point := stripBullet(line)
		if point != "" {
			points = append(points, point)
		}
	}
	return points
}

// stripBullet removes a leading list marker ("-", "•", "*", "3.") and trims
// whitespace.
func stripBullet(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "•-–* \t")

	// Numbered list marker: digits followed by a dot or paren.
	trimmed := strings.TrimLeftFunc(s, unicode.IsDigit)
	if trimmed != s && len(trimmed) > 0 && (trimmed[0] == '.' || trimmed[0] == ')') {
		s = trimmed[1:]
	}
	return strings.TrimSpace(s)
}
