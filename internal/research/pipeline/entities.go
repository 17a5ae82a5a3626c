package pipeline

import (
	"context"
	"strings"

	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/prompt"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/tracing"
)

// ExtractEntities runs one fast-tier call over the processed text and parses
// "Name (Type)" lines from the raw output. The textual protocol is best
// effort: malformed lines are skipped, and a failed call yields an empty
// list rather than an error.
func (p *Pipeline) ExtractEntities(ctx context.Context, content string) []research.Entity {
	ctx, span := tracing.StartChildSpan(ctx, "entities")
	defer span.End()

	out, err := p.chat(ctx, "entities", p.cfg.FastModel, []llm.Message{
		llm.System(prompt.EntitySystem),
		llm.User(content),
	}, 0.3)
	if err != nil {
		p.logger.Error("entity extraction failed", "error", err)
		return []research.Entity{}
	}

	entities := ParseEntities(out)
	span.SetAttr("entities", len(entities))
	return entities
}

// ParseEntities extracts Entity records from "Name (Type)" lines. Lines
// lacking an opening "(" with a matching ")" after it are discarded, as are
// lines whose name or type is blank once trimmed.
func ParseEntities(raw string) []research.Entity {
	entities := make([]research.Entity, 0)
	for _, line := range strings.Split(raw, "\n") {
		open := strings.Index(line, "(")
		if open < 0 {
			continue
		}
		end := strings.Index(line[open:], ")")
		if end < 0 {
			continue
		}
		name := strings.TrimSpace(stripBullet(line[:open]))
		typ := strings.TrimSpace(line[open+1 : open+end])
		if name == "" || typ == "" {
			continue
		}
		entities = append(entities, research.Entity{Name: name, Type: typ})
	}
	return entities
}
