package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robertvmill/inference-backend/internal/research"
	"github.com/robertvmill/inference-backend/internal/research/prompt"
	"github.com/robertvmill/inference-backend/pkg/llm"
	"github.com/robertvmill/inference-backend/pkg/logger"
	"github.com/robertvmill/inference-backend/pkg/tracing"
)

// evidenceSeparator joins the relevant passages handed to the final answer
// call.
const evidenceSeparator = "\n---\n"

// Answer runs the two-phase question pipeline. Documents larger than one
// chunk first go through a relevance pass that extracts, per chunk, the
// passages bearing on the question; chunks answering with the sentinel are
// dropped. The surviving evidence is joined and a final call produces the
// answer bound to it. When every chunk is irrelevant the final call is
// skipped and a fixed no-information answer is returned.
func (p *Pipeline) Answer(ctx context.Context, q research.Question) (string, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "question-pipeline", logger.RequestIDFromContext(ctx))
	var err error
	defer func() {
		span.End()
		span.Log()
		p.observeRun("question", start, err)
	}()

	p.logger.Info("answering question", "question_id", q.QuestionID)

	// Q&A ignores the whole-document threshold: anything over one chunk
	// goes through the relevance pass.
	chunks := p.chunker.Split(q.DocumentContent, p.cfg.MaxChunkTokens)
	span.SetAttr("chunks", len(chunks))

	var evidence string
	if len(chunks) <= 1 {
		evidence = q.DocumentContent
	} else {
		var relevant []string
		for i, chunk := range chunks {
			out, chunkErr := p.chat(ctx, "relevance", p.cfg.StrongModel, []llm.Message{
				llm.System(prompt.RelevanceSystem),
				llm.User(fmt.Sprintf("Question: %s\n\nText section:\n%s", q.Question, chunk)),
			}, 0.3)
			if chunkErr != nil {
				err = fmt.Errorf("scanning section %d/%d for relevance: %w", i+1, len(chunks), chunkErr)
				return "", err
			}
			if isNoRelevantInfo(out) {
				continue
			}
			relevant = append(relevant, out)
		}
		span.SetAttr("relevant_chunks", len(relevant))

		if len(relevant) == 0 {
			return fmt.Sprintf("The document does not provide information about %s", q.Question), nil
		}
		evidence = strings.Join(relevant, evidenceSeparator)
	}

	out, err := p.chat(ctx, "answer", p.cfg.StrongModel, []llm.Message{
		llm.System(prompt.AnswerSystem),
		llm.User(answerPrompt(q.Question, evidence)),
	}, 0.3)
	if err != nil {
		err = fmt.Errorf("generating answer: %w", err)
		return "", err
	}
	return out, nil
}

func answerPrompt(question, evidence string) string {
	return fmt.Sprintf(`Based on the following relevant information from the document, please answer this question: %s

Relevant document content:
%s

Instructions:
1. Answer ONLY based on the information provided above
2. If the answer is explicitly stated, quote the relevant parts
3. If the information is not clear or complete, say so
4. Be precise and specific in your answer
5. Do not make assumptions or add external information`, question, evidence)
}

// isNoRelevantInfo reports whether a relevance response is the sentinel.
// Models tend to wrap the literal token in quotes, backticks, or a trailing
// period, so the comparison strips that decoration and keys on the prefix.
func isNoRelevantInfo(out string) bool {
	s := strings.TrimSpace(out)
	s = strings.Trim(s, "\"'`.")
	return strings.HasPrefix(s, prompt.NoRelevantInfo)
}
