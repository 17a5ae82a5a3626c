// Package tracing times pipeline stages as a span tree carried through the
// request context. A pipeline run opens a root span tagged with the request
// id, each stage (chunking, per-task model passes, merges) opens a child,
// and the finished tree is emitted through slog when the run ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed stage of a pipeline run.
type Span struct {
	name    string
	traceID string
	started time.Time
	elapsed time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []slog.Attr
}

// StartSpan opens a root span under traceID (normally the request id) and
// stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, started: time.Now()}
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan opens a stage span under the span held in ctx. Without a
// parent in ctx the child becomes its own root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{name: name, started: time.Now()}
	if parent := fromContext(ctx); parent != nil {
		child.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// End fixes the span's duration. Later calls keep the first measurement.
func (s *Span) End() {
	if s.elapsed == 0 {
		s.elapsed = time.Since(s.started)
	}
}

// SetAttr attaches an attribute carried into the emitted log record.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Log emits the whole span tree, one record per stage, depth-first in stage
// order.
func (s *Span) Log() {
	s.emit(0)
}

func (s *Span) emit(depth int) {
	attrs := []any{
		"trace_id", s.traceID,
		"stage", s.name,
		"duration_ms", s.elapsed.Milliseconds(),
		"depth", depth,
	}
	for _, a := range s.attrs {
		attrs = append(attrs, a.Key, a.Value.Any())
	}
	slog.Info("pipeline stage", attrs...)

	for _, child := range s.children {
		child.emit(depth + 1)
	}
}

func fromContext(ctx context.Context) *Span {
	if s, ok := ctx.Value(contextKey{}).(*Span); ok {
		return s
	}
	return nil
}
