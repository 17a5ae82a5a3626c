// Package events publishes analytics events for completed pipeline runs.
// Publishing is optional and strictly fire-and-forget: a nil Publisher or a
// broker failure never affects the request path.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/robertvmill/inference-backend/pkg/kafka"
)

// Event types emitted on the analytics stream.
const (
	TypeDocumentProcessed = "document_processed"
	TypeQuestionAnswered  = "question_answered"
	TypeReportSaved       = "report_saved"
)

// Envelope is the wire shape of an analytics event.
type Envelope struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Publisher emits analytics events to Kafka. The zero-value (nil) Publisher
// is a no-op, so callers never need to branch on whether the stream is
// configured.
type Publisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPublisher wraps a Kafka producer. producer may be nil (publishing
// disabled).
func NewPublisher(producer *kafka.Producer) *Publisher {
	if producer == nil {
		return nil
	}
	return &Publisher{
		producer: producer,
		logger:   slog.Default().With("component", "events"),
	}
}

// Emit publishes one event asynchronously. Failures are logged and dropped.
func (p *Publisher) Emit(eventType string, fields map[string]any) {
	if p == nil {
		return
	}
	env := Envelope{Type: eventType, Timestamp: time.Now().UTC(), Fields: fields}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.producer.Publish(ctx, kafka.Event{Key: eventType, Value: env}); err != nil {
			p.logger.Warn("dropping analytics event", "type", eventType, "error", err)
		}
	}()
}

// Close flushes and closes the underlying producer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
