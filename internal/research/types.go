// Package research defines the domain types shared by the document-analysis
// pipelines: submitted documents, structured summaries, extracted entities,
// questions with their answers, and generated reports.
package research

import "time"

// DocumentType distinguishes transcripts from articles.
type DocumentType string

const (
	TypeTranscript DocumentType = "transcript"
	TypeArticle    DocumentType = "article"
)

// Document is a submitted document. Immutable once submitted; the server
// never stores it, so Q&A callers re-supply the full content.
type Document struct {
	Title   string       `json:"title"`
	Content string       `json:"content"`
	Type    DocumentType `json:"type"`
	URL     string       `json:"url,omitempty"`
	Date    string       `json:"date,omitempty"`

	// ProgressID lets the caller pick the id under which this run's
	// progress is streamed. Empty means the server assigns one.
	ProgressID string `json:"progress_id,omitempty"`
}

// Entity is a named entity extracted from a document. Type is a free-text
// category such as "person", "organization", or "technology".
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Summary is the structured result of the upload pipeline.
type Summary struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Entities  []Entity `json:"entities"`
	Timestamp string   `json:"timestamp"`
	SourceURL string   `json:"source_url,omitempty"`
	EventDate string   `json:"event_date,omitempty"`
}

// Question is a free-form question about a previously uploaded document.
// QuestionID is the caller-supplied dedup key for the pending-answer store.
type Question struct {
	Question        string `json:"question"`
	ContextID       string `json:"context_id"`
	DocumentContent string `json:"document_content"`
	QuestionID      string `json:"question_id"`
}

// Report is a generated document report persisted to PostgreSQL. ID and
// CreatedAt are assigned at save time.
type Report struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"key_points"`
	Entities  []Entity  `json:"entities"`
	SourceURL string    `json:"source_url,omitempty"`
	EventDate string    `json:"event_date,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
