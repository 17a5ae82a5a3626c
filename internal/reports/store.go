// Package reports persists generated document reports in PostgreSQL.
package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robertvmill/inference-backend/internal/research"
	apperrors "github.com/robertvmill/inference-backend/pkg/errors"
	"github.com/robertvmill/inference-backend/pkg/postgres"
)

// Store persists reports. Structured fields (key points, entities) are kept
// as JSONB so the read path reconstructs the exact response shape without
// join tables.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a report store.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "reports-store"),
	}
}

// EnsureSchema creates the reports table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
		    id         UUID PRIMARY KEY,
		    title      TEXT NOT NULL,
		    content    TEXT NOT NULL,
		    summary    TEXT NOT NULL,
		    key_points JSONB NOT NULL DEFAULT '[]',
		    entities   JSONB NOT NULL DEFAULT '[]',
		    source_url TEXT,
		    event_date TEXT,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensuring reports schema: %w", err)
	}
	return nil
}

// Insert saves a report, assigning its id and creation time, and returns the
// stored record.
func (s *Store) Insert(ctx context.Context, r research.Report) (research.Report, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()

	keyPoints, err := json.Marshal(r.KeyPoints)
	if err != nil {
		return research.Report{}, fmt.Errorf("marshaling key points: %w", err)
	}
	entities, err := json.Marshal(r.Entities)
	if err != nil {
		return research.Report{}, fmt.Errorf("marshaling entities: %w", err)
	}

	_, err = s.db.DB.ExecContext(ctx, `
		INSERT INTO reports (id, title, content, summary, key_points, entities, source_url, event_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Title, r.Content, r.Summary, keyPoints, entities,
		nullable(r.SourceURL), nullable(r.EventDate), r.CreatedAt,
	)
	if err != nil {
		return research.Report{}, apperrors.Newf(apperrors.ErrPersistence, 500, "saving report: %v", err)
	}

	s.logger.Info("report saved", "report_id", r.ID, "title", r.Title)
	return r, nil
}

// Get loads one report by id.
func (s *Store) Get(ctx context.Context, id string) (research.Report, error) {
	row := s.db.DB.QueryRowContext(ctx, `
		SELECT id, title, content, summary, key_points, entities, source_url, event_date, created_at
		FROM reports WHERE id = $1`, id)

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return research.Report{}, apperrors.Newf(apperrors.ErrNotFound, 404, "report %s not found", id)
	}
	if err != nil {
		return research.Report{}, fmt.Errorf("loading report %s: %w", id, err)
	}
	return r, nil
}

// List returns reports newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]research.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, title, content, summary, key_points, entities, source_url, event_date, created_at
		FROM reports ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]research.Report, 0, limit)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (research.Report, error) {
	var (
		r         research.Report
		keyPoints []byte
		entities  []byte
		sourceURL sql.NullString
		eventDate sql.NullString
	)
	err := row.Scan(&r.ID, &r.Title, &r.Content, &r.Summary, &keyPoints, &entities, &sourceURL, &eventDate, &r.CreatedAt)
	if err != nil {
		return research.Report{}, err
	}
	if err := json.Unmarshal(keyPoints, &r.KeyPoints); err != nil {
		return research.Report{}, fmt.Errorf("unmarshaling key points: %w", err)
	}
	if err := json.Unmarshal(entities, &r.Entities); err != nil {
		return research.Report{}, fmt.Errorf("unmarshaling entities: %w", err)
	}
	r.SourceURL = sourceURL.String
	r.EventDate = eventDate.String
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
