// Package history persists batch outcomes so completed runs can be reviewed
// after the fact.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"packshot-studio/internal/packshot"
)

type Batch struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	Kind       string    `json:"kind"`
	ItemCount  int       `json:"itemCount"`
	OKCount    int       `json:"okCount"`
	ErrorCount int       `json:"errorCount"`
}

type BatchItem struct {
	Position     int    `json:"position"`
	OriginalName string `json:"originalName"`
	OutputName   string `json:"outputName"`
	Error        string `json:"error,omitempty"`
}

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMP NOT NULL,
	kind        TEXT NOT NULL,
	item_count  INTEGER NOT NULL,
	ok_count    INTEGER NOT NULL,
	error_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_items (
	batch_id      TEXT NOT NULL REFERENCES batches(id),
	position      INTEGER NOT NULL,
	original_name TEXT NOT NULL,
	output_name   TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_batch_items_batch ON batch_items(batch_id);
`

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBatch stores one completed run. Items are written with their input
// position, original name and the name the pipeline produced for them.
func (s *Store) RecordBatch(kind string, originals []string, results []packshot.Processed) (Batch, error) {
	if len(originals) != len(results) {
		return Batch{}, fmt.Errorf("record batch: %d originals for %d results", len(originals), len(results))
	}

	batch := Batch{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Kind:      kind,
		ItemCount: len(results),
	}
	for _, r := range results {
		if r.Error == "" {
			batch.OKCount++
		} else {
			batch.ErrorCount++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Batch{}, fmt.Errorf("record batch: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO batches (id, created_at, kind, item_count, ok_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.CreatedAt, batch.Kind, batch.ItemCount, batch.OKCount, batch.ErrorCount); err != nil {
		return Batch{}, fmt.Errorf("record batch: %w", err)
	}

	for i, r := range results {
		if _, err := tx.Exec(`
			INSERT INTO batch_items (batch_id, position, original_name, output_name, error)
			VALUES (?, ?, ?, ?, ?)
		`, batch.ID, i, originals[i], r.Filename, r.Error); err != nil {
			return Batch{}, fmt.Errorf("record batch item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, fmt.Errorf("record batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns the most recent batches, newest first.
func (s *Store) ListBatches(limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, created_at, kind, item_count, ok_count, error_count
		FROM batches ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.Kind, &b.ItemCount, &b.OKCount, &b.ErrorCount); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BatchItems returns the per-file records of one batch in input order.
func (s *Store) BatchItems(batchID string) ([]BatchItem, error) {
	rows, err := s.db.Query(`
		SELECT position, original_name, output_name, error
		FROM batch_items WHERE batch_id = ? ORDER BY position
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch items: %w", err)
	}
	defer rows.Close()

	var out []BatchItem
	for rows.Next() {
		var item BatchItem
		if err := rows.Scan(&item.Position, &item.OriginalName, &item.OutputName, &item.Error); err != nil {
			return nil, fmt.Errorf("scan batch item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
