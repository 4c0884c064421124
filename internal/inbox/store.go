// Package inbox receives delegated snapshots over HTTP, persists them in
// sqlite with the screenshot on disk and optionally forwards them to a
// routing hub.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown snapshot ids.
var ErrNotFound = errors.New("inbox: snapshot not found")

// createdLayout sorts lexically in time order.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is a stored snapshot.
type Record struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Title           string    `json:"title"`
	Timestamp       string    `json:"timestamp"`
	CreatedAt       time.Time `json:"createdAt"`
	Routed          bool      `json:"routed"`
	AnnotationCount int       `json:"annotationCount"`
	ScreenshotPath  string    `json:"-"`
	// Payload is the snapshot JSON as received.
	Payload []byte `json:"-"`
}

// Store persists snapshot records.
type Store struct {
	db *sql.DB
}

// OpenStore opens, or creates, the sqlite database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("inbox: open db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			created_at TEXT NOT NULL,
			routed INTEGER NOT NULL DEFAULT 0,
			annotation_count INTEGER NOT NULL DEFAULT 0,
			screenshot_path TEXT NOT NULL,
			payload_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("inbox: init schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores rec.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, url, title, timestamp, created_at, routed, annotation_count, screenshot_path, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.Title, rec.Timestamp, rec.CreatedAt.UTC().Format(createdLayout),
		rec.Routed, rec.AnnotationCount, rec.ScreenshotPath, string(rec.Payload))
	if err != nil {
		return fmt.Errorf("inbox: insert %s: %w", rec.ID, err)
	}
	return nil
}

// SetRouted records whether the snapshot reached the routing hub.
func (s *Store) SetRouted(ctx context.Context, id string, routed bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE snapshots SET routed = ? WHERE id = ?`, routed, id)
	if err != nil {
		return fmt.Errorf("inbox: update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const recordColumns = `id, url, title, timestamp, created_at, routed, annotation_count, screenshot_path, payload_json`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec     Record
		created string
		payload string
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Timestamp, &created, &rec.Routed,
		&rec.AnnotationCount, &rec.ScreenshotPath, &payload); err != nil {
		return Record{}, err
	}
	t, err := time.Parse(createdLayout, created)
	if err != nil {
		return Record{}, fmt.Errorf("inbox: created_at %q: %w", created, err)
	}
	rec.CreatedAt = t
	rec.Payload = []byte(payload)
	return rec, nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM snapshots WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("inbox: get %s: %w", id, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("inbox: list: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("inbox: list: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
