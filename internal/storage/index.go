package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vibe-mind/internal/handoff"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	path        TEXT NOT NULL,
	profile     TEXT NOT NULL,
	platform    TEXT NOT NULL,
	image_url   TEXT NOT NULL,
	confidence  REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (id, kind)
);
CREATE INDEX IF NOT EXISTS reports_created_at ON reports(created_at DESC);
`

type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Path       string    `json:"path"`
	Profile    string    `json:"profile"`
	Platform   string    `json:"platform"`
	ImageURL   string    `json:"image_url"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Index records saved reports in SQLite so they can be listed later.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

// OpenIndex opens (creating if needed) the index database at path.
// ":memory:" gives a private in-memory index.
func OpenIndex(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("index: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, now: time.Now}
	if err := idx.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Index) Init(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := i.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("index: %s: %w", pragma, err)
		}
	}
	if _, err := i.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("index: schema: %w", err)
	}
	return nil
}

// Record stores that h was written to path as kind. Re-recording the same
// handoff and kind replaces the earlier row.
func (i *Index) Record(ctx context.Context, h handoff.Handoff, kind, path string) error {
	_, err := i.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports (id, kind, path, profile, platform, image_url, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, kind, path, h.DesignerProfile, h.PlatformTarget, h.ImageURL, h.ConfidenceScore, i.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("index: record %s: %w", h.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (i *Index) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, kind, path, profile, platform, image_url, confidence, created_at
		FROM reports
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Path, &e.Profile, &e.Platform, &e.ImageURL, &e.Confidence, &ms); err != nil {
			return nil, fmt.Errorf("index: scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (i *Index) Close() error {
	return i.db.Close()
}
