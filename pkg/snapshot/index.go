package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS baselines (
	name       TEXT PRIMARY KEY,
	sha256     TEXT NOT NULL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	run_id     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS baseline_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	sha256     TEXT NOT NULL,
	written_at INTEGER NOT NULL,
	run_id     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_baseline_history_name ON baseline_history(name);
`

// Entry is the indexed metadata of one baseline.
type Entry struct {
	Name      Name      `json:"name"`
	SHA256    string    `json:"sha256"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	UpdatedAt time.Time `json:"updated_at"`
	RunID     string    `json:"run_id"`
}

// Index keeps a sqlite ledger of baseline writes. Every process gets its own
// run id so history rows can be grouped by test run.
type Index struct {
	db    *sql.DB
	runID string
}

// OpenIndex opens (or creates) the index database at path. Use ":memory:" in tests.
func OpenIndex(path string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("snapshot: index mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: index open: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("snapshot: index %s: %w", p, err)
		}
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: index schema: %w", err)
	}

	return &Index{db: db, runID: uuid.Must(uuid.NewV7()).String()}, nil
}

// RunID returns the identifier stamped on rows written by this process.
func (x *Index) RunID() string { return x.runID }

// Record upserts the metadata of a baseline and appends a history row.
func (x *Index) Record(ctx context.Context, name Name, data []byte) error {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	var w, h int
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		w, h = cfg.Width, cfg.Height
	}
	now := time.Now().UnixMilli()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: index begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO baselines (name, sha256, width, height, updated_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sha256 = excluded.sha256,
			width = excluded.width,
			height = excluded.height,
			updated_at = excluded.updated_at,
			run_id = excluded.run_id`,
		string(name), digest, w, h, now, x.runID)
	if err != nil {
		return fmt.Errorf("snapshot: index upsert %s: %w", name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO baseline_history (name, sha256, written_at, run_id) VALUES (?, ?, ?, ?)`,
		string(name), digest, now, x.runID)
	if err != nil {
		return fmt.Errorf("snapshot: index history %s: %w", name, err)
	}

	return tx.Commit()
}

// Get returns the indexed metadata for name, or ErrNotFound.
func (x *Index) Get(ctx context.Context, name Name) (*Entry, error) {
	row := x.db.QueryRowContext(ctx, `
		SELECT name, sha256, width, height, updated_at, run_id
		FROM baselines WHERE name = ?`, string(name))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, err
}

// List returns every indexed baseline ordered by name.
func (x *Index) List(ctx context.Context) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT name, sha256, width, height, updated_at, run_id
		FROM baselines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: index list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// HistoryCount returns how many times the baseline for name was written.
func (x *Index) HistoryCount(ctx context.Context, name Name) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM baseline_history WHERE name = ?`, string(name)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("snapshot: index history count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (x *Index) Close() error { return x.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		name    string
		updated int64
	)
	if err := s.Scan(&name, &e.SHA256, &e.Width, &e.Height, &updated, &e.RunID); err != nil {
		return nil, err
	}
	e.Name = Name(name)
	e.UpdatedAt = time.UnixMilli(updated)
	return &e, nil
}

// IndexedStore is a Dir that records every baseline write in an Index.
type IndexedStore struct {
	*Dir
	Index  *Index
	// Logger receives index failures. Nil means slog.Default().
	Logger *slog.Logger
}

// Write stores the baseline, then records it. The file is the source of
// truth: once it is in place, a failed index write is logged and Write
// still succeeds.
func (s *IndexedStore) Write(name Name, data []byte) error {
	if err := s.Dir.Write(name, data); err != nil {
		return err
	}
	if err := s.Index.Record(context.Background(), name, data); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("baseline index out of date", "name", string(name), "error", err)
	}
	return nil
}
