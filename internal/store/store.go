// Package store persists solvetrack state in a single SQLite database: the
// canonical progress ledger, the monotonic version counter, and the derived
// stats cache table. The ledger and the counter are the only authoritative
// state; the cache table is derived and can be dropped at any time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"solvetrack/pkg/model"
)

// VersionCounterName is the meta row holding the ledger version counter.
const VersionCounterName = "ledger_version"

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	key        TEXT PRIMARY KEY,
	completed  INTEGER NOT NULL DEFAULT 0,
	minutes    INTEGER,
	notes      TEXT,
	updated_at TIMESTAMP NOT NULL,
	difficulty TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS stats_cache (
	scope_key   TEXT PRIMARY KEY,
	aggregate   TEXT NOT NULL,
	version     INTEGER NOT NULL,
	computed_at TIMESTAMP NOT NULL
);
`

// Store wraps the SQLite database holding ledger, counter, and cache.
type Store struct {
	db   *sql.DB
	path string

	// now is swappable for tests.
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema and the version counter row exist.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single writer at a time keeps the read-modify-write of the version
	// counter serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// Non-fatal, pragma support varies by build.
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (name, value) VALUES (?, 0)`, VersionCounterName,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing version counter: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetNowFunc overrides the clock, for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Version returns the current value of the ledger version counter.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE name = ?`, VersionCounterName,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("reading version counter: %w", err)
	}
	return v, nil
}

// Get returns the progress record for key, or nil if none exists.
func (s *Store) Get(ctx context.Context, key string) (*model.ProgressRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, completed, minutes, notes, updated_at, difficulty
		FROM progress WHERE key = ?`, key)

	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress for %s: %w", key, err)
	}
	return rec, nil
}

// GetMany bulk-reads progress records for the given keys. Keys with no
// ledger row are omitted from the result; callers treat them as not
// completed.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string]model.ProgressRecord, error) {
	result := make(map[string]model.ProgressRecord, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	// Chunked IN queries keep us under SQLite's bound-parameter limit.
	const chunkSize = 500
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.getChunk(ctx, keys[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) getChunk(ctx context.Context, keys []string, out map[string]model.ProgressRecord) error {
	placeholders := make([]byte, 0, len(keys)*2)
	args := make([]any, len(keys))
	for i, k := range keys {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = k
	}

	query := fmt.Sprintf(`
		SELECT key, completed, minutes, notes, updated_at, difficulty
		FROM progress WHERE key IN (%s)`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("bulk-reading progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return fmt.Errorf("scanning progress row: %w", err)
		}
		out[rec.Key] = *rec
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating progress rows: %w", err)
	}
	return nil
}

func scanRecord(scan func(...any) error) (*model.ProgressRecord, error) {
	var rec model.ProgressRecord
	var completed int64
	var minutes sql.NullInt64
	var notes sql.NullString
	var updatedAt time.Time
	var difficulty string

	if err := scan(&rec.Key, &completed, &minutes, &notes, &updatedAt, &difficulty); err != nil {
		return nil, err
	}

	rec.Completed = completed != 0
	if minutes.Valid {
		v := int(minutes.Int64)
		rec.Minutes = &v
	}
	if notes.Valid {
		v := notes.String
		rec.Notes = &v
	}
	rec.UpdatedAt = updatedAt
	rec.Difficulty = model.Difficulty(difficulty)
	return &rec, nil
}
