package store

import (
	"context"
	"database/sql"
	"fmt"

	"solvetrack/pkg/model"
)

// ToggleCompleted flips the completion flag for key, creating the record
// with completed=true if none exists. The row write and the version counter
// bump commit in one transaction; on any failure neither is visible.
// Returns the record as committed and the new counter value.
func (s *Store) ToggleCompleted(ctx context.Context, key string, fallback model.Difficulty) (*model.ProgressRecord, int64, error) {
	return s.mutate(ctx, key, fallback, func(rec *model.ProgressRecord, created bool) {
		if created {
			rec.Completed = true
		} else {
			rec.Completed = !rec.Completed
		}
	})
}

// SetMinutes records the effort spent on key, creating the record if needed.
// nil clears the field. Bumps the version counter like every ledger mutation;
// solved counts don't change, but the conservative bump keeps every cache
// honest at the cost of extra recomputation.
func (s *Store) SetMinutes(ctx context.Context, key string, minutes *int, fallback model.Difficulty) (*model.ProgressRecord, int64, error) {
	return s.mutate(ctx, key, fallback, func(rec *model.ProgressRecord, _ bool) {
		rec.Minutes = minutes
	})
}

// SetNotes records free-form notes on key, creating the record if needed.
// nil clears the field. Bumps the version counter.
func (s *Store) SetNotes(ctx context.Context, key string, notes *string, fallback model.Difficulty) (*model.ProgressRecord, int64, error) {
	return s.mutate(ctx, key, fallback, func(rec *model.ProgressRecord, _ bool) {
		rec.Notes = notes
	})
}

// mutate runs the create-or-update + version-bump discipline shared by all
// ledger mutations.
func (s *Store) mutate(ctx context.Context, key string, fallback model.Difficulty, apply func(rec *model.ProgressRecord, created bool)) (*model.ProgressRecord, int64, error) {
	if key == "" {
		return nil, 0, fmt.Errorf("empty progress key")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("beginning mutation: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT key, completed, minutes, notes, updated_at, difficulty
		FROM progress WHERE key = ?`, key)

	rec, err := scanRecord(row.Scan)
	created := false
	if err == sql.ErrNoRows {
		created = true
		rec = &model.ProgressRecord{Key: key, Difficulty: fallback}
	} else if err != nil {
		return nil, 0, fmt.Errorf("reading progress for %s: %w", key, err)
	}

	apply(rec, created)
	rec.UpdatedAt = s.now().UTC()

	var minutes sql.NullInt64
	if rec.Minutes != nil {
		minutes = sql.NullInt64{Int64: int64(*rec.Minutes), Valid: true}
	}
	var notes sql.NullString
	if rec.Notes != nil {
		notes = sql.NullString{String: *rec.Notes, Valid: true}
	}
	completed := 0
	if rec.Completed {
		completed = 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO progress (key, completed, minutes, notes, updated_at, difficulty)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			completed  = excluded.completed,
			minutes    = excluded.minutes,
			notes      = excluded.notes,
			updated_at = excluded.updated_at`,
		key, completed, minutes, notes, rec.UpdatedAt, string(rec.Difficulty),
	); err != nil {
		return nil, 0, fmt.Errorf("writing progress for %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE meta SET value = value + 1 WHERE name = ?`, VersionCounterName,
	); err != nil {
		return nil, 0, fmt.Errorf("bumping version counter: %w", err)
	}

	var version int64
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE name = ?`, VersionCounterName,
	).Scan(&version); err != nil {
		return nil, 0, fmt.Errorf("reading bumped version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing mutation for %s: %w", key, err)
	}

	return rec, version, nil
}
