package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StatsEntry is one persisted derived-stats record, aggregate payload left
// opaque to the store.
type StatsEntry struct {
	ScopeKey   string
	Payload    []byte
	Version    int64
	ComputedAt time.Time
}

// ReadStats returns the stored stats entry for scopeKey, or nil if absent.
// Version validation is the caller's job; the store hands back whatever was
// last written.
func (s *Store) ReadStats(ctx context.Context, scopeKey string) (*StatsEntry, error) {
	var entry StatsEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT scope_key, aggregate, version, computed_at
		FROM stats_cache WHERE scope_key = ?`, scopeKey,
	).Scan(&entry.ScopeKey, &entry.Payload, &entry.Version, &entry.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading stats for %s: %w", scopeKey, err)
	}
	return &entry, nil
}

// WriteStats upserts the stats entry for scopeKey, last write wins. Stale
// entries under other keys are left alone; they are ignored on read and
// overwritten whenever their scope is recomputed.
func (s *Store) WriteStats(ctx context.Context, scopeKey string, payload []byte, version int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats_cache (scope_key, aggregate, version, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope_key) DO UPDATE SET
			aggregate   = excluded.aggregate,
			version     = excluded.version,
			computed_at = excluded.computed_at`,
		scopeKey, payload, version, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing stats for %s: %w", scopeKey, err)
	}
	return nil
}

// ClearStats drops every cached stats entry. Purely derived data, safe to
// call at any time.
func (s *Store) ClearStats(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stats_cache`); err != nil {
		return fmt.Errorf("clearing stats cache: %w", err)
	}
	return nil
}
