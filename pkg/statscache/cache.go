// Package statscache persists derived scope aggregates keyed by
// (dataset generation, scope) and validates them against the ledger version
// counter on every read. One cache abstraction serves every scope
// granularity: single list, whole group, group+list pair — the key shape is
// the only difference.
//
// Invalidation is lazy: a mutation bumps the counter, which makes every
// stored entry version-mismatched; stale entries are simply ignored on read
// and overwritten by the next recomputation, never proactively deleted.
package statscache

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"solvetrack/internal/store"
	"solvetrack/pkg/model"
)

// Backend is the slice of the persisted store the cache needs.
type Backend interface {
	ReadStats(ctx context.Context, scopeKey string) (*store.StatsEntry, error)
	WriteStats(ctx context.Context, scopeKey string, payload []byte, version int64) error
	Version(ctx context.Context) (int64, error)
}

// Cache reads and writes versioned scope aggregates.
type Cache struct {
	backend Backend
	warn    func(string)
}

// Option configures a Cache.
type Option func(*Cache)

// WithWarningHandler routes soft problems (corrupt payloads) to fn.
func WithWarningHandler(fn func(string)) Option {
	return func(c *Cache) {
		if fn != nil {
			c.warn = fn
		}
	}
}

// New creates a Cache over the given backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{backend: backend, warn: func(string) {}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the cached aggregate for key, or nil when there is no entry
// or the entry's version no longer matches the counter. A stale value is
// never returned.
func (c *Cache) Read(ctx context.Context, key model.ScopeKey) (*model.ScopeAggregate, error) {
	entry, err := c.backend.ReadStats(ctx, key.String())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	version, err := c.backend.Version(ctx)
	if err != nil {
		return nil, err
	}
	if entry.Version != version {
		// Stale. Leave it in place; the next write overwrites it.
		return nil, nil
	}

	var agg model.ScopeAggregate
	if err := json.Unmarshal(entry.Payload, &agg); err != nil {
		c.warn(fmt.Sprintf("%s: corrupt cache payload, recomputing: %v", key, err))
		return nil, nil
	}
	return &agg, nil
}

// Write stores the aggregate stamped with the counter value read at write
// time. Prefer WriteStamped when the caller already read the version at a
// better-defined point (after the ledger bulk-read).
func (c *Cache) Write(ctx context.Context, key model.ScopeKey, agg *model.ScopeAggregate) error {
	version, err := c.backend.Version(ctx)
	if err != nil {
		return err
	}
	return c.WriteStamped(ctx, key, agg, version)
}

// WriteStamped stores the aggregate under key with an explicit version
// stamp, overwriting any previous entry.
func (c *Cache) WriteStamped(ctx context.Context, key model.ScopeKey, agg *model.ScopeAggregate, version int64) error {
	payload, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("encoding aggregate for %s: %w", key, err)
	}
	return c.backend.WriteStats(ctx, key.String(), payload, version)
}
