// Package scheduler decides which scopes need their statistics computed
// right now, driven by UI visibility signals. It deduplicates concurrent
// requests for the same (generation, scope) pair, bounds how many scope
// computations run in parallel, and publishes finished aggregates to
// subscribers.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"solvetrack/pkg/debug"
	"solvetrack/pkg/model"
	"solvetrack/pkg/source"
)

// DefaultComputeLimit bounds concurrent scope computations. Distinct from
// the per-scope fetch bound inside the aggregator.
const DefaultComputeLimit = 2

// Ledger is the slice of the persisted store the scheduler reads.
type Ledger interface {
	GetMany(ctx context.Context, keys []string) (map[string]model.ProgressRecord, error)
	Version(ctx context.Context) (int64, error)
}

// StatsCache is the derived-stats cache the scheduler reads through and
// writes through.
type StatsCache interface {
	Read(ctx context.Context, key model.ScopeKey) (*model.ScopeAggregate, error)
	WriteStamped(ctx context.Context, key model.ScopeKey, agg *model.ScopeAggregate, version int64) error
}

// ScopeResolver maps a scope id to its source list. The dataset layer
// implements this.
type ScopeResolver interface {
	ResolveScope(scopeID string) (source.Scope, bool)
}

// Result is one "aggregate ready" notification.
type Result struct {
	Key       model.ScopeKey
	Aggregate *model.ScopeAggregate
	Issues    []source.Issue
	FromCache bool
	Err       error
}

// Scheduler runs the visibility-driven lazy computation pipeline.
type Scheduler struct {
	ledger     Ledger
	cache      StatsCache
	aggregator *source.Aggregator
	scopes     ScopeResolver
	limit      int
	warn       func(string)

	mu         sync.Mutex
	generation string
	inflight   map[string]struct{}
	published  map[string]bool
	subs       []func(Result)

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithComputeLimit overrides the concurrent scope computation bound.
func WithComputeLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithWarningHandler routes soft problems (cache write failures) to fn.
func WithWarningHandler(fn func(string)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.warn = fn
		}
	}
}

// New creates a Scheduler. Generation starts empty; callers set it from the
// dataset before scheduling anything.
func New(ledger Ledger, cache StatsCache, aggregator *source.Aggregator, scopes ScopeResolver, opts ...Option) *Scheduler {
	s := &Scheduler{
		ledger:     ledger,
		cache:      cache,
		aggregator: aggregator,
		scopes:     scopes,
		limit:      DefaultComputeLimit,
		warn:       func(string) {},
		inflight:   make(map[string]struct{}),
		published:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a callback for "aggregate ready" notifications.
// Callbacks run on scheduler goroutines and should return quickly.
func (s *Scheduler) Subscribe(fn func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// SetGeneration switches the dataset generation. All in-flight bookkeeping
// and the published set are dropped: prior cache entries are keyed to the
// old generation and are no longer reachable.
func (s *Scheduler) SetGeneration(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetGeneration(id)
}

// SetDataset switches the generation and the scope resolver together, for
// dataset reloads where scope definitions may have changed shape. Resolving
// new scopes against the old definition would compute from stale sources and
// persist the result under the new generation key.
func (s *Scheduler) SetDataset(id string, scopes ScopeResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scopes != nil {
		s.scopes = scopes
	}
	s.resetGeneration(id)
}

// resetGeneration requires s.mu held.
func (s *Scheduler) resetGeneration(id string) {
	if s.generation == id {
		return
	}
	debug.Log("scheduler: generation %q -> %q", s.generation, id)
	s.generation = id
	s.inflight = make(map[string]struct{})
	s.published = make(map[string]bool)
}

// Generation returns the current dataset generation id.
func (s *Scheduler) Generation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// SetVisibleScopes asynchronously schedules computation for the given
// visible-scope snapshot. Safe to call on every visibility tick; work
// already published or in flight for the current generation is skipped.
func (s *Scheduler) SetVisibleScopes(ctx context.Context, scopeIDs []string) {
	ids := append([]string(nil), scopeIDs...)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Schedule(ctx, ids); err != nil && ctx.Err() == nil {
			s.warn(fmt.Sprintf("scheduling visible scopes: %v", err))
		}
	}()
}

// Wait blocks until every computation started via SetVisibleScopes has
// finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Schedule synchronously ensures an aggregate is published for each given
// scope under the current generation. Duplicate ids are collapsed; scopes
// already in flight elsewhere are skipped (the other task publishes).
// Per-scope failures are published as error Results and never block the
// scopes queued behind them.
func (s *Scheduler) Schedule(ctx context.Context, scopeIDs []string) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	seen := make(map[string]struct{}, len(scopeIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for _, id := range scopeIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			s.computeOne(gctx, gen, id)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// computeOne runs the full pipeline for one scope: cache read, source
// aggregation, ledger bulk-read, reduce, cache write-through, publish.
func (s *Scheduler) computeOne(ctx context.Context, gen, scopeID string) {
	key := model.ScopeKey{Generation: gen, ScopeID: scopeID}
	ks := key.String()

	s.mu.Lock()
	if s.generation != gen || s.published[ks] {
		s.mu.Unlock()
		return
	}
	if _, busy := s.inflight[ks]; busy {
		s.mu.Unlock()
		debug.Log("scheduler: %s already in flight", ks)
		return
	}
	s.inflight[ks] = struct{}{}
	resolver := s.scopes
	s.mu.Unlock()

	defer debug.LogEnterExit("compute " + ks)()

	// Release the slot no matter how this computation ends.
	defer func() {
		s.mu.Lock()
		delete(s.inflight, ks)
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}

	if agg, err := s.cache.Read(ctx, key); err == nil && agg != nil {
		s.publish(gen, Result{Key: key, Aggregate: agg, FromCache: true})
		return
	}

	scope, ok := resolver.ResolveScope(scopeID)
	if !ok {
		s.publish(gen, Result{Key: key, Err: fmt.Errorf("unknown scope %s", scopeID)})
		return
	}

	data, err := s.aggregator.Aggregate(ctx, scope)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.publish(gen, Result{Key: key, Err: err})
		return
	}

	records, err := s.ledger.GetMany(ctx, data.Keys())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.publish(gen, Result{Key: key, Err: err})
		return
	}

	// Read the counter after the bulk-read so the stamp can be at most one
	// mutation behind; a bump that raced us makes the entry stale on its
	// very first read and it gets recomputed.
	version, err := s.ledger.Version(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.publish(gen, Result{Key: key, Err: err})
		return
	}

	// Cancellation short-circuits before any write.
	if ctx.Err() != nil {
		return
	}

	agg := Reduce(data, records)

	if err := s.cache.WriteStamped(ctx, key, agg, version); err != nil {
		// The cache is an optimization; the computed aggregate still goes out.
		s.warn(fmt.Sprintf("%s: cache write failed: %v", ks, err))
	}

	s.publish(gen, Result{Key: key, Aggregate: agg, Issues: data.Issues})
}

// publish marks the key done for this visibility session and notifies
// subscribers, unless the generation moved while we were computing.
func (s *Scheduler) publish(gen string, res Result) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	if res.Err == nil {
		s.published[res.Key.String()] = true
	}
	subs := append([]func(Result){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(res)
	}
}

// Reduce combines a scope's source data with the ledger's completion state
// into the final aggregate. Difficulty comes from the scope's own source
// metadata; identities absent from the ledger count as not completed.
func Reduce(data *source.ScopeData, records map[string]model.ProgressRecord) *model.ScopeAggregate {
	agg := model.NewScopeAggregate()
	for identity, difficulty := range data.LinkToDifficulty {
		rec, ok := records[identity]
		agg.Add(difficulty, ok && rec.Completed)
	}
	return agg
}
