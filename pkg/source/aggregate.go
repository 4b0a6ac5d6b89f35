package source

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solvetrack/pkg/debug"
	"solvetrack/pkg/model"
)

// DefaultFetchLimit bounds concurrent source fetches within one scope
// computation. The bound is per Aggregate call, not global, so a scope with
// dozens of sources can't turn into a request storm.
const DefaultFetchLimit = 3

// Scope names one unit of aggregation: a single list, or a group of lists.
// Sources are listed in priority order; when the same identity appears in
// more than one source, the earliest source's difficulty tag wins.
type Scope struct {
	ID      string
	Sources []string
}

// SourceResult captures the outcome of fetching and parsing one source.
type SourceResult struct {
	SourceID string
	Rows     []Row
	Issues   []Issue
	Err      error
}

// ScopeData is the reduced form of a scope's raw data: each unique identity
// mapped to the difficulty its winning source assigned, plus per-difficulty
// totals.
type ScopeData struct {
	ScopeID            string
	LinkToDifficulty   map[string]model.Difficulty
	TotalsByDifficulty map[model.Difficulty]int
	Issues             []Issue
	Results            []SourceResult
}

// Keys returns the scope's unique identities, for the ledger bulk-read.
func (d *ScopeData) Keys() []string {
	keys := make([]string, 0, len(d.LinkToDifficulty))
	for k := range d.LinkToDifficulty {
		keys = append(keys, k)
	}
	return keys
}

// Aggregator fetches a scope's sources with bounded concurrency and merges
// them by identity. A pure function of the scope's raw data: no ledger
// access, no caching.
type Aggregator struct {
	fetcher    Fetcher
	fetchLimit int
	warn       func(string)
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithFetchLimit overrides the per-scope fetch concurrency bound.
func WithFetchLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.fetchLimit = n
		}
	}
}

// WithWarningHandler routes parse warnings to fn instead of dropping them.
func WithWarningHandler(fn func(string)) AggregatorOption {
	return func(a *Aggregator) {
		if fn != nil {
			a.warn = fn
		}
	}
}

// NewAggregator creates an Aggregator over the given fetcher.
func NewAggregator(fetcher Fetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:    fetcher,
		fetchLimit: DefaultFetchLimit,
		warn:       func(string) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches every source of the scope concurrently (bounded by the
// fetch limit), parses them, and merges rows by identity first-write-wins in
// source order. A source that fails to fetch contributes zero rows and an
// issue; sibling sources are unaffected. Only context cancellation or a nil
// fetcher is an error.
func (a *Aggregator) Aggregate(ctx context.Context, scope Scope) (*ScopeData, error) {
	if a.fetcher == nil {
		return nil, fmt.Errorf("aggregator has no fetcher")
	}

	if debug.Enabled() {
		defer func(start time.Time) {
			debug.LogTiming(fmt.Sprintf("aggregate %s (%d sources)", scope.ID, len(scope.Sources)), time.Since(start))
		}(time.Now())
	}

	results := make([]SourceResult, len(scope.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchLimit)

	for i, sourceID := range scope.Sources {
		i, sourceID := i, sourceID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				// Cancellation is the one failure that aborts siblings.
				return err
			}

			data, err := a.fetcher.FetchScopeSource(gctx, sourceID)
			if err != nil {
				// A fetch cut short by cancellation is not a source problem;
				// it must abort the whole aggregation, not degrade it to an
				// empty scope.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Soft failure: recorded per source, not propagated.
				results[i] = SourceResult{SourceID: sourceID, Err: err}
				return nil
			}

			rows, issues, err := ParseRows(bytes.NewReader(data), ParseOptions{
				SourceID:       sourceID,
				WarningHandler: a.warn,
			})
			if err != nil {
				results[i] = SourceResult{SourceID: sourceID, Issues: issues, Err: err}
				return nil
			}

			results[i] = SourceResult{SourceID: sourceID, Rows: rows, Issues: issues}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return a.merge(scope, results), nil
}

// merge reduces per-source results into ScopeData, in source order so the
// first-write-wins rule is deterministic regardless of fetch interleaving.
func (a *Aggregator) merge(scope Scope, results []SourceResult) *ScopeData {
	data := &ScopeData{
		ScopeID:            scope.ID,
		LinkToDifficulty:   make(map[string]model.Difficulty),
		TotalsByDifficulty: make(map[model.Difficulty]int),
		Results:            results,
	}

	for _, res := range results {
		data.Issues = append(data.Issues, res.Issues...)
		if res.Err != nil {
			data.Issues = append(data.Issues, Issue{SourceID: res.SourceID, Reason: res.Err.Error()})
			a.warn(fmt.Sprintf("%s: source failed: %v", res.SourceID, res.Err))
			continue
		}
		for _, row := range res.Rows {
			if _, seen := data.LinkToDifficulty[row.Identity]; seen {
				continue
			}
			data.LinkToDifficulty[row.Identity] = row.Difficulty
			data.TotalsByDifficulty[row.Difficulty]++
		}
	}

	return data
}
