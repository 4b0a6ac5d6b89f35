package source

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solvetrack/pkg/model"
)

func row(url, title, diff string) string {
	return `{"url":"` + url + `","title":"` + title + `","difficulty":"` + diff + `"}` + "\n"
}

func TestAggregateSingleSource(t *testing.T) {
	fetcher := MapFetcher{
		"list-a": []byte(row("https://x.test/p/a", "A", "Easy") +
			row("https://x.test/p/b", "B", "Medium") +
			row("https://x.test/p/c", "C", "Hard")),
	}
	agg := NewAggregator(fetcher)

	data, err := agg.Aggregate(context.Background(), Scope{ID: "list-a", Sources: []string{"list-a"}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(data.LinkToDifficulty) != 3 {
		t.Fatalf("got %d identities, want 3", len(data.LinkToDifficulty))
	}
	if data.TotalsByDifficulty[model.DifficultyEasy] != 1 ||
		data.TotalsByDifficulty[model.DifficultyMedium] != 1 ||
		data.TotalsByDifficulty[model.DifficultyHard] != 1 {
		t.Errorf("totals = %v", data.TotalsByDifficulty)
	}
}

func TestAggregateDedupFirstWriteWins(t *testing.T) {
	// The same identity appears in both sources with conflicting tags; the
	// earlier source's tag must win and the item must count once.
	fetcher := MapFetcher{
		"first":  []byte(row("https://x.test/p/shared", "Shared", "Easy")),
		"second": []byte(row("https://x.test/p/shared/", "Shared again", "Hard") + row("https://x.test/p/own", "Own", "Medium")),
	}
	agg := NewAggregator(fetcher)

	data, err := agg.Aggregate(context.Background(), Scope{ID: "grp", Sources: []string{"first", "second"}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(data.LinkToDifficulty) != 2 {
		t.Fatalf("got %d identities, want 2 after dedup", len(data.LinkToDifficulty))
	}
	if got := data.LinkToDifficulty["https://x.test/p/shared"]; got != model.DifficultyEasy {
		t.Errorf("shared item difficulty = %q, want first source's EASY", got)
	}
	if data.TotalsByDifficulty[model.DifficultyHard] != 0 {
		t.Errorf("HARD total = %d, want 0 (losing tag must not count)", data.TotalsByDifficulty[model.DifficultyHard])
	}
}

func TestAggregatePartialSourceFailure(t *testing.T) {
	fetcher := MapFetcher{
		"good": []byte(row("https://x.test/p/a", "A", "Easy")),
		// "missing" is not in the map, so its fetch fails.
	}
	var warnings []string
	var mu sync.Mutex
	agg := NewAggregator(fetcher, WithWarningHandler(func(msg string) {
		mu.Lock()
		warnings = append(warnings, msg)
		mu.Unlock()
	}))

	data, err := agg.Aggregate(context.Background(), Scope{ID: "grp", Sources: []string{"missing", "good"}})
	if err != nil {
		t.Fatalf("Aggregate must not fail on a single bad source: %v", err)
	}
	if len(data.LinkToDifficulty) != 1 {
		t.Errorf("got %d identities, want 1 from the healthy source", len(data.LinkToDifficulty))
	}
	if len(data.Issues) != 1 {
		t.Errorf("got %d issues, want 1 for the failed source", len(data.Issues))
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the failed source")
	}
}

func TestAggregateAllSourcesFailed(t *testing.T) {
	agg := NewAggregator(MapFetcher{})
	data, err := agg.Aggregate(context.Background(), Scope{ID: "grp", Sources: []string{"x", "y"}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(data.LinkToDifficulty) != 0 || len(data.Issues) != 2 {
		t.Errorf("identities=%d issues=%d, want 0/2", len(data.LinkToDifficulty), len(data.Issues))
	}
}

// slowFetcher counts how many fetches run at once.
type slowFetcher struct {
	delay   time.Duration
	current atomic.Int64
	peak    atomic.Int64
}

func (f *slowFetcher) FetchScopeSource(ctx context.Context, sourceID string) ([]byte, error) {
	cur := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []byte(row("https://x.test/p/"+sourceID, sourceID, "Easy")), nil
}

func TestAggregateBoundedConcurrency(t *testing.T) {
	fetcher := &slowFetcher{delay: 20 * time.Millisecond}
	agg := NewAggregator(fetcher, WithFetchLimit(2))

	sources := []string{"a", "b", "c", "d", "e", "f"}
	data, err := agg.Aggregate(context.Background(), Scope{ID: "grp", Sources: sources})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(data.LinkToDifficulty) != len(sources) {
		t.Errorf("got %d identities, want %d", len(data.LinkToDifficulty), len(sources))
	}
	if peak := fetcher.peak.Load(); peak > 2 {
		t.Errorf("peak concurrent fetches = %d, want <= 2", peak)
	}
}

func TestAggregateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &slowFetcher{delay: time.Second}
	agg := NewAggregator(fetcher)
	_, err := agg.Aggregate(ctx, Scope{ID: "grp", Sources: []string{"a", "b"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// stallingFetcher blocks until its context is cancelled, signalling once the
// fetch has actually started.
type stallingFetcher struct {
	started chan struct{}
}

func (f *stallingFetcher) FetchScopeSource(ctx context.Context, sourceID string) ([]byte, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAggregateCancelledMidFetch(t *testing.T) {
	// Cancellation landing while a fetch is in flight must fail the whole
	// aggregation, not get recorded as one more failed source that leaves an
	// empty-but-successful scope behind.
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &stallingFetcher{started: make(chan struct{}, 1)}
	agg := NewAggregator(fetcher)

	go func() {
		<-fetcher.started
		cancel()
	}()

	data, err := agg.Aggregate(ctx, Scope{ID: "grp", Sources: []string{"a"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if data != nil {
		t.Errorf("got data %+v from a cancelled aggregation, want nil", data)
	}
}

func TestAggregateNilFetcher(t *testing.T) {
	agg := &Aggregator{}
	if _, err := agg.Aggregate(context.Background(), Scope{ID: "x"}); err == nil {
		t.Error("expected error for nil fetcher")
	}
}
