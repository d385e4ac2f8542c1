package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/market"
)

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	delay   time.Duration
	results map[string][]market.TokenPair
}

func (r *recordingSearcher) Search(_ context.Context, query string) ([]market.TokenPair, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.results[query], nil
}

func (r *recordingSearcher) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	copy(out, r.queries)
	return out
}

func pairFor(symbol string) market.TokenPair {
	return market.TokenPair{
		BaseToken: market.PairToken{Address: "0xabc", Symbol: symbol},
		PriceUSD:  "1.0",
	}
}

func TestDebounceOnlyLastQueryRuns(t *testing.T) {
	searcher := &recordingSearcher{
		results: map[string][]market.TokenPair{
			"pepec": {pairFor("PEPEC")},
		},
	}
	d := NewDebouncedSearch(searcher, 50*time.Millisecond, zap.NewNop())

	// Rapid typing: only the final query should execute
	ctx := context.Background()
	d.Submit(ctx, "p")
	d.Submit(ctx, "pe")
	d.Submit(ctx, "pep")
	d.Submit(ctx, "pepec")

	select {
	case result := <-d.Results():
		if result.Query != "pepec" {
			t.Errorf("Expected result for final query, got %q", result.Query)
		}
		if len(result.Pairs) != 1 || result.Pairs[0].BaseToken.Symbol != "PEPEC" {
			t.Errorf("Unexpected pairs: %+v", result.Pairs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for search result")
	}

	executed := searcher.executed()
	if len(executed) != 1 || executed[0] != "pepec" {
		t.Errorf("Expected exactly one executed query, got %v", executed)
	}
}

func TestDebounceEmptyQueryCancelsPending(t *testing.T) {
	searcher := &recordingSearcher{results: map[string][]market.TokenPair{}}
	d := NewDebouncedSearch(searcher, 30*time.Millisecond, zap.NewNop())

	ctx := context.Background()
	d.Submit(ctx, "pepe")
	d.Submit(ctx, "")

	select {
	case result := <-d.Results():
		if result.Query != "" || len(result.Pairs) != 0 {
			t.Errorf("Expected empty result, got %+v", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for empty result")
	}

	// Give the original window time to expire; nothing should run
	time.Sleep(60 * time.Millisecond)
	if executed := searcher.executed(); len(executed) != 0 {
		t.Errorf("Cancelled query still executed: %v", executed)
	}
}

func TestDebounceStaleReplyDiscarded(t *testing.T) {
	searcher := &recordingSearcher{
		delay: 80 * time.Millisecond,
		results: map[string][]market.TokenPair{
			"old": {pairFor("OLD")},
			"new": {pairFor("NEW")},
		},
	}
	d := NewDebouncedSearch(searcher, 10*time.Millisecond, zap.NewNop())

	ctx := context.Background()
	d.Submit(ctx, "old")
	// Let the old search start, then supersede it mid-flight
	time.Sleep(30 * time.Millisecond)
	d.Submit(ctx, "new")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case result := <-d.Results():
			if result.Query == "old" {
				t.Fatal("Stale reply was delivered")
			}
			if result.Query == "new" {
				if result.Pairs[0].BaseToken.Symbol != "NEW" {
					t.Errorf("Unexpected pairs: %+v", result.Pairs)
				}
				return
			}
		case <-deadline:
			t.Fatal("Timed out waiting for fresh result")
		}
	}
}

func TestDebounceFlushRunsImmediately(t *testing.T) {
	searcher := &recordingSearcher{
		results: map[string][]market.TokenPair{"pepe": {pairFor("PEPE")}},
	}
	d := NewDebouncedSearch(searcher, 10*time.Second, zap.NewNop())

	ctx := context.Background()
	d.Submit(ctx, "pepe")
	d.Flush(ctx)

	select {
	case result := <-d.Results():
		if result.Query != "pepe" {
			t.Errorf("Expected flushed query result, got %q", result.Query)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not run the pending query")
	}
}
