package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/market"
)

// Searcher resolves a free-text query to ranked pairs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]market.TokenPair, error)
}

// SearchResult carries the outcome of one executed search, tagged with
// the query that produced it.
type SearchResult struct {
	Query string
	Pairs []market.TokenPair
	Err   error
}

// DebouncedSearch coalesces rapid query updates: only the last query
// submitted within the debounce window is executed. A reply that
// arrives after the query has changed again is discarded, so Results
// never delivers results for a superseded query.
type DebouncedSearch struct {
	mu      sync.Mutex
	delay   time.Duration
	market  Searcher
	logger  *zap.Logger
	timer   *time.Timer
	latest  string
	results chan SearchResult
}

// NewDebouncedSearch creates a debouncer. delay <= 0 uses 500ms.
func NewDebouncedSearch(market Searcher, delay time.Duration, logger *zap.Logger) *DebouncedSearch {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &DebouncedSearch{
		delay:   delay,
		market:  market,
		logger:  logger.Named("search"),
		results: make(chan SearchResult, 1),
	}
}

// Results delivers at most the latest search outcome. Slow consumers
// see only the freshest result.
func (d *DebouncedSearch) Results() <-chan SearchResult {
	return d.results
}

// Submit records a new query and restarts the debounce window. An empty
// query cancels any pending search and emits an empty result.
func (d *DebouncedSearch) Submit(ctx context.Context, query string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = query
	if d.timer != nil {
		d.timer.Stop()
	}

	if query == "" {
		d.deliver(SearchResult{Query: ""})
		return
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.execute(ctx, query)
	})
}

// Flush runs the pending query immediately, skipping the rest of the
// debounce window.
func (d *DebouncedSearch) Flush(ctx context.Context) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	query := d.latest
	d.mu.Unlock()

	if query != "" {
		d.execute(ctx, query)
	}
}

// execute runs the search for query and delivers the result unless the
// query was superseded while the request was in flight.
func (d *DebouncedSearch) execute(ctx context.Context, query string) {
	pairs, err := d.market.Search(ctx, query)

	d.mu.Lock()
	defer d.mu.Unlock()

	if query != d.latest {
		d.logger.Debug("Discarding stale search reply", zap.String("query", query))
		return
	}
	if err != nil {
		d.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
	}
	d.deliver(SearchResult{Query: query, Pairs: pairs, Err: err})
}

// deliver replaces any unconsumed result with the new one. Caller holds
// the lock.
func (d *DebouncedSearch) deliver(r SearchResult) {
	for {
		select {
		case d.results <- r:
			return
		default:
			select {
			case <-d.results:
			default:
			}
		}
	}
}
