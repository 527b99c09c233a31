package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fks/market-data/internal/types"
)

// Fetcher is the subset of *manager.Manager a task depends on.
type Fetcher interface {
	Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error)
}

// Store is the idempotent upsert surface a task persists through. C8
// implements this against Postgres.
type Store interface {
	UpsertBars(ctx context.Context, bars []types.MarketBar) (stored int, err error)
}

// CollectOHLCVTask is spec.md §4.4's authoritative scheduled job:
// resolve via the manager, persist via the idempotent upsert, report a
// summary.
type CollectOHLCVTask struct {
	Symbol   string
	Interval string
	Limit    int
	Provider string // optional pin; empty defers to manager priority order

	fetcher Fetcher
	store   Store
}

// NewCollectOHLCVTask builds the task for one (symbol, interval) pair.
func NewCollectOHLCVTask(symbol, interval string, limit int, provider string, fetcher Fetcher, store Store) *CollectOHLCVTask {
	return &CollectOHLCVTask{
		Symbol:   symbol,
		Interval: interval,
		Limit:    limit,
		Provider: provider,
		fetcher:  fetcher,
		store:    store,
	}
}

// Name identifies this task instance for logging.
func (t *CollectOHLCVTask) Name() string {
	return fmt.Sprintf("collect_ohlcv(%s,%s)", t.Symbol, t.Interval)
}

// Run implements spec.md §4.4's three-step job body.
func (t *CollectOHLCVTask) Run(ctx context.Context) (Result, error) {
	req := types.FetchRequest{
		Symbol:   t.Symbol,
		Interval: t.Interval,
		Limit:    t.Limit,
		Provider: t.Provider,
		UseCache: true,
	}

	result, provider, err := t.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("collect_ohlcv: resolve failed: %w", err)
	}

	stored, err := t.store.UpsertBars(ctx, result.Bars)
	if err != nil {
		return Result{}, fmt.Errorf("collect_ohlcv: persist failed: %w", err)
	}

	return Result{
		Status:         "ok",
		Provider:       provider,
		CandlesFetched: len(result.Bars),
		CandlesStored:  stored,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// FanOut builds one CollectOHLCVTask per (symbol, interval) pair, per
// spec.md §4.4's "one task per tracked symbol per interval" schedule.
func FanOut(symbols, intervals []string, limit int, fetcher Fetcher, store Store) []*CollectOHLCVTask {
	tasks := make([]*CollectOHLCVTask, 0, len(symbols)*len(intervals))
	for _, symbol := range symbols {
		for _, interval := range intervals {
			tasks = append(tasks, NewCollectOHLCVTask(symbol, interval, limit, "", fetcher, store))
		}
	}
	return tasks
}
