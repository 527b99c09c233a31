package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/types"
)

type stubFetcher struct {
	result types.CanonicalFetchResult
	err    error
}

func (s *stubFetcher) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error) {
	if s.err != nil {
		return types.CanonicalFetchResult{}, "", s.err
	}
	return s.result, "binance", nil
}

type stubStore struct {
	stored int
	err    error
}

func (s *stubStore) UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.stored = len(bars)
	return s.stored, nil
}

func TestCollectOHLCVTaskRunSuccess(t *testing.T) {
	fetcher := &stubFetcher{result: types.CanonicalFetchResult{Bars: []types.MarketBar{{Symbol: "BTCUSDT"}}}}
	store := &stubStore{}

	task := NewCollectOHLCVTask("BTCUSDT", "1h", 500, "", fetcher, store)
	result, err := task.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Equal(t, "binance", result.Provider)
	require.Equal(t, 1, result.CandlesFetched)
	require.Equal(t, 1, result.CandlesStored)
}

func TestCollectOHLCVTaskRunFetchFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("all providers exhausted")}
	task := NewCollectOHLCVTask("BTCUSDT", "1h", 500, "", fetcher, &stubStore{})
	_, err := task.Run(context.Background())
	require.Error(t, err)
}

type countingTask struct {
	calls int
	fail  int
}

func (c *countingTask) Name() string { return "counting" }

func (c *countingTask) Run(ctx context.Context) (Result, error) {
	c.calls++
	if c.calls <= c.fail {
		return Result{}, errors.New("transient")
	}
	return Result{Status: "ok"}, nil
}

func TestRunWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	task := &countingTask{fail: 2}
	result, err := RunWithRetry(context.Background(), task, 3, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
	require.Equal(t, 3, task.calls)
}

func TestRunWithRetryExhaustsAttempts(t *testing.T) {
	task := &countingTask{fail: 10}
	_, err := RunWithRetry(context.Background(), task, 3, zerolog.Nop())
	require.Error(t, err)
	require.Equal(t, 3, task.calls)
}

func TestFanOutBuildsCrossProduct(t *testing.T) {
	fetcher := &stubFetcher{result: types.CanonicalFetchResult{}}
	store := &stubStore{}
	tasks := FanOut([]string{"BTCUSDT", "ETHUSDT"}, []string{"1h", "1d"}, 500, fetcher, store)
	require.Len(t, tasks, 4)
}

func TestSchedulerRunNowRespectsPoolBound(t *testing.T) {
	s := New(1, zerolog.Nop())
	fetcher := &stubFetcher{result: types.CanonicalFetchResult{}}
	task := NewCollectOHLCVTask("BTCUSDT", "1h", 100, "", fetcher, &stubStore{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := s.RunNow(ctx, task)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
}
