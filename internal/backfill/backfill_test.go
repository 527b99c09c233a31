package backfill

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/types"
)

func TestChunkForByInterval(t *testing.T) {
	require.Equal(t, 24*time.Hour, ChunkFor("5m"))
	require.Equal(t, 7*24*time.Hour, ChunkFor("1h"))
	require.Equal(t, 30*24*time.Hour, ChunkFor("1d"))
}

func TestStoreUpsertAssetAndProgressRoundTrip(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "backfill.db"))
	require.NoError(t, err)
	defer store.Close()

	asset := types.ActiveAsset{
		ID:        "a1",
		Source:    "binance",
		Symbol:    "BTCUSDT",
		Intervals: []string{"1h", "1d"},
		AssetType: "crypto",
		Exchange:  "binance",
		Enabled:   true,
	}
	require.NoError(t, store.UpsertAsset(asset))

	assets, err := store.ActiveAssets()
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Equal(t, []string{"1h", "1d"}, assets[0].Intervals)

	start := time.Now().Add(-48 * time.Hour).UTC()
	end := time.Now().UTC()
	progress, err := store.Progress("a1", "1h", start, end)
	require.NoError(t, err)
	require.False(t, progress.Done())
	require.WithinDuration(t, start, progress.LastCursor, time.Second)

	progress.LastCursor = end
	progress.LastRows = 42
	require.NoError(t, store.SaveProgress(progress))

	reloaded, err := store.Progress("a1", "1h", start, end)
	require.NoError(t, err)
	require.True(t, reloaded.Done())
	require.Equal(t, 42, reloaded.LastRows)
}

type stubEngineFetcher struct {
	bars []types.MarketBar
	err  error
}

func (f *stubEngineFetcher) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error) {
	if f.err != nil {
		return types.CanonicalFetchResult{}, "", f.err
	}
	return types.CanonicalFetchResult{Bars: f.bars}, "binance", nil
}

type stubSink struct {
	appended []types.MarketBar
	upserted []types.MarketBar
}

func (s *stubSink) AppendCSV(asset types.ActiveAsset, interval string, bars []types.MarketBar) error {
	s.appended = append(s.appended, bars...)
	return nil
}

func (s *stubSink) UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error) {
	s.upserted = append(s.upserted, bars...)
	return len(bars), nil
}

func TestEngineStepOneAdvancesCursorEvenOnEmptyChunk(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "backfill.db"))
	require.NoError(t, err)
	defer store.Close()

	asset := types.ActiveAsset{ID: "a1", Source: "binance", Symbol: "BTCUSDT", Intervals: []string{"1h"}, Enabled: true}
	require.NoError(t, store.UpsertAsset(asset))

	fetcher := &stubEngineFetcher{bars: nil}
	sink := &stubSink{}
	engine := NewEngine(store, fetcher, sink, nil, zerolog.Nop())

	start := time.Now().Add(-240 * time.Hour).UTC()
	err = engine.stepOne(context.Background(), asset, "1h", start)
	require.NoError(t, err)

	progress, err := store.Progress("a1", "1h", start, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, progress.LastCursor.After(start))
}

func TestTimeSplitMaterializerProducesThreeSegments(t *testing.T) {
	bars := make([]types.MarketBar, 100)
	base := time.Now().Add(-100 * time.Hour).UTC()
	for i := range bars {
		bars[i] = types.MarketBar{TS: base.Add(time.Duration(i) * time.Hour), Close: float64(i)}
	}

	csvSink := &stubSplitCSV{}
	boundarySink := &stubSplitBoundary{}
	m := NewTimeSplitMaterializer(boundarySink, csvSink)

	asset := types.ActiveAsset{Source: "binance", Symbol: "BTCUSDT"}
	require.NoError(t, m.Materialize(context.Background(), asset, "1h", bars))

	require.Len(t, boundarySink.boundaries, 3)
	require.Len(t, csvSink.writes, 3)
}

type stubSplitCSV struct{ writes int }

func (s *stubSplitCSV) WriteSplitCSV(asset types.ActiveAsset, interval string, split types.DatasetSplit, bars []types.MarketBar) error {
	s.writes++
	return nil
}

type stubSplitBoundary struct{ boundaries []types.SplitBoundary }

func (s *stubSplitBoundary) UpsertSplitBoundaries(ctx context.Context, boundaries []types.SplitBoundary) error {
	s.boundaries = append(s.boundaries, boundaries...)
	return nil
}
