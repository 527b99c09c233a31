package backfill

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/types"
)

// MaxMissingPct is spec.md §4.5's "valid(df)" threshold: a chunk is
// accepted if at most this fraction of expected rows is missing.
const MaxMissingPct = 0.5

// Fetcher resolves historical bars for one chunk.
type Fetcher interface {
	Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error)
}

// WriteSink persists a validated chunk — both the append-only CSV
// export and the idempotent OHLCV upsert, per spec.md §4.5.
type WriteSink interface {
	AppendCSV(asset types.ActiveAsset, interval string, bars []types.MarketBar) error
	UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error)
}

// SplitMaterializer computes and persists train/val/test boundaries
// once an (asset, interval) range completes.
type SplitMaterializer interface {
	Materialize(ctx context.Context, asset types.ActiveAsset, interval string, bars []types.MarketBar) error
}

// Engine runs spec.md §4.5's chunked historical walk.
type Engine struct {
	store   *Store
	fetcher Fetcher
	sink    WriteSink
	splits  SplitMaterializer
	log     zerolog.Logger
}

// NewEngine builds a walk engine over the given store, provider
// fetcher, persistence sink, and split materializer.
func NewEngine(store *Store, fetcher Fetcher, sink WriteSink, splits SplitMaterializer, log zerolog.Logger) *Engine {
	return &Engine{store: store, fetcher: fetcher, sink: sink, splits: splits, log: log}
}

// ChunkFor returns spec.md §4.5's chunk size for an interval: 1 day for
// sub-hourly bars, 7 days for 1h/4h, 30 days for daily and larger.
func ChunkFor(interval string) time.Duration {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return 24 * time.Hour
	case "1h", "4h":
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// RunOnce walks every enabled asset's tracked intervals one chunk each,
// per spec.md §4.5's pseudocode. Errors on an individual (asset,
// interval) pair are logged and do not halt the rest of the sweep.
func (e *Engine) RunOnce(ctx context.Context, targetStartFor func(types.ActiveAsset) time.Time) error {
	assets, err := e.store.ActiveAssets()
	if err != nil {
		return err
	}

	for _, asset := range assets {
		for _, interval := range asset.Intervals {
			if err := e.stepOne(ctx, asset, interval, targetStartFor(asset)); err != nil {
				e.log.Error().Err(err).Str("asset", asset.Symbol).Str("interval", interval).Msg("backfill step failed")
			}
		}
	}
	return nil
}

func (e *Engine) stepOne(ctx context.Context, asset types.ActiveAsset, interval string, defaultTargetStart time.Time) error {
	targetEnd := time.Now().UTC()
	progress, err := e.store.Progress(asset.ID, interval, defaultTargetStart, targetEnd)
	if err != nil {
		return err
	}
	progress.TargetEnd = targetEnd

	if progress.Done() {
		return nil
	}

	chunkEnd := progress.LastCursor.Add(ChunkFor(interval))
	if chunkEnd.After(progress.TargetEnd) {
		chunkEnd = progress.TargetEnd
	}

	result, _, err := e.fetcher.Fetch(ctx, types.FetchRequest{
		Symbol:   asset.Symbol,
		Interval: interval,
		Start:    progress.LastCursor,
		End:      chunkEnd,
		Provider: asset.Source,
	})
	rows := 0
	if err == nil {
		rows = len(result.Bars)
		if valid(result.Bars, progress.LastCursor, chunkEnd, interval) {
			if sinkErr := e.sink.AppendCSV(asset, interval, result.Bars); sinkErr != nil {
				e.log.Error().Err(sinkErr).Msg("backfill: csv append failed")
			}
			if _, sinkErr := e.sink.UpsertBars(ctx, result.Bars); sinkErr != nil {
				e.log.Error().Err(sinkErr).Msg("backfill: upsert failed")
			}
		} else {
			e.log.Warn().Str("asset", asset.Symbol).Str("interval", interval).Int("rows", rows).Msg("backfill: chunk exceeds missing-row threshold, discarded")
		}
	} else {
		e.log.Error().Err(err).Str("asset", asset.Symbol).Str("interval", interval).Msg("backfill: fetch failed, cursor still advances")
	}

	// The cursor advances even on an empty or failed chunk, per spec.md
	// §4.5, so a permanently-dead range cannot stall the walk forever.
	progress.LastCursor = chunkEnd
	progress.LastRows = rows
	progress.LastRun = time.Now().UTC()
	if err := e.store.SaveProgress(progress); err != nil {
		return err
	}

	if progress.Done() && e.splits != nil {
		if err := e.splits.Materialize(ctx, asset, interval, result.Bars); err != nil {
			e.log.Error().Err(err).Msg("backfill: split materialization failed")
		}
	}
	return nil
}

// valid implements spec.md §4.5's "missing_pct ≤ 50%" acceptance rule,
// comparing the fetched row count to the chunk's expected bar count.
func valid(bars []types.MarketBar, start, end time.Time, interval string) bool {
	expected := expectedRows(start, end, interval)
	if expected <= 0 {
		return true
	}
	missingPct := 1 - float64(len(bars))/float64(expected)
	return missingPct <= MaxMissingPct
}

func expectedRows(start, end time.Time, interval string) int {
	step := intervalDuration(interval)
	if step <= 0 {
		return 0
	}
	return int(end.Sub(start) / step)
}

func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}

// sortBars returns bars sorted ascending by timestamp, used by the
// split materializer before slicing time-based boundaries.
func sortBars(bars []types.MarketBar) []types.MarketBar {
	out := make([]types.MarketBar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}
