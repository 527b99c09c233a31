package backfill

import (
	"context"
	"fmt"

	"github.com/fks/market-data/internal/types"
)

// SplitRatios are spec.md §4.5's time-based 80/10/10 train/val/test
// boundaries.
var SplitRatios = map[types.DatasetSplit]float64{
	types.SplitTrain: 0.8,
	types.SplitVal:   0.1,
	types.SplitTest:  0.1,
}

// SplitBoundaryWriter persists the `dataset_splits` boundary rows. C8's
// Postgres store implements this.
type SplitBoundaryWriter interface {
	UpsertSplitBoundaries(ctx context.Context, boundaries []types.SplitBoundary) error
}

// CSVSplitWriter writes one CSV file per split, named by caller
// convention (symbol_interval_split.csv).
type CSVSplitWriter interface {
	WriteSplitCSV(asset types.ActiveAsset, interval string, split types.DatasetSplit, bars []types.MarketBar) error
}

// TimeSplitMaterializer computes time-based 80/10/10 splits over the
// sorted timestamp range and writes both the CSV exports and the
// boundary rows, per spec.md §4.5.
type TimeSplitMaterializer struct {
	boundaries SplitBoundaryWriter
	csv        CSVSplitWriter
}

// NewTimeSplitMaterializer builds a materializer over the given
// boundary and CSV sinks.
func NewTimeSplitMaterializer(boundaries SplitBoundaryWriter, csv CSVSplitWriter) *TimeSplitMaterializer {
	return &TimeSplitMaterializer{boundaries: boundaries, csv: csv}
}

// Materialize slices bars into ascending-time train/val/test segments
// and persists both the CSV exports and the `dataset_splits` boundary
// rows.
func (m *TimeSplitMaterializer) Materialize(ctx context.Context, asset types.ActiveAsset, interval string, bars []types.MarketBar) error {
	if len(bars) == 0 {
		return nil
	}
	sorted := sortBars(bars)

	trainEnd := int(float64(len(sorted)) * SplitRatios[types.SplitTrain])
	valEnd := trainEnd + int(float64(len(sorted))*SplitRatios[types.SplitVal])
	if valEnd > len(sorted) {
		valEnd = len(sorted)
	}

	segments := map[types.DatasetSplit][]types.MarketBar{
		types.SplitTrain: sorted[:trainEnd],
		types.SplitVal:   sorted[trainEnd:valEnd],
		types.SplitTest:  sorted[valEnd:],
	}

	var boundaries []types.SplitBoundary
	for split, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if m.csv != nil {
			if err := m.csv.WriteSplitCSV(asset, interval, split, seg); err != nil {
				return fmt.Errorf("backfill: write split csv: %w", err)
			}
		}
		boundaries = append(boundaries, types.SplitBoundary{
			Source:   asset.Source,
			Symbol:   asset.Symbol,
			Interval: interval,
			Split:    split,
			StartTS:  seg[0].TS,
			EndTS:    seg[len(seg)-1].TS,
		})
	}

	if m.boundaries != nil && len(boundaries) > 0 {
		if err := m.boundaries.UpsertSplitBoundaries(ctx, boundaries); err != nil {
			return fmt.Errorf("backfill: upsert split boundaries: %w", err)
		}
	}
	return nil
}
