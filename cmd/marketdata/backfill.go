package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fks/market-data/internal/backfill"
	"github.com/fks/market-data/internal/types"
)

var (
	backfillStorePath string
	backfillCSVDir    string
	backfillYears     int
)

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Walk tracked assets chunk by chunk, filling historical OHLCV and materializing dataset splits",
		RunE:  runBackfill,
	}
	cmd.Flags().StringVar(&backfillStorePath, "store", "data/backfill.db", "path to the SQLite-backed progress store")
	cmd.Flags().StringVar(&backfillCSVDir, "csv-dir", "data/csv", "directory for append-only CSV exports")
	cmd.Flags().IntVar(&backfillYears, "years", 2, "default history depth when an asset has no recorded progress")
	return cmd
}

// combinedSink satisfies backfill.WriteSink by fanning a validated
// chunk out to both the append-only CSV export and the idempotent
// Postgres upsert, per spec.md §4.5's dual-write requirement.
type combinedSink struct {
	csv   *backfill.FileCSVSink
	ohlcv interface {
		UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error)
	}
}

func (s *combinedSink) AppendCSV(asset types.ActiveAsset, interval string, bars []types.MarketBar) error {
	return s.csv.AppendCSV(asset, interval, bars)
}

func (s *combinedSink) UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error) {
	return s.ohlcv.UpsertBars(ctx, bars)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(log.Logger)
	if err != nil {
		return err
	}

	repo, err := a.repository()
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	store, err := backfill.Open(backfillStorePath)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(backfillCSVDir, 0755); err != nil {
		return fmt.Errorf("backfill: create csv dir: %w", err)
	}
	csvSink := backfill.NewFileCSVSink(backfillCSVDir)
	sink := &combinedSink{csv: csvSink, ohlcv: repo.OHLCV}
	materializer := backfill.NewTimeSplitMaterializer(repo.Splits, csvSink)

	engine := backfill.NewEngine(store, a.mgr, sink, materializer, log.Logger)

	years := backfillYears
	targetStartFor := func(asset types.ActiveAsset) time.Time {
		depth := years
		if asset.FullHistory {
			depth = 20
		} else if asset.Years > 0 {
			depth = asset.Years
		}
		return time.Now().UTC().AddDate(-depth, 0, 0)
	}

	return engine.RunOnce(context.Background(), targetStartFor)
}
