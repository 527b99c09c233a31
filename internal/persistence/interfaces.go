// Package persistence defines the storage-layer contracts backed by
// Postgres (internal/persistence/postgres), per spec.md §4.6.
package persistence

import (
	"context"
	"time"

	"github.com/fks/market-data/internal/types"
)

// TimeRange represents a time window for data queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// OHLCVRepo provides idempotent bar persistence and range queries over
// the `ohlcv` table described in spec.md §6.
type OHLCVRepo interface {
	// UpsertBars idempotently writes bars keyed on (source, symbol,
	// interval, ts), returning the number of rows affected.
	UpsertBars(ctx context.Context, bars []types.MarketBar) (stored int, err error)

	// FetchRange returns bars for (source, symbol, interval) within tr,
	// ascending by timestamp.
	FetchRange(ctx context.Context, source, symbol, interval string, tr TimeRange, limit int) ([]types.MarketBar, error)

	// Latest returns the most recent persisted bar for (source, symbol,
	// interval), or (zero value, false) if none exists.
	Latest(ctx context.Context, source, symbol, interval string) (types.MarketBar, bool, error)
}

// SplitRepo provides `dataset_splits` boundary persistence.
type SplitRepo interface {
	// UpsertSplitBoundaries idempotently writes split boundary rows
	// keyed on (source, symbol, interval, split).
	UpsertSplitBoundaries(ctx context.Context, boundaries []types.SplitBoundary) error

	// ListSplits returns the boundary rows for (source, symbol, interval).
	ListSplits(ctx context.Context, source, symbol, interval string) ([]types.SplitBoundary, error)
}

// Repository aggregates the Postgres-backed persistence interfaces.
type Repository struct {
	OHLCV  OHLCVRepo
	Splits SplitRepo
}

// HealthCheck represents repository health status.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}
