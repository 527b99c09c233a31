package deltascan

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// tickRepo persists scanner output to the `tick_data` hypertable
// described in spec.md §6, grounded on
// internal/persistence/postgres/ohlcv_repo.go's prepared-insert
// pattern. It implements Sink.
type tickRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTickRepo builds a Sink backed by Postgres/TimescaleDB's tick_data
// hypertable.
func NewTickRepo(db *sqlx.DB, timeout time.Duration) Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &tickRepo{db: db, timeout: timeout}
}

// SaveChange inserts one row per detected change. tick_data is a
// hypertable keyed by (time, symbol, exchange) with no uniqueness
// constraint spec.md requires enforcing here, so this is a plain
// insert rather than an upsert.
func (r *tickRepo) SaveChange(ctx context.Context, symbol, exchange string, change Change) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tick_data (time, symbol, exchange, last, price_delta, delta_pct, direction, is_micro_change, binary_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		change.Timestamp, symbol, exchange, change.NewPrice, change.Delta, change.DeltaPct,
		int(change.Direction), change.IsMicro, change.Direction.Binary())
	if err != nil {
		return fmt.Errorf("deltascan: insert tick_data row for %s@%s: %w", symbol, exchange, err)
	}
	return nil
}
