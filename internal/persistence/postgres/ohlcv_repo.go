// Package postgres implements the persistence.OHLCVRepo/SplitRepo
// contracts against Postgres, grounded on the teacher's
// internal/persistence/postgres/trades_repo.go (sqlx + lib/pq, timeout
// contexts per call); idempotent writes use INSERT ... ON CONFLICT DO
// UPDATE rather than pq.Error 23505 handling.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fks/market-data/internal/persistence"
	"github.com/fks/market-data/internal/types"
)

// ohlcvRepo implements persistence.OHLCVRepo.
type ohlcvRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOHLCVRepo builds the OHLCV persistence repo over an established
// sqlx connection, applying timeout to each call.
func NewOHLCVRepo(db *sqlx.DB, timeout time.Duration) persistence.OHLCVRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ohlcvRepo{db: db, timeout: timeout}
}

// UpsertBars idempotently writes bars keyed on (source, symbol,
// interval, ts), per spec.md §6's primary key. Conflicting rows are
// overwritten rather than rejected, since a re-fetch of the same
// candle must be a no-op, not a duplicate-key error.
func (r *ohlcvRepo) UpsertBars(ctx context.Context, bars []types.MarketBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(bars)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ohlcv: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ohlcv (source, symbol, interval, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source, symbol, interval, ts) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume`)
	if err != nil {
		return 0, fmt.Errorf("ohlcv: prepare upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, bar := range bars {
		source := bar.Source
		if source == "" {
			source = bar.Provider
		}
		if _, err := stmt.ExecContext(ctx, source, bar.Symbol, bar.Interval, bar.TS,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			return stored, fmt.Errorf("ohlcv: upsert bar %s@%s: %w", bar.Symbol, bar.TS, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ohlcv: commit upsert: %w", err)
	}
	return stored, nil
}

// FetchRange returns bars ascending by timestamp within tr.
func (r *ohlcvRepo) FetchRange(ctx context.Context, source, symbol, interval string, tr persistence.TimeRange, limit int) ([]types.MarketBar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT source, symbol, interval, ts, open, high, low, close, volume
		FROM ohlcv
		WHERE source = $1 AND symbol = $2 AND interval = $3 AND ts >= $4 AND ts <= $5
		ORDER BY ts ASC
		LIMIT $6`

	rows, err := r.db.QueryxContext(ctx, query, source, symbol, interval, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("ohlcv: fetch range: %w", err)
	}
	defer rows.Close()

	var bars []types.MarketBar
	for rows.Next() {
		var bar types.MarketBar
		if err := rows.Scan(&bar.Source, &bar.Symbol, &bar.Interval, &bar.TS, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("ohlcv: scan bar: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// Latest returns the most recent persisted bar for (source, symbol, interval).
func (r *ohlcvRepo) Latest(ctx context.Context, source, symbol, interval string) (types.MarketBar, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT source, symbol, interval, ts, open, high, low, close, volume
		FROM ohlcv
		WHERE source = $1 AND symbol = $2 AND interval = $3
		ORDER BY ts DESC
		LIMIT 1`

	var bar types.MarketBar
	err := r.db.QueryRowxContext(ctx, query, source, symbol, interval).Scan(
		&bar.Source, &bar.Symbol, &bar.Interval, &bar.TS, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.MarketBar{}, false, nil
		}
		return types.MarketBar{}, false, fmt.Errorf("ohlcv: latest: %w", err)
	}
	return bar, true, nil
}
