package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fks/market-data/internal/persistence"
	"github.com/fks/market-data/internal/types"
)

// splitRepo implements persistence.SplitRepo.
type splitRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSplitRepo builds the dataset_splits persistence repo.
func NewSplitRepo(db *sqlx.DB, timeout time.Duration) persistence.SplitRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &splitRepo{db: db, timeout: timeout}
}

// UpsertSplitBoundaries idempotently writes boundary rows keyed on
// (source, symbol, interval, split), per spec.md §6.
func (r *splitRepo) UpsertSplitBoundaries(ctx context.Context, boundaries []types.SplitBoundary) error {
	if len(boundaries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("splits: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_splits (source, symbol, interval, split, start_ts, end_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, symbol, interval, split) DO UPDATE SET
			start_ts = EXCLUDED.start_ts, end_ts = EXCLUDED.end_ts`)
	if err != nil {
		return fmt.Errorf("splits: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range boundaries {
		if _, err := stmt.ExecContext(ctx, b.Source, b.Symbol, b.Interval, b.Split, b.StartTS, b.EndTS); err != nil {
			return fmt.Errorf("splits: upsert boundary %s/%s: %w", b.Symbol, b.Split, err)
		}
	}
	return tx.Commit()
}

// ListSplits returns the boundary rows for (source, symbol, interval).
func (r *splitRepo) ListSplits(ctx context.Context, source, symbol, interval string) ([]types.SplitBoundary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT source, symbol, interval, split, start_ts, end_ts
		FROM dataset_splits
		WHERE source = $1 AND symbol = $2 AND interval = $3
		ORDER BY start_ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, source, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("splits: list: %w", err)
	}
	defer rows.Close()

	var out []types.SplitBoundary
	for rows.Next() {
		var b types.SplitBoundary
		if err := rows.Scan(&b.Source, &b.Symbol, &b.Interval, &b.Split, &b.StartTS, &b.EndTS); err != nil {
			return nil, fmt.Errorf("splits: scan boundary: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
