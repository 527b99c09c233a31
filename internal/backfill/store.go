// Package backfill tracks which assets/intervals need historical data
// and walks providers chunk by chunk to fill them in, per spec.md §4.5.
package backfill

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fks/market-data/internal/types"
)

// Store is the embedded relational store for ActiveAsset and
// BackfillProgress, grounded on
// aristath-sentinel/trader-go/internal/database/db.go's modernc.org/sqlite
// connection setup (WAL mode, foreign keys on).
type Store struct {
	conn *sql.DB
}

// Open creates (or reopens) the SQLite-backed tracked-asset store at
// path, creating its schema if absent.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("backfill: create store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("backfill: open store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("backfill: ping store: %w", err)
	}
	conn.SetMaxOpenConns(1) // sqlite: single writer; avoid SQLITE_BUSY under WAL

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`
CREATE TABLE IF NOT EXISTS active_assets (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	intervals     TEXT NOT NULL,
	asset_type    TEXT NOT NULL,
	exchange      TEXT NOT NULL,
	years         INTEGER NOT NULL,
	full_history  INTEGER NOT NULL,
	enabled       INTEGER NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS backfill_progress (
	asset_id     TEXT NOT NULL,
	interval     TEXT NOT NULL,
	last_cursor  TIMESTAMP NOT NULL,
	target_start TIMESTAMP NOT NULL,
	target_end   TIMESTAMP NOT NULL,
	last_rows    INTEGER NOT NULL DEFAULT 0,
	last_run     TIMESTAMP,
	PRIMARY KEY (asset_id, interval)
);
`)
	if err != nil {
		return fmt.Errorf("backfill: migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.conn.Close() }

// ActiveAssets returns every enabled tracked asset.
func (s *Store) ActiveAssets() ([]types.ActiveAsset, error) {
	rows, err := s.conn.Query(`SELECT id, source, symbol, intervals, asset_type, exchange, years, full_history, enabled, created_at, updated_at FROM active_assets WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("backfill: query active assets: %w", err)
	}
	defer rows.Close()

	var out []types.ActiveAsset
	for rows.Next() {
		var a types.ActiveAsset
		var intervalsCSV string
		var fullHistory, enabled int
		if err := rows.Scan(&a.ID, &a.Source, &a.Symbol, &intervalsCSV, &a.AssetType, &a.Exchange, &a.Years, &fullHistory, &enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("backfill: scan active asset: %w", err)
		}
		a.Intervals = splitCSV(intervalsCSV)
		a.FullHistory = fullHistory != 0
		a.Enabled = enabled != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAsset inserts or replaces a tracked asset definition.
func (s *Store) UpsertAsset(a types.ActiveAsset) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.conn.Exec(`
INSERT INTO active_assets (id, source, symbol, intervals, asset_type, exchange, years, full_history, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	source=excluded.source, symbol=excluded.symbol, intervals=excluded.intervals,
	asset_type=excluded.asset_type, exchange=excluded.exchange, years=excluded.years,
	full_history=excluded.full_history, enabled=excluded.enabled, updated_at=excluded.updated_at
`, a.ID, a.Source, a.Symbol, joinCSV(a.Intervals), a.AssetType, a.Exchange, a.Years, boolToInt(a.FullHistory), boolToInt(a.Enabled), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("backfill: upsert asset: %w", err)
	}
	return nil
}

// Progress returns the tracked cursor for (assetID, interval), creating
// a fresh zero-cursor row anchored at targetStart if none exists yet.
func (s *Store) Progress(assetID, interval string, targetStart, targetEnd time.Time) (types.BackfillProgress, error) {
	row := s.conn.QueryRow(`SELECT last_cursor, target_start, target_end, last_rows, last_run FROM backfill_progress WHERE asset_id = ? AND interval = ?`, assetID, interval)

	var p types.BackfillProgress
	var lastRun sql.NullTime
	err := row.Scan(&p.LastCursor, &p.TargetStart, &p.TargetEnd, &p.LastRows, &lastRun)
	if err == sql.ErrNoRows {
		p = types.BackfillProgress{
			AssetID:     assetID,
			Interval:    interval,
			LastCursor:  targetStart,
			TargetStart: targetStart,
			TargetEnd:   targetEnd,
		}
		if err := s.SaveProgress(p); err != nil {
			return types.BackfillProgress{}, err
		}
		return p, nil
	}
	if err != nil {
		return types.BackfillProgress{}, fmt.Errorf("backfill: load progress: %w", err)
	}
	p.AssetID = assetID
	p.Interval = interval
	if lastRun.Valid {
		p.LastRun = lastRun.Time
	}
	return p, nil
}

// SaveProgress persists the cursor after a chunk walk.
func (s *Store) SaveProgress(p types.BackfillProgress) error {
	_, err := s.conn.Exec(`
INSERT INTO backfill_progress (asset_id, interval, last_cursor, target_start, target_end, last_rows, last_run)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(asset_id, interval) DO UPDATE SET
	last_cursor=excluded.last_cursor, target_end=excluded.target_end,
	last_rows=excluded.last_rows, last_run=excluded.last_run
`, p.AssetID, p.Interval, p.LastCursor, p.TargetStart, p.TargetEnd, p.LastRows, p.LastRun)
	if err != nil {
		return fmt.Errorf("backfill: save progress: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinCSV(parts []string) string {
	return strings.Join(parts, ",")
}
