package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/persistence"
	"github.com/fks/market-data/internal/types"
)

func newMockRepo(t *testing.T) (persistence.OHLCVRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewOHLCVRepo(sqlxDB, time.Second), mock
}

func TestUpsertBarsRunsOneExecPerBar(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO ohlcv")
	mock.ExpectExec("INSERT INTO ohlcv").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ohlcv").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	bars := []types.MarketBar{
		{Source: "binance", Symbol: "BTCUSDT", Interval: "1h", TS: time.Now(), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Source: "binance", Symbol: "BTCUSDT", Interval: "1h", TS: time.Now().Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 11},
	}

	stored, err := repo.UpsertBars(context.Background(), bars)
	require.NoError(t, err)
	require.Equal(t, 2, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBarsEmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	stored, err := repo.UpsertBars(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReturnsErrorAndFalseOnQueryFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT source, symbol, interval, ts, open, high, low, close, volume").
		WillReturnError(sqlmock.ErrCancelled)

	_, found, err := repo.Latest(context.Background(), "binance", "BTCUSDT", "1h")
	require.Error(t, err)
	require.False(t, found)
}

func TestFetchRangeScansRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"source", "symbol", "interval", "ts", "open", "high", "low", "close", "volume"}).
		AddRow("binance", "BTCUSDT", "1h", now, 1.0, 2.0, 0.5, 1.5, 10.0)

	mock.ExpectQuery("SELECT source, symbol, interval, ts, open, high, low, close, volume").WillReturnRows(rows)

	bars, err := repo.FetchRange(context.Background(), "binance", "BTCUSDT", "1h", persistence.TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}, 10)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.Equal(t, "BTCUSDT", bars[0].Symbol)
}
