package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWatchlistFromEnvDefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("FKS_WATCHLIST")
	require.Equal(t, defaultWatchlist, watchlistFromEnv())
}

func TestWatchlistFromEnvSplitsAndTrimsCSV(t *testing.T) {
	t.Setenv("FKS_WATCHLIST", "BTCUSD, ETHUSD ,SOLUSD")
	require.Equal(t, []string{"BTCUSD", "ETHUSD", "SOLUSD"}, watchlistFromEnv())
}

func TestWatchlistFromEnvBlankValueFallsBackToDefault(t *testing.T) {
	t.Setenv("FKS_WATCHLIST", "  ,  ")
	require.Equal(t, defaultWatchlist, watchlistFromEnv())
}
