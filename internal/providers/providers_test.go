package providers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/types"
)

func TestBinanceNormalizeSkipsMalformedRows(t *testing.T) {
	raw := []byte(`[
		[1732646400000, "100.0", "101.0", "99.5", "100.5", "123.45", 0, 0, 0, 0, 0, 0],
		[1732646460000]
	]`)
	result, err := binanceNormalize(raw, types.FetchRequest{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, result.Bars, 1)
	bar := result.Bars[0]
	require.Equal(t, 100.0, bar.Open)
	require.Equal(t, 101.0, bar.High)
	require.Equal(t, 99.5, bar.Low)
	require.Equal(t, 100.5, bar.Close)
	require.Equal(t, 123.45, bar.Volume)
	require.Equal(t, int64(1732646400), bar.TS.Unix())
}

func TestCoinbaseNormalizeSortsAscending(t *testing.T) {
	raw := []byte(`[[200,9,11,10,10.5,5],[100,9,11,10,10.1,4]]`)
	result, err := coinbaseNormalize(raw, types.FetchRequest{Symbol: "BTC-USD"})
	require.NoError(t, err)
	require.Len(t, result.Bars, 2)
	require.True(t, result.Bars[0].TS.Before(result.Bars[1].TS))
}

func TestOKXNormalizeProviderErrorFails(t *testing.T) {
	raw := []byte(`{"code":"50001","msg":"service unavailable","data":[]}`)
	_, err := okxNormalize(raw, types.FetchRequest{Symbol: "BTC-USDT"})
	require.Error(t, err)
}

func TestRegistryBuildsAllProviders(t *testing.T) {
	adapters := Build(Deps{})
	for _, name := range Names() {
		require.Contains(t, adapters, name)
		require.NotNil(t, adapters[name])
	}
}

func TestNormalizeEpochHeuristic(t *testing.T) {
	sec := NormalizeEpoch(1732646400)
	ms := NormalizeEpoch(1732646400000)
	require.Equal(t, sec.Unix(), ms.Unix())
}
