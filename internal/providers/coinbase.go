package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/types"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// NewCoinbase builds the Coinbase candles adapter. Bar family. Grounded
// on internal/providers/adapters/coinbase.go.
func NewCoinbase(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "coinbase",
		BaseURL:         coinbaseBaseURL,
		RateLimitPerSec: 8,
		BuildRequest:    coinbaseBuildRequest,
		Normalize:       coinbaseNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

var coinbaseGranularity = map[string]string{
	"1m": "60", "5m": "300", "15m": "900", "1h": "3600", "6h": "21600", "1d": "86400",
}

func coinbaseBuildRequest(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
	granularity, ok := coinbaseGranularity[req.Interval]
	if !ok {
		granularity = "3600"
	}
	return adapter.BuiltRequest{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/products/%s/candles", coinbaseBaseURL, req.Symbol),
		Query:   map[string]string{"granularity": granularity},
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

// coinbaseNormalize parses Coinbase's candle array:
// [time, low, high, open, close, volume] — note the non-OHLC field
// order Coinbase uses, unlike Binance.
func coinbaseNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("coinbase: malformed candle payload: %w", err)
	}

	bars := make([]types.MarketBar, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		bar := types.MarketBar{
			Source:   "coinbase",
			Symbol:   req.Symbol,
			Interval: req.Interval,
			TS:       NormalizeEpoch(r[0]),
			Low:      r[1],
			High:     r[2],
			Open:     r[3],
			Close:    r[4],
			Volume:   r[5],
			Provider: "coinbase",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
	}

	// Coinbase returns newest-first; spec.md §4.2 requires ascending ts.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return types.CanonicalFetchResult{Kind: types.RowKindBar, Bars: bars, Request: req}, nil
}
