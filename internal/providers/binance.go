package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/types"
)

const binanceBaseURL = "https://api.binance.com/api/v3"

// NewBinance builds the Binance kline adapter. Bar family, per spec.md
// §4.2. Grounded on internal/providers/adapters/binance.go's GetKlines
// raw-array parsing idiom.
func NewBinance(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "binance",
		BaseURL:         binanceBaseURL,
		RateLimitPerSec: 10,
		BuildRequest:    binanceBuildRequest,
		Normalize:       binanceNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

func binanceBuildRequest(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	return adapter.BuiltRequest{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/klines", binanceBaseURL),
		Query: map[string]string{
			"symbol":   req.Symbol,
			"interval": req.Interval,
			"limit":    fmt.Sprintf("%d", limit),
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

// binanceNormalize parses Binance's raw kline array:
// [openTime, open, high, low, close, volume, closeTime, ...]. Malformed
// rows are skipped, not fatal, per spec.md §4.1.
func binanceNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("binance: malformed kline payload: %w", err)
	}

	bars := make([]types.MarketBar, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		openTimeMs, ok := r[0].(float64)
		if !ok {
			continue
		}
		bar := types.MarketBar{
			Source:   "binance",
			Symbol:   req.Symbol,
			Interval: req.Interval,
			TS:       NormalizeEpoch(openTimeMs),
			Open:     ParseFloat(r[1]),
			High:     ParseFloat(r[2]),
			Low:      ParseFloat(r[3]),
			Close:    ParseFloat(r[4]),
			Volume:   ParseFloat(r[5]),
			Provider: "binance",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
	}

	return types.CanonicalFetchResult{Kind: types.RowKindBar, Bars: bars, Request: req}, nil
}
