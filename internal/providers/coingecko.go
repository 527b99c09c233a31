package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/types"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// NewCoinGecko builds the CoinGecko quote/ticker adapter. Quote family:
// each market row becomes a degenerate OHLCV bar with
// open=high=low=close=price and volume set to the 24h total volume.
// Market cap and 24h percent change are decoded but not carried in the
// result. Grounded on
// internal/providers/adapters/coingecko.go.
func NewCoinGecko(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "coingecko",
		BaseURL:         coingeckoBaseURL,
		RateLimitPerSec: 1,
		CacheTTL:        cacheTTLQuote,
		BuildRequest:    coingeckoBuildRequest,
		Normalize:       coingeckoNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

const cacheTTLQuote = 60 * time.Second

func coingeckoBuildRequest(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
	return adapter.BuiltRequest{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/coins/markets", coingeckoBaseURL),
		Query: map[string]string{
			"vs_currency": "usd",
			"ids":         req.Symbol,
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

type coingeckoMarket struct {
	ID                     string  `json:"id"`
	Symbol                 string  `json:"symbol"`
	CurrentPrice           float64 `json:"current_price"`
	MarketCap              float64 `json:"market_cap"`
	TotalVolume            float64 `json:"total_volume"`
	PriceChangePercent24h  float64 `json:"price_change_percentage_24h"`
	LastUpdated            string  `json:"last_updated"`
}

func coingeckoNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var rows []coingeckoMarket
	if err := json.Unmarshal(raw, &rows); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("coingecko: malformed payload: %w", err)
	}

	bars := make([]types.MarketBar, 0, len(rows))
	for _, r := range rows {
		ts := time.Now().UTC()
		if t, err := NormalizeTimestampString(r.LastUpdated); err == nil {
			ts = t
		}
		price := r.CurrentPrice
		bar := types.MarketBar{
			Source:   "coingecko",
			Symbol:   r.ID,
			Interval: req.Interval,
			TS:       ts,
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   r.TotalVolume,
			Provider: "coingecko",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
	}

	return types.CanonicalFetchResult{Kind: types.RowKindQuote, Bars: bars, Request: req}, nil
}
