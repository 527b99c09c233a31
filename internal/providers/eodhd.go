package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/secrets"
	"github.com/fks/market-data/internal/types"
)

const eodhdBaseURL = "https://eodhd.com/api"

// NewEODHD builds the EODHD fundamentals/time-series adapter.
// Time-series family, per spec.md §4.2: {ts, value} rows with
// provider-specific extras (earnings estimate/actual, insider
// transactions) preserved in a sidecar map. The same shape serves as
// the template for AlphaVantage/Tiingo/Finnhub, not separately
// implemented (see DESIGN.md).
func NewEODHD(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "eodhd",
		BaseURL:         eodhdBaseURL,
		RateLimitPerSec: 2,
		CacheTTL:        cacheTTLFundamentals,
		BuildRequest:    eodhdBuildRequestFunc(deps.Secrets),
		Normalize:       eodhdNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

const cacheTTLFundamentals = 24 * time.Hour

func eodhdBuildRequestFunc(sp secrets.Provider) func(context.Context, types.FetchRequest) (adapter.BuiltRequest, error) {
	return func(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
		query := map[string]string{"fmt": "json"}
		if sp != nil {
			if key, ok := sp.GetAPIKey("eodhd"); ok {
				query["api_token"] = key
			}
		}
		return adapter.BuiltRequest{
			Method:  http.MethodGet,
			URL:     fmt.Sprintf("%s/eod/%s", eodhdBaseURL, req.Symbol),
			Query:   query,
			Headers: map[string]string{"Accept": "application/json"},
		}, nil
	}
}

type eodhdRow struct {
	Date             string  `json:"date"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Close            float64 `json:"close"`
	Volume           float64 `json:"volume"`
	EarningsEstimate float64 `json:"earnings_estimate,omitempty"`
	EarningsActual   float64 `json:"earnings_actual,omitempty"`
	InsiderTx        int64   `json:"insider_transactions,omitempty"`
}

func eodhdNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var rows []eodhdRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("eodhd: malformed payload: %w", err)
	}

	bars := make([]types.MarketBar, 0, len(rows))
	funds := make([]types.FundamentalsRow, 0, len(rows))
	for _, r := range rows {
		ts, err := NormalizeTimestampString(r.Date)
		if err != nil {
			continue
		}
		bar := types.MarketBar{
			Source:   "eodhd",
			Symbol:   req.Symbol,
			Interval: req.Interval,
			TS:       ts,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Provider: "eodhd",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
		funds = append(funds, types.FundamentalsRow{
			Symbol: req.Symbol,
			TS:     ts,
			Metric: "eod",
			Value:  r.Close,
			Sidecar: map[string]interface{}{
				"earnings_estimate":    r.EarningsEstimate,
				"earnings_actual":      r.EarningsActual,
				"insider_transactions": r.InsiderTx,
			},
		})
	}

	return types.CanonicalFetchResult{Kind: types.RowKindEvent, Bars: bars, Funds: funds, Request: req}, nil
}
