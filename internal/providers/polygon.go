package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/secrets"
	"github.com/fks/market-data/internal/types"
)

const polygonBaseURL = "https://api.polygon.io"

// NewPolygon builds the Polygon aggregates adapter. Futures
// microstructure family, per spec.md §4.2: aggs → OHLCV +
// transactions/dollar_volume/settlement_price, carried in the sidecar.
// Grounded on original_source/src/adapters/polygon.py and
// massive_futures.py.
func NewPolygon(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "polygon",
		BaseURL:         polygonBaseURL,
		RateLimitPerSec: 5,
		BuildRequest:    polygonBuildRequestFunc(deps.Secrets),
		Normalize:       polygonNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

var polygonTimespan = map[string]string{
	"1m": "minute", "5m": "minute", "1h": "hour", "1d": "day",
}

func polygonBuildRequestFunc(sp secrets.Provider) func(context.Context, types.FetchRequest) (adapter.BuiltRequest, error) {
	return func(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
		timespan, ok := polygonTimespan[req.Interval]
		if !ok {
			timespan = "minute"
		}
		multiplier := "1"
		from := req.Start.Format("2006-01-02")
		to := req.End.Format("2006-01-02")
		url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%s/%s/%s/%s",
			polygonBaseURL, req.Symbol, multiplier, timespan, from, to)

		headers := map[string]string{"Accept": "application/json"}
		if sp != nil {
			if key, ok := sp.GetAPIKey("polygon"); ok {
				headers["Authorization"] = "Bearer " + key
			}
		}
		return adapter.BuiltRequest{Method: http.MethodGet, URL: url, Headers: headers}, nil
	}
}

type polygonAgg struct {
	T  int64   `json:"t"` // ms epoch
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  float64 `json:"v"`
	VW float64 `json:"vw"` // volume-weighted price (proxy for dollar_volume)
	N  int64   `json:"n"`  // transaction count
}

type polygonAggsResponse struct {
	Status  string       `json:"status"`
	Results []polygonAgg `json:"results"`
}

func polygonNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var resp polygonAggsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("polygon: malformed payload: %w", err)
	}
	if resp.Status != "" && resp.Status != "OK" && resp.Status != "DELAYED" {
		return types.CanonicalFetchResult{}, fmt.Errorf("polygon: provider status %q", resp.Status)
	}

	funds := make([]types.FundamentalsRow, 0, len(resp.Results))
	bars := make([]types.MarketBar, 0, len(resp.Results))
	for _, a := range resp.Results {
		bar := types.MarketBar{
			Source:   "polygon",
			Symbol:   req.Symbol,
			Interval: req.Interval,
			TS:       NormalizeEpoch(float64(a.T)),
			Open:     a.O,
			High:     a.H,
			Low:      a.L,
			Close:    a.C,
			Volume:   a.V,
			Provider: "polygon",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
		funds = append(funds, types.FundamentalsRow{
			Symbol: req.Symbol,
			TS:     bar.TS,
			Metric: "microstructure",
			Value:  a.C,
			Sidecar: map[string]interface{}{
				"transactions":      a.N,
				"dollar_volume":     a.VW * a.V,
				"settlement_price":  a.C,
			},
		})
	}

	return types.CanonicalFetchResult{Kind: types.RowKindEvent, Bars: bars, Funds: funds, Request: req}, nil
}
