package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/types"
)

const okxBaseURL = "https://www.okx.com/api/v5"

// NewOKX builds the OKX candles adapter. Bar family. Grounded on
// internal/providers/adapters/okx.go.
func NewOKX(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "okx",
		BaseURL:         okxBaseURL,
		RateLimitPerSec: 5,
		BuildRequest:    okxBuildRequest,
		Normalize:       okxNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

func okxBuildRequest(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 300
	}
	return adapter.BuiltRequest{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/market/candles", okxBaseURL),
		Query: map[string]string{
			"instId": req.Symbol,
			"bar":    req.Interval,
			"limit":  fmt.Sprintf("%d", limit),
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

type okxEnvelope struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// okxNormalize parses OKX's candle array:
// [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm].
// A non-"0" top-level code is a provider error envelope and fails the
// whole fetch, per spec.md §4.1's "structural mismatches … raise" rule.
func okxNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("okx: malformed envelope: %w", err)
	}
	if env.Code != "" && env.Code != "0" {
		return types.CanonicalFetchResult{}, fmt.Errorf("okx: provider error %s: %s", env.Code, env.Msg)
	}

	bars := make([]types.MarketBar, 0, len(env.Data))
	for _, r := range env.Data {
		if len(r) < 6 {
			continue
		}
		tsMs := ParseFloat(r[0])
		bar := types.MarketBar{
			Source:   "okx",
			Symbol:   req.Symbol,
			Interval: req.Interval,
			TS:       NormalizeEpoch(tsMs),
			Open:     ParseFloat(r[1]),
			High:     ParseFloat(r[2]),
			Low:      ParseFloat(r[3]),
			Close:    ParseFloat(r[4]),
			Volume:   ParseFloat(r[5]),
			Provider: "okx",
		}
		if bar.Validate() != nil {
			continue
		}
		bars = append(bars, bar)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return types.CanonicalFetchResult{Kind: types.RowKindBar, Bars: bars, Request: req}, nil
}
