package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/types"
)

const krakenBaseURL = "https://api.kraken.com/0/public"

// NewKraken builds the Kraken OHLC adapter. Bar family. Grounded on
// internal/providers/kraken/websocket.go's pairing/subscription
// conventions, adapted to Kraken's REST OHLC endpoint.
func NewKraken(deps Deps) *adapter.Base {
	capa := adapter.Capability{
		Name:            "kraken",
		BaseURL:         krakenBaseURL,
		RateLimitPerSec: 3,
		BuildRequest:    krakenBuildRequest,
		Normalize:       krakenNormalize,
	}
	return adapter.NewBase(capa, defaultClient(deps.HTTPClient), deps.Cache, adapter.DefaultRetryPolicy, deps.Logger)
}

var krakenIntervalMinutes = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30", "1h": "60", "4h": "240", "1d": "1440",
}

func krakenBuildRequest(ctx context.Context, req types.FetchRequest) (adapter.BuiltRequest, error) {
	interval, ok := krakenIntervalMinutes[req.Interval]
	if !ok {
		interval = "60"
	}
	return adapter.BuiltRequest{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/OHLC", krakenBaseURL),
		Query:   map[string]string{"pair": req.Symbol, "interval": interval},
		Headers: map[string]string{"Accept": "application/json"},
	}, nil
}

type krakenEnvelope struct {
	Error  []string                     `json:"error"`
	Result map[string]json.RawMessage   `json:"result"`
}

// krakenNormalize parses Kraken's OHLC envelope. The result map has one
// key per pair name plus a "last" cursor key, which we skip since it's
// not a row; a populated Error slice is a structural failure.
func krakenNormalize(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	var env krakenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.CanonicalFetchResult{}, fmt.Errorf("kraken: malformed envelope: %w", err)
	}
	if len(env.Error) > 0 {
		return types.CanonicalFetchResult{}, fmt.Errorf("kraken: provider error: %v", env.Error)
	}

	bars := make([]types.MarketBar, 0)
	for key, rawRows := range env.Result {
		if key == "last" {
			continue
		}
		var rows [][]interface{}
		if err := json.Unmarshal(rawRows, &rows); err != nil {
			continue
		}
		for _, r := range rows {
			if len(r) < 7 {
				continue
			}
			tsSec, ok := r[0].(float64)
			if !ok {
				continue
			}
			bar := types.MarketBar{
				Source:   "kraken",
				Symbol:   req.Symbol,
				Interval: req.Interval,
				TS:       NormalizeEpoch(tsSec),
				Open:     ParseFloat(r[1]),
				High:     ParseFloat(r[2]),
				Low:      ParseFloat(r[3]),
				Close:    ParseFloat(r[4]),
				Volume:   ParseFloat(r[6]),
				Provider: "kraken",
			}
			if bar.Validate() != nil {
				continue
			}
			bars = append(bars, bar)
		}
	}

	return types.CanonicalFetchResult{Kind: types.RowKindBar, Bars: bars, Request: req}, nil
}
