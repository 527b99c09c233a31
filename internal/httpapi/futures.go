package httpapi

import (
	"net/http"

	"github.com/fks/market-data/internal/types"
)

// futuresEndpoints are the sub-resources spec.md §4.10 names under the
// futures pass-through family. Each validates its own required query
// parameters before delegating to the configured FuturesAdapter.
var futuresEndpoints = []string{
	"contracts", "products", "schedules", "aggs",
	"trades", "quotes", "market-status", "exchanges",
}

// futuresParamRequirements names the query parameters each endpoint
// requires, symbol included, grounded on original_source's
// massive_futures.py parameter lists re-expressed as validation rules.
var futuresParamRequirements = map[string][]string{
	"aggs":      {"symbol", "interval"},
	"trades":    {"symbol"},
	"quotes":    {"symbol"},
	"contracts": {},
	"products":  {},
	"schedules": {},
	"exchanges": {},
}

// Futures returns a handler for one futures sub-resource.
func (h *Handlers) Futures(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.futures == nil {
			writeError(w, r, http.StatusNotFound, "futures_disabled", "futures pass-through is not configured")
			return
		}

		q := r.URL.Query()
		for _, param := range futuresParamRequirements[endpoint] {
			if q.Get(param) == "" {
				writeError(w, r, http.StatusBadRequest, "missing_param", "missing required parameter: "+param)
				return
			}
		}

		req := types.FetchRequest{
			Symbol:   q.Get("symbol"),
			Interval: q.Get("interval"),
			Start:    parseTimeParam(q.Get("start")),
			End:      parseTimeParam(q.Get("end")),
			Limit:    500,
			Extra:    map[string]string{"futures_endpoint": endpoint},
		}

		result, err := h.futures.Fetch(r.Context(), req)
		if err != nil {
			writeFetchError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, map[string]interface{}{
			"endpoint": endpoint,
			"bars":     result.Bars,
			"funds":    result.Funds,
		})
	}
}
