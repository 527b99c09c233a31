package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/cache"
	"github.com/fks/market-data/internal/types"
)

// PriceCacheTTL and OHLCVCacheTTL are spec.md §4.10's result-cache
// durations.
const (
	PriceCacheTTL = 60 * time.Second
	OHLCVCacheTTL = 300 * time.Second
)

// Fetcher is the subset of *manager.Manager the REST surface needs.
type Fetcher interface {
	Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error)
	Health() map[string]types.ProviderHealth
}

// FuturesAdapter is a single provider's generic fetch, used for the
// futures-family pass-through group (spec.md §4.10 names contracts,
// products, schedules, aggs, trades, quotes, market-status, exchanges;
// the underlying adapter layer implements the aggs/microstructure
// shape uniformly, so every futures endpoint here validates its own
// parameters and normalizes through that one capability).
type FuturesAdapter interface {
	Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, error)
}

// Handlers implements every spec.md §4.10 REST operation.
type Handlers struct {
	fetcher     Fetcher
	cache       cache.Store
	futures     FuturesAdapter
	names       []string
	webhookKeys WebhookSecrets
	log         zerolog.Logger
}

// WebhookSecrets supplies the HMAC secret for each webhook source.
type WebhookSecrets struct {
	Binance string
	Polygon string
}

// NewHandlers wires a Handlers. futures may be nil to disable the
// /futures/* group (returns 404 in that case, not a panic).
func NewHandlers(fetcher Fetcher, store cache.Store, futures FuturesAdapter, names []string, webhookKeys WebhookSecrets, log zerolog.Logger) *Handlers {
	return &Handlers{fetcher: fetcher, cache: store, futures: futures, names: names, webhookKeys: webhookKeys, log: log.With().Str("component", "httpapi_handlers").Logger()}
}

// Health reports liveness plus a per-provider circuit snapshot.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.fetcher.Health()
	providers := make(map[string]interface{}, len(health))
	for name, ph := range health {
		providers[name] = map[string]interface{}{
			"circuit_open": ph.CircuitOpen,
			"failures":     ph.Failures,
		}
	}
	writeData(w, r, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"providers": providers,
		"timestamp": time.Now().UTC(),
	})
}

// Price returns the latest close for a symbol, cached 60s.
func (h *Handlers) Price(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		writeError(w, r, http.StatusBadRequest, "missing_symbol", "symbol is required")
		return
	}

	req := types.FetchRequest{
		Symbol:   symbol,
		Interval: "1m",
		Limit:    1,
		Provider: q.Get("provider"),
		UseCache: parseBool(q.Get("use_cache"), true),
	}

	cacheKey := cache.Key("rest_price", symbol, req.Provider)
	if req.UseCache && h.cache != nil {
		if raw, ok := h.cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
			return
		}
	}

	result, provider, err := h.fetcher.Fetch(r.Context(), req)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	if len(result.Bars) == 0 {
		writeError(w, r, http.StatusNotFound, "no_data", "no price data available")
		return
	}
	latest := result.Bars[len(result.Bars)-1]
	payload := map[string]interface{}{
		"symbol":   symbol,
		"price":    latest.Close,
		"ts":       latest.TS.Unix(),
		"provider": provider,
	}

	if h.cache != nil {
		if raw, err := marshalForCache(payload); err == nil {
			h.cache.Set(r.Context(), cacheKey, raw, PriceCacheTTL)
		}
	}
	writeData(w, r, http.StatusOK, payload)
}

// OHLCV returns canonical bar rows for a symbol/interval, cached 300s.
func (h *Handlers) OHLCV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	interval := q.Get("interval")
	if symbol == "" || interval == "" {
		writeError(w, r, http.StatusBadRequest, "missing_params", "symbol and interval are required")
		return
	}

	limit := 500
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	req := types.FetchRequest{
		Symbol:   symbol,
		Interval: interval,
		Start:    parseTimeParam(q.Get("start")),
		End:      parseTimeParam(q.Get("end")),
		Limit:    limit,
		Provider: q.Get("provider"),
		UseCache: parseBool(q.Get("use_cache"), true),
	}

	cacheKey := cache.Key("rest_ohlcv", symbol, interval, q.Get("start"), q.Get("end"), strconv.Itoa(limit), req.Provider)
	if req.UseCache && h.cache != nil {
		if raw, ok := h.cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
			return
		}
	}

	result, provider, err := h.fetcher.Fetch(r.Context(), req)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}

	payload := map[string]interface{}{
		"symbol":   symbol,
		"interval": interval,
		"provider": provider,
		"bars":     result.Bars,
	}
	if h.cache != nil {
		if raw, err := marshalForCache(payload); err == nil {
			h.cache.Set(r.Context(), cacheKey, raw, OHLCVCacheTTL)
		}
	}
	writeData(w, r, http.StatusOK, payload)
}

// Providers returns static adapter metadata.
func (h *Handlers) Providers(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, map[string]interface{}{"providers": h.names})
}

func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "fetch_failed", err.Error())
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func parseTimeParam(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
