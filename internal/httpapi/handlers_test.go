package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/cache"
	"github.com/fks/market-data/internal/types"
)

type stubFetcher struct {
	result   types.CanonicalFetchResult
	provider string
	err      error
	health   map[string]types.ProviderHealth
}

func (f *stubFetcher) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error) {
	return f.result, f.provider, f.err
}

func (f *stubFetcher) Health() map[string]types.ProviderHealth {
	return f.health
}

type stubFutures struct {
	result types.CanonicalFetchResult
	err    error
}

func (s *stubFutures) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	return s.result, s.err
}

func barAt(ts time.Time, close float64) types.MarketBar {
	return types.MarketBar{Source: "binance", Symbol: "BTCUSDT", Interval: "1m", TS: ts, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func newTestServer(fetcher Fetcher, futures FuturesAdapter) *Server {
	h := NewHandlers(fetcher, cache.NewMemory(), futures, []string{"binance", "polygon"}, WebhookSecrets{Binance: "secret"}, zerolog.Nop())
	return NewServer(Config{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second, RequestTimeout: time.Second}, h, zerolog.Nop())
}

func TestHealthReturnsProviderSnapshot(t *testing.T) {
	fetcher := &stubFetcher{health: map[string]types.ProviderHealth{"binance": {Name: "binance", CircuitOpen: false}}}
	srv := newTestServer(fetcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.OK)
}

func TestPriceRequiresSymbol(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/price", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceReturnsLatestClose(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{
		result:   types.CanonicalFetchResult{Bars: []types.MarketBar{barAt(now, 123.45)}},
		provider: "binance",
	}
	srv := newTestServer(fetcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/price?symbol=BTCUSDT", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body.Data.(map[string]interface{})
	require.Equal(t, 123.45, data["price"])
}

func TestPriceNoDataIsNotFound(t *testing.T) {
	fetcher := &stubFetcher{result: types.CanonicalFetchResult{}}
	srv := newTestServer(fetcher, nil)
	req := httptest.NewRequest(http.MethodGet, "/price?symbol=BTCUSDT", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOHLCVRequiresSymbolAndInterval(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ohlcv?symbol=BTCUSDT", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOHLCVReturnsBars(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{
		result:   types.CanonicalFetchResult{Bars: []types.MarketBar{barAt(now, 1), barAt(now.Add(time.Minute), 2)}},
		provider: "binance",
	}
	srv := newTestServer(fetcher, nil)

	req := httptest.NewRequest(http.MethodGet, "/ohlcv?symbol=BTCUSDT&interval=1m", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProvidersListsNames(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFuturesMissingRequiredParam(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, &stubFutures{})
	req := httptest.NewRequest(http.MethodGet, "/futures/aggs?symbol=X:BTCUSD", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFuturesDisabledReturnsNotFound(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/futures/exchanges", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFuturesPassesThroughOnValidParams(t *testing.T) {
	futures := &stubFutures{result: types.CanonicalFetchResult{Bars: []types.MarketBar{barAt(time.Now(), 1)}}}
	srv := newTestServer(&stubFetcher{}, futures)
	req := httptest.NewRequest(http.MethodGet, "/futures/aggs?symbol=X:BTCUSD&interval=1m", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func signedBody(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestBinanceWebhookRejectsBadSignature(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	body := []byte(`{"symbol":"BTCUSDT","kline":{"is_closed":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/binance", bytes.NewReader(body))
	req.Header.Set(signatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBinanceWebhookAcceptsClosedKline(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	body := []byte(`{"symbol":"BTCUSDT","kline":{"t":1754049600000,"o":1,"h":2,"l":0.5,"c":1.5,"v":10,"i":"1m","is_closed":true}}`)
	sig := signedBody(t, "secret", body)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/binance", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sig)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBinanceWebhookSkipsOpenKline(t *testing.T) {
	srv := newTestServer(&stubFetcher{}, nil)
	body := []byte(`{"symbol":"BTCUSDT","kline":{"is_closed":false}}`)
	sig := signedBody(t, "secret", body)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/binance", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sig)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body2 envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body2))
	data := body2.Data.(map[string]interface{})
	require.Equal(t, false, data["accepted"])
}
