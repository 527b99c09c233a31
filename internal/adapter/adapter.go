// Package adapter defines the shared provider fetch lifecycle described
// in spec.md §4.1: a Capability supplies two hooks (BuildRequest,
// Normalize); Base owns rate limiting, retries with backoff+jitter,
// response caching, and error wrapping around them.
//
// Grounded on internal/providers/guards/guard.go's ProviderGuard.Execute,
// generalized from an HTTP-only gate to the full adapter contract.
package adapter

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/fks/market-data/internal/cache"
	"github.com/fks/market-data/internal/types"
)

// BuiltRequest is the provider-shaped HTTP request description returned
// by a Capability's BuildRequest hook.
type BuiltRequest struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    io.Reader
}

// Capability is the pair of hooks a concrete provider adapter supplies.
// No inheritance hierarchy is needed — the lifecycle composes around
// these two functions, per spec.md §9's "polymorphism without
// inheritance" design note.
type Capability struct {
	Name            string
	BaseURL         string
	RateLimitPerSec float64
	CacheTTL        time.Duration
	BuildRequest    func(ctx context.Context, req types.FetchRequest) (BuiltRequest, error)
	Normalize       func(raw []byte, req types.FetchRequest) (types.CanonicalFetchResult, error)
}

// RetryPolicy controls the execute-with-retries stage. Defaults match
// spec.md §4.1: max_retries=2, base=0.3s, jitter=0.25s.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	Jitter     time.Duration
}

// DefaultRetryPolicy is the spec-mandated default.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Base: 300 * time.Millisecond, Jitter: 250 * time.Millisecond}

// Base is the shared lifecycle owner injected around a Capability. One
// Base instance is created per provider adapter and reused across
// requests; its rate limiter state is therefore mutated under
// concurrent access and must stay safe for it (golang.org/x/time/rate
// is safe for concurrent use).
type Base struct {
	cap     Capability
	client  *http.Client
	limiter *rate.Limiter
	cache   cache.Store
	retry   RetryPolicy
	log     zerolog.Logger
}

// NewBase constructs a Base around a Capability with the given HTTP
// client, shared cache, and retry policy.
func NewBase(capa Capability, client *http.Client, store cache.Store, retry RetryPolicy, logger zerolog.Logger) *Base {
	var limiter *rate.Limiter
	if capa.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(capa.RateLimitPerSec), 1)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Base{
		cap:     capa,
		client:  client,
		limiter: limiter,
		cache:   store,
		retry:   retry,
		log:     logger.With().Str("provider", capa.Name).Logger(),
	}
}

// Name returns the adapter's stable provider name.
func (b *Base) Name() string { return b.cap.Name }

// SetRateLimit replaces the adapter's rate limiter, for the
// `FKS_<NAME>_RPS`/`FKS_DEFAULT_RPS` env overrides described in
// spec.md §6. perSec<=0 disables rate limiting.
func (b *Base) SetRateLimit(perSec float64) {
	if perSec <= 0 {
		b.limiter = nil
		return
	}
	b.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
}

// SetTimeout overrides the adapter's HTTP client timeout, for the
// `FKS_<NAME>_TIMEOUT`/`FKS_API_TIMEOUT` env overrides.
func (b *Base) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	b.client.Timeout = d
}

// SetRetryPolicy overrides the adapter's retry policy, for the
// `FKS_API_MAX_RETRIES`/`FKS_API_BACKOFF_BASE`/`FKS_API_BACKOFF_JITTER`
// env overrides.
func (b *Base) SetRetryPolicy(policy RetryPolicy) {
	b.retry = policy
}

// Fetch runs the full lifecycle: rate-limit gate, build request,
// execute with retries, normalize. It returns a CanonicalFetchResult or
// a *DataFetchError.
func (b *Base) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	// 1. Rate-limit gate — intra-process only, per spec.md §4.1.
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return types.CanonicalFetchResult{}, &DataFetchError{Provider: b.cap.Name, Message: "rate limit wait cancelled", Cause: err}
		}
	}

	// 2. Build request.
	built, err := b.cap.BuildRequest(ctx, req)
	if err != nil {
		return types.CanonicalFetchResult{}, &DataFetchError{Provider: b.cap.Name, Message: "build request failed", Cause: err}
	}

	cacheKey := ""
	if req.UseCache && b.cache != nil {
		cacheKey = cache.Key(b.cap.Name, built.Method, built.URL)
		if raw, ok := b.cache.Get(ctx, cacheKey); ok {
			result, err := b.cap.Normalize(raw, req)
			if err != nil {
				return types.CanonicalFetchResult{}, &DataFetchError{Provider: b.cap.Name, Message: "normalize failed", Cause: err}
			}
			result.Provider = b.cap.Name
			return result, nil
		}
	}

	// 3. Execute with retries.
	raw, err := b.executeWithRetries(ctx, built)
	if err != nil {
		return types.CanonicalFetchResult{}, err
	}

	if cacheKey != "" {
		ttl := b.cap.CacheTTL
		if ttl == 0 {
			ttl = cache.TTLIntradayBars
		}
		b.cache.Set(ctx, cacheKey, raw, ttl)
	}

	// 4. Normalize.
	result, err := b.cap.Normalize(raw, req)
	if err != nil {
		return types.CanonicalFetchResult{}, &DataFetchError{Provider: b.cap.Name, Message: "normalize failed", Cause: err}
	}
	result.Provider = b.cap.Name
	return result, nil
}

func (b *Base) executeWithRetries(ctx context.Context, built BuiltRequest) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= b.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := b.backoff(attempt)
			b.log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("adapter retry backoff")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &DataFetchError{Provider: b.cap.Name, Message: "retry backoff cancelled", Cause: ctx.Err()}
			}
		}

		raw, err := b.doOnce(ctx, built)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return nil, &DataFetchError{Provider: b.cap.Name, Message: "exhausted retries", Cause: lastErr}
}

func (b *Base) doOnce(ctx context.Context, built BuiltRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, built.Method, built.URL, built.Body)
	if err != nil {
		return nil, err
	}
	for k, v := range built.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(built.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range built.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DataFetchError{Provider: b.cap.Name, Message: http.StatusText(resp.StatusCode)}
	}
	return body, nil
}

// backoff is base*2^(attempt-1) + U[0, jitter).
func (b *Base) backoff(attempt int) time.Duration {
	base := b.retry.Base
	if base <= 0 {
		base = DefaultRetryPolicy.Base
	}
	jitter := b.retry.Jitter
	if jitter <= 0 {
		jitter = DefaultRetryPolicy.Jitter
	}
	exp := base * time.Duration(1<<uint(attempt-1))
	return exp + time.Duration(rand.Int63n(int64(jitter)+1))
}
