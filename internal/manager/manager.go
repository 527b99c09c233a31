// Package manager orchestrates a priority-ordered list of providers
// with per-provider circuit breakers and an optional cross-source
// verification step, per spec.md §4.3.
package manager

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/types"
)

// Provider is the subset of adapter.Base a manager depends on. Any
// *adapter.Base satisfies this.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, error)
}

// ArgShaper translates the caller's normalized symbol into a provider's
// own symbol spelling (e.g. "BTC-USD" → "BTCUSDT" for Binance), per
// spec.md §9's "dynamic argument shaping" design note. Identity if nil.
type ArgShaper func(req types.FetchRequest) types.FetchRequest

// AggregateError is raised when every provider in priority order fails.
type AggregateError struct {
	AssetClass string
	LastCause  error
	Attempts   map[string]error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("manager: all providers exhausted for %s, last cause: %v", e.AssetClass, e.LastCause)
}

func (e *AggregateError) Unwrap() error { return e.LastCause }

// VarianceTolerance is spec.md §4.3's default cross-source verification
// tolerance.
const VarianceTolerance = 0.01

// Manager orchestrates failover across a priority-ordered provider list.
// It exclusively owns ProviderHealth, per spec.md §3's ownership rule.
type Manager struct {
	mu         sync.Mutex
	order      []string
	providers  map[string]Provider
	breakers   map[string]*Breaker
	shapers    map[string]ArgShaper
	health     map[string]*types.ProviderHealth
	tolerance  float64
	verifyOn   bool
	log        zerolog.Logger
}

// Config configures a Manager.
type Config struct {
	Order             []string
	Providers         map[string]Provider
	Shapers           map[string]ArgShaper
	Cooldown          time.Duration
	VarianceTolerance float64
	Verify            bool
	Logger            zerolog.Logger
}

// New builds a Manager over the given priority-ordered provider list.
func New(cfg Config) *Manager {
	tol := cfg.VarianceTolerance
	if tol <= 0 {
		tol = VarianceTolerance
	}
	m := &Manager{
		order:     cfg.Order,
		providers: cfg.Providers,
		shapers:   cfg.Shapers,
		breakers:  make(map[string]*Breaker, len(cfg.Order)),
		health:    make(map[string]*types.ProviderHealth, len(cfg.Order)),
		tolerance: tol,
		verifyOn:  cfg.Verify,
		log:       cfg.Logger,
	}
	for _, name := range cfg.Order {
		m.breakers[name] = NewBreaker(name, cfg.Cooldown)
		m.health[name] = &types.ProviderHealth{Name: name}
	}
	return m
}

// Fetch iterates providers in priority order, skipping any with an open
// circuit, adapting arguments per provider, fetching, and optionally
// cross-verifying against a different healthy provider before returning.
func (m *Manager) Fetch(ctx context.Context, req types.FetchRequest) (types.CanonicalFetchResult, string, error) {
	attempts := make(map[string]error)
	var lastErr error

	for _, name := range m.order {
		provider, ok := m.providers[name]
		if !ok {
			continue
		}
		breaker := m.breakers[name]
		if breaker.IsOpen() {
			continue
		}

		shaped := req
		if shaper := m.shapers[name]; shaper != nil {
			shaped = shaper(req)
		}

		result, err := m.tryFetch(ctx, name, provider, breaker, shaped)
		if err != nil {
			attempts[name] = err
			lastErr = err
			continue
		}

		if m.verifyOn {
			if verifyErr := m.verify(ctx, name, shaped, result); verifyErr != nil {
				_, _ = breaker.Execute(func() (interface{}, error) { return nil, verifyErr })
				m.recordFailure(name, breaker)
				attempts[name] = verifyErr
				lastErr = verifyErr
				continue
			}
		}

		m.recordSuccess(name)
		return result, name, nil
	}

	return types.CanonicalFetchResult{}, "", &AggregateError{AssetClass: req.Symbol, LastCause: lastErr, Attempts: attempts}
}

func (m *Manager) tryFetch(ctx context.Context, name string, provider Provider, breaker *Breaker, req types.FetchRequest) (types.CanonicalFetchResult, error) {
	out, err := breaker.Execute(func() (interface{}, error) {
		return provider.Fetch(ctx, req)
	})
	if err != nil {
		m.recordFailure(name, breaker)
		return types.CanonicalFetchResult{}, err
	}
	return out.(types.CanonicalFetchResult), nil
}

// verify fetches a spot check from a different healthy provider and
// compares the latest close. If only one provider is healthy,
// verification is skipped; if the secondary has no data or a zero
// price, verification is indeterminate (not a failure), per spec.md
// §4.3's verification policy.
func (m *Manager) verify(ctx context.Context, primaryName string, req types.FetchRequest, primary types.CanonicalFetchResult) error {
	primaryClose, ok := latestClose(primary)
	if !ok {
		return nil
	}

	for _, name := range m.order {
		if name == primaryName {
			continue
		}
		secondaryProvider, ok := m.providers[name]
		if !ok || m.breakers[name].IsOpen() {
			continue
		}

		secondary, err := secondaryProvider.Fetch(ctx, req)
		if err != nil {
			continue // secondary unavailable, try next; not a primary failure
		}
		secondaryClose, ok := latestClose(secondary)
		if !ok || secondaryClose == 0 {
			return nil // indeterminate, per spec.md §4.3
		}

		variance := math.Abs(primaryClose-secondaryClose) / secondaryClose
		if variance > m.tolerance {
			return fmt.Errorf("manager: verification failed, %s vs %s variance %.4f exceeds tolerance %.4f",
				primaryName, name, variance, m.tolerance)
		}
		return nil
	}

	return nil // only one provider available; verification skipped
}

func latestClose(result types.CanonicalFetchResult) (float64, bool) {
	if len(result.Bars) == 0 {
		return 0, false
	}
	return result.Bars[len(result.Bars)-1].Close, true
}

func (m *Manager) recordFailure(name string, breaker *Breaker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[name]
	if h == nil {
		return
	}
	now := time.Now().UTC()
	h.Failures++
	h.LastFailure = &now
	h.CircuitOpen = breaker.IsOpen()
	if h.CircuitOpen && h.CircuitOpenAt == nil {
		h.CircuitOpenAt = &now
	}
}

func (m *Manager) recordSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.health[name]
	if h == nil {
		return
	}
	now := time.Now().UTC()
	h.Failures = 0
	h.LastSuccess = &now
	h.CircuitOpen = false
	h.CircuitOpenAt = nil
}

// Health returns a snapshot of every provider's health. The manager is
// the exclusive owner of this state, per spec.md §3.
func (m *Manager) Health() map[string]types.ProviderHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]types.ProviderHealth, len(m.health))
	for name, h := range m.health {
		out[name] = *h
	}
	return out
}
