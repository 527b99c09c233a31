package manager

import (
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// Breaker wraps sony/gobreaker with the trip policy spec.md §4.3 and §8
// require: three consecutive failures open the circuit; after
// cooldownSeconds it allows exactly one half-open probe; a single
// success closes it and resets the failure count. Grounded on
// infra/breakers/breakers.go.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// DefaultCooldown is spec.md §4.3's default.
const DefaultCooldown = 30 * time.Second

// NewBreaker builds a per-provider circuit breaker with the given
// cooldown before a half-open probe is allowed.
func NewBreaker(name string, cooldown time.Duration) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // one attempt allowed in half-open state
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker, returning gobreaker.ErrOpenState
// when the circuit is open and the cooldown hasn't elapsed.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// IsOpen reports whether the circuit currently rejects requests.
func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// ErrOpenState is re-exported so callers can identify a skipped provider
// without importing gobreaker directly.
var ErrOpenState = gobreaker.ErrOpenState
