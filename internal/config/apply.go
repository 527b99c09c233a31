package config

import (
	"github.com/fks/market-data/internal/adapter"
)

// ApplyOverrides tunes each built provider adapter's rate limit,
// timeout, and retry policy from rt, falling back to rt's defaults
// when a provider has no specific override. Called once at startup
// after internal/providers.Build.
func ApplyOverrides(built map[string]*adapter.Base, rt Runtime) {
	for name, base := range built {
		override, ok := rt.Overrides[name]

		rps := rt.DefaultRPS
		if ok && override.RPS > 0 {
			rps = override.RPS
		}
		if rps > 0 {
			base.SetRateLimit(rps)
		}

		timeout := rt.DefaultTimeout
		if ok && override.Timeout > 0 {
			timeout = override.Timeout
		}
		base.SetTimeout(timeout)

		base.SetRetryPolicy(adapter.RetryPolicy{
			MaxRetries: rt.Retry.MaxRetries,
			Base:       rt.Retry.Base,
			Jitter:     rt.Retry.Jitter,
		})
	}
}
