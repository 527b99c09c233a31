// Package secrets resolves per-provider API keys from an ordered list of
// environment variables, falling back to an encrypted on-disk key store,
// per spec.md §4.1's authentication rule. Keys are never logged or
// returned in full.
package secrets

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Provider resolves a named API key. It returns ok=false, not an error,
// when the key is simply absent — callers treat that as "use the
// provider unauthenticated" where that's valid, or raise a ConfigError
// otherwise.
type Provider interface {
	GetAPIKey(providerName string) (string, bool)
}

// EnvProvider resolves keys from `<PROVIDER>_API_KEY` (and a handful of
// historical aliases), grounded on internal/secrets/env.go's
// prefix-based env lookup.
type EnvProvider struct {
	aliases map[string][]string
}

// NewEnvProvider builds the default env-var resolver. aliases lets a
// provider register additional historical env-var names to check, in
// priority order, after the canonical `<PROVIDER>_API_KEY`.
func NewEnvProvider(aliases map[string][]string) *EnvProvider {
	if aliases == nil {
		aliases = map[string][]string{}
	}
	return &EnvProvider{aliases: aliases}
}

func (p *EnvProvider) GetAPIKey(providerName string) (string, bool) {
	canonical := strings.ToUpper(providerName) + "_API_KEY"
	for _, envKey := range append([]string{canonical}, p.aliases[providerName]...) {
		if v := os.Getenv(envKey); v != "" {
			return v, true
		}
	}
	return "", false
}

// ChainProvider tries each Provider in order, the way
// internal/secrets/interfaces.go's Manager tries primary then fallback.
type ChainProvider struct {
	providers []Provider
}

// NewChain builds a Provider that tries each delegate in order.
func NewChain(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) GetAPIKey(providerName string) (string, bool) {
	for _, p := range c.providers {
		if v, ok := p.GetAPIKey(providerName); ok {
			return v, true
		}
	}
	return "", false
}

// Mask renders a key as "prefix***suffix" for any externally visible
// representation, per spec.md §4.1 — keys are never logged or returned
// in full.
func Mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}

var redactPattern = regexp.MustCompile(`(?i)(password|secret|key|token|dsn|auth|credential)`)

// ShouldRedact reports whether an env-var-like name looks secret-shaped,
// for use by diagnostic/debug log paths that must never echo credential
// values. Grounded on internal/secrets/env.go's shouldRedact.
func ShouldRedact(name string) bool {
	return redactPattern.MatchString(name)
}

// ErrKeyNotFound is returned by callers that require a key and found none.
func ErrKeyNotFound(providerName string) error {
	return fmt.Errorf("secrets: no API key configured for provider %q", providerName)
}
