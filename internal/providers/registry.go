package providers

import (
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/adapter"
	"github.com/fks/market-data/internal/cache"
	"github.com/fks/market-data/internal/secrets"
)

// Factory builds a configured *adapter.Base for a provider. The registry
// is a keyless mapping of name → factory, per spec.md §9 — no reflection
// or dynamic import is required.
type Factory func(deps Deps) *adapter.Base

// Deps are the shared collaborators every provider factory closes over.
type Deps struct {
	HTTPClient *http.Client
	Cache      cache.Store
	Secrets    secrets.Provider
	Logger     zerolog.Logger
}

var registry = map[string]Factory{
	"binance":   NewBinance,
	"coinbase":  NewCoinbase,
	"okx":       NewOKX,
	"kraken":    NewKraken,
	"coingecko": NewCoinGecko,
	"polygon":   NewPolygon,
	"eodhd":     NewEODHD,
	"newsapi":   NewNewsAPI,
}

// Build constructs every registered adapter keyed by provider name.
func Build(deps Deps) map[string]*adapter.Base {
	out := make(map[string]*adapter.Base, len(registry))
	for name, factory := range registry {
		out[name] = factory(deps)
	}
	return out
}

// Names returns the registered provider names sorted alphabetically;
// used by the REST /providers metadata endpoint.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}
