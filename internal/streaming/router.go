package streaming

import (
	"github.com/rs/zerolog"
)

// Router implements Reconciler by fanning a subscription change out to
// the one Upstream registered for its provider, letting Hub stay
// provider-agnostic while each Upstream owns exactly one provider's
// connection lifecycle.
type Router struct {
	upstreams map[string]*Upstream
	log       zerolog.Logger
}

// NewRouter builds a Router over upstreams, keyed by provider name.
func NewRouter(upstreams map[string]*Upstream, log zerolog.Logger) *Router {
	return &Router{upstreams: upstreams, log: log.With().Str("component", "streaming_router").Logger()}
}

// Reconcile implements Reconciler.
func (r *Router) Reconcile(provider string, pairs map[Pair]struct{}) {
	u, ok := r.upstreams[provider]
	if !ok {
		r.log.Warn().Str("provider", provider).Msg("streaming: no upstream registered for provider")
		return
	}
	u.Reconcile(provider, pairs)
}
