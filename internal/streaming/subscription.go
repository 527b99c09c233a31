package streaming

// Subscription is one connection's desired symbol/timeframe coverage,
// per spec.md §4.9: {symbols: set, timeframes: set, provider?}.
type Subscription struct {
	Symbols    map[string]struct{}
	Timeframes map[string]struct{}
	Provider   string
}

// NewSubscription builds an empty subscription.
func NewSubscription() *Subscription {
	return &Subscription{Symbols: map[string]struct{}{}, Timeframes: map[string]struct{}{}}
}

// Add merges symbols/timeframes into the subscription and records the
// provider if one is given.
func (s *Subscription) Add(symbols, timeframes []string, provider string) {
	for _, sym := range symbols {
		s.Symbols[sym] = struct{}{}
	}
	for _, tf := range timeframes {
		s.Timeframes[tf] = struct{}{}
	}
	if provider != "" {
		s.Provider = provider
	}
}

// Remove drops symbols/timeframes from the subscription.
func (s *Subscription) Remove(symbols, timeframes []string) {
	for _, sym := range symbols {
		delete(s.Symbols, sym)
	}
	for _, tf := range timeframes {
		delete(s.Timeframes, tf)
	}
}

// HasSymbol reports whether the subscription covers symbol.
func (s *Subscription) HasSymbol(symbol string) bool {
	_, ok := s.Symbols[symbol]
	return ok
}

// Empty reports whether the subscription covers nothing.
func (s *Subscription) Empty() bool {
	return len(s.Symbols) == 0
}

// Pair is one (symbol, timeframe) the upstream multiplexer tracks.
type Pair struct {
	Symbol    string
	Timeframe string
}

// Union computes the set of (symbol, timeframe) pairs across every
// subscription, recomputed on every subscribe/unsubscribe change per
// spec.md §4.9.
func Union(subs []*Subscription) map[Pair]struct{} {
	union := make(map[Pair]struct{})
	for _, sub := range subs {
		for sym := range sub.Symbols {
			for tf := range sub.Timeframes {
				union[Pair{Symbol: sym, Timeframe: tf}] = struct{}{}
			}
		}
	}
	return union
}
