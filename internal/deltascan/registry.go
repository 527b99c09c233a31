package deltascan

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/types"
)

// Sink persists detected changes to the `tick_data` hypertable
// described in spec.md §6.
type Sink interface {
	SaveChange(ctx context.Context, symbol, exchange string, change Change) error
}

// key identifies one scanner by the pair spec.md's tick_data table
// partitions on.
type key struct {
	symbol, exchange string
}

// Registry owns one Scanner per (symbol, exchange) pair, per spec.md
// §4.11's "stateful scanner for tick streams" applied across a
// multi-symbol feed, mirroring internal/manager.Manager's per-key
// state map.
type Registry struct {
	opts []Option
	sink Sink
	log  zerolog.Logger

	mu       sync.Mutex
	scanners map[key]*Scanner
}

// NewRegistry builds a Registry. sink may be nil to skip persistence.
func NewRegistry(sink Sink, log zerolog.Logger, opts ...Option) *Registry {
	return &Registry{
		opts:     opts,
		sink:     sink,
		log:      log.With().Str("component", "deltascan_registry").Logger(),
		scanners: make(map[key]*Scanner),
	}
}

// Observe routes tick to its (symbol, source) scanner, persisting any
// resulting Change through the configured Sink. A sink failure is
// logged but does not prevent the Change from being returned.
func (r *Registry) Observe(ctx context.Context, tick types.Tick) (Change, bool) {
	scanner := r.scannerFor(tick.Symbol, tick.Source)
	change, ok := scanner.Scan(tick)
	if !ok {
		return Change{}, false
	}

	if r.sink != nil {
		if err := r.sink.SaveChange(ctx, tick.Symbol, tick.Source, change); err != nil {
			r.log.Error().Err(err).Str("symbol", tick.Symbol).Str("exchange", tick.Source).Msg("deltascan: persist change failed")
		}
	}
	return change, true
}

// Scanner returns (creating if necessary) the scanner for a
// (symbol, exchange) pair, for direct use — e.g. GetBinarySequence.
func (r *Registry) Scanner(symbol, exchange string) *Scanner {
	return r.scannerFor(symbol, exchange)
}

func (r *Registry) scannerFor(symbol, exchange string) *Scanner {
	k := key{symbol: symbol, exchange: exchange}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scanners[k]
	if !ok {
		s = NewScanner(r.opts...)
		r.scanners[k] = s
	}
	return s
}
