// Package deltascan detects tick-level micro-price changes and encodes
// them as a binary up/down sequence, per spec.md §4.11.
package deltascan

import (
	"strings"
	"sync"
	"time"

	"github.com/fks/market-data/internal/types"
)

// Direction is a tick-to-tick price movement classification.
type Direction int

const (
	DirectionNeutral Direction = 0
	DirectionUp      Direction = 1
	DirectionDown    Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "neutral"
	}
}

// Binary returns "1" for up, "0" for down, "" for neutral — BTR
// encoding per spec.md §4.11.
func (d Direction) Binary() string {
	switch d {
	case DirectionUp:
		return "1"
	case DirectionDown:
		return "0"
	default:
		return ""
	}
}

// Change is a single detected tick-to-tick price movement.
type Change struct {
	Timestamp time.Time
	Symbol    string
	OldPrice  float64
	NewPrice  float64
	Delta     float64
	DeltaPct  float64
	Direction Direction
	IsMicro   bool
}

// DefaultMicroThreshold is the percentage-change threshold below which
// a non-neutral move is classified as a micro-change (1 basis point).
const DefaultMicroThreshold = 0.01

// DefaultMinChange is the minimum absolute price move to be considered
// significant at all, rather than neutral.
const DefaultMinChange = 0.00001

// Scanner is a stateful, single-symbol tick scanner. It is safe for
// concurrent use; callers typically run one Scanner per (symbol,
// exchange) pair fed by that pair's tick stream.
type Scanner struct {
	microThreshold float64
	minChange      float64

	mu        sync.Mutex
	lastPrice float64
	hasPrice  bool
	changes   []Change

	total, micro, up, down, neutral int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMicroThreshold overrides DefaultMicroThreshold.
func WithMicroThreshold(pct float64) Option {
	return func(s *Scanner) { s.microThreshold = pct }
}

// WithMinChange overrides DefaultMinChange.
func WithMinChange(v float64) Option {
	return func(s *Scanner) { s.minChange = v }
}

// NewScanner builds a Scanner with DefaultMicroThreshold and
// DefaultMinChange, adjustable via Option.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{microThreshold: DefaultMicroThreshold, minChange: DefaultMinChange}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan processes one tick against the scanner's last-seen price. It
// returns (Change, true) when the tick produced a recorded change —
// the very first tick for a fresh Scanner only seeds lastPrice and
// returns (Change{}, false).
func (s *Scanner) Scan(tick types.Tick) (Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := tick.Price
	if !s.hasPrice {
		s.lastPrice = price
		s.hasPrice = true
		return Change{}, false
	}

	prev := s.lastPrice
	delta := price - prev

	var direction Direction
	switch {
	case delta >= s.minChange:
		direction = DirectionUp
	case prev-price >= s.minChange:
		direction = DirectionDown
	default:
		direction = DirectionNeutral
	}

	var deltaPct float64
	if prev != 0 {
		deltaPct = delta / prev * 100
	}
	isMicro := absf(deltaPct) < s.microThreshold

	change := Change{
		Timestamp: tick.TS,
		Symbol:    tick.Symbol,
		OldPrice:  prev,
		NewPrice:  price,
		Delta:     delta,
		DeltaPct:  deltaPct,
		Direction: direction,
		IsMicro:   isMicro,
	}

	s.lastPrice = price
	s.changes = append(s.changes, change)
	s.total++
	if isMicro {
		s.micro++
	}
	switch direction {
	case DirectionUp:
		s.up++
	case DirectionDown:
		s.down++
	default:
		s.neutral++
	}

	return change, true
}

// GetBinarySequence returns the most recent maxLength non-neutral
// moves, concatenated as "1"/"0" in chronological order. Neutral moves
// are dropped before truncating. maxLength<=0 means unbounded.
func (s *Scanner) GetBinarySequence(maxLength int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var symbols []string
	for _, c := range s.changes {
		if bit := c.Direction.Binary(); bit != "" {
			symbols = append(symbols, bit)
		}
	}
	if maxLength > 0 && len(symbols) > maxLength {
		symbols = symbols[len(symbols)-maxLength:]
	}
	return strings.Join(symbols, "")
}

// Statistics summarizes a Scanner's observed changes.
type Statistics struct {
	TotalChanges   int     `json:"total_changes"`
	MicroChanges   int     `json:"micro_changes"`
	MicroPct       float64 `json:"micro_pct"`
	UpChanges      int     `json:"up_changes"`
	UpPct          float64 `json:"up_pct"`
	DownChanges    int     `json:"down_changes"`
	DownPct        float64 `json:"down_pct"`
	NeutralChanges int     `json:"neutral_changes"`
	NeutralPct     float64 `json:"neutral_pct"`
	MicroThreshold float64 `json:"micro_threshold"`
	MinChange      float64 `json:"min_change"`
}

// Statistics computes the scanner's running statistics.
func (s *Scanner) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	pct := func(n int) float64 {
		if s.total == 0 {
			return 0
		}
		return float64(n) / float64(s.total) * 100
	}

	return Statistics{
		TotalChanges:   s.total,
		MicroChanges:   s.micro,
		MicroPct:       pct(s.micro),
		UpChanges:      s.up,
		UpPct:          pct(s.up),
		DownChanges:    s.down,
		DownPct:        pct(s.down),
		NeutralChanges: s.neutral,
		NeutralPct:     pct(s.neutral),
		MicroThreshold: s.microThreshold,
		MinChange:      s.minChange,
	}
}

// RecentChanges returns the most recent count changes, oldest first.
func (s *Scanner) RecentChanges(count int) []Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count <= 0 || count >= len(s.changes) {
		out := make([]Change, len(s.changes))
		copy(out, s.changes)
		return out
	}
	out := make([]Change, count)
	copy(out, s.changes[len(s.changes)-count:])
	return out
}

// Reset clears all tracked state, including the seeded last price.
func (s *Scanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasPrice = false
	s.lastPrice = 0
	s.changes = nil
	s.total, s.micro, s.up, s.down, s.neutral = 0, 0, 0, 0, 0
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
