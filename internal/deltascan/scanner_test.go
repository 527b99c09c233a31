package deltascan

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/types"
)

func tickAt(ts time.Time, symbol string, price float64) types.Tick {
	return types.Tick{TS: ts, Symbol: symbol, Price: price, Source: "binance"}
}

func TestScanFirstTickSeedsWithoutChange(t *testing.T) {
	s := NewScanner()
	_, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	require.False(t, ok)
}

func TestScanDetectsUpDirection(t *testing.T) {
	s := NewScanner(WithMinChange(0.001))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	change, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 100.5))
	require.True(t, ok)
	require.Equal(t, DirectionUp, change.Direction)
	require.InDelta(t, 0.5, change.DeltaPct, 0.001)
}

func TestScanDetectsDownDirection(t *testing.T) {
	s := NewScanner(WithMinChange(0.001))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	change, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 99.5))
	require.True(t, ok)
	require.Equal(t, DirectionDown, change.Direction)
}

func TestScanBelowMinChangeIsNeutral(t *testing.T) {
	s := NewScanner(WithMinChange(1.0))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	change, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 100.1))
	require.True(t, ok)
	require.Equal(t, DirectionNeutral, change.Direction)
}

func TestScanClassifiesMicroChange(t *testing.T) {
	s := NewScanner(WithMinChange(0.00001), WithMicroThreshold(0.01))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	change, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 100.005)) // 0.005% move
	require.True(t, ok)
	require.True(t, change.IsMicro)
}

func TestScanNonMicroAboveThreshold(t *testing.T) {
	s := NewScanner(WithMinChange(0.00001), WithMicroThreshold(0.01))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	change, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 100.5)) // 0.5% move
	require.True(t, ok)
	require.False(t, change.IsMicro)
}

func TestDirectionBinaryEncoding(t *testing.T) {
	require.Equal(t, "1", DirectionUp.Binary())
	require.Equal(t, "0", DirectionDown.Binary())
	require.Equal(t, "", DirectionNeutral.Binary())
}

func TestGetBinarySequenceSkipsNeutralMoves(t *testing.T) {
	s := NewScanner(WithMinChange(0.5))
	base := time.Now()
	prices := []float64{100, 101, 101.1, 100.5, 99.4} // up, neutral, down, down
	for i, p := range prices {
		s.Scan(tickAt(base.Add(time.Duration(i)*time.Second), "BTC-USD", p))
	}
	require.Equal(t, "100", s.GetBinarySequence(0))
}

func TestGetBinarySequenceRespectsMaxLength(t *testing.T) {
	s := NewScanner(WithMinChange(0.5))
	base := time.Now()
	prices := []float64{100, 101, 102, 103, 104}
	for i, p := range prices {
		s.Scan(tickAt(base.Add(time.Duration(i)*time.Second), "BTC-USD", p))
	}
	require.Equal(t, "1111", s.GetBinarySequence(0))
	require.Equal(t, "11", s.GetBinarySequence(2))
}

func TestGetBinarySequenceEmptyScannerIsEmptyString(t *testing.T) {
	s := NewScanner()
	require.Equal(t, "", s.GetBinarySequence(10))
}

func TestStatisticsTracksCountsAndPercentages(t *testing.T) {
	s := NewScanner(WithMinChange(0.5))
	base := time.Now()
	prices := []float64{100, 101, 101.02, 99.9}
	for i, p := range prices {
		s.Scan(tickAt(base.Add(time.Duration(i)*time.Second), "BTC-USD", p))
	}
	stats := s.Statistics()
	require.Equal(t, 3, stats.TotalChanges)
	require.Equal(t, 1, stats.UpChanges)
	require.Equal(t, 1, stats.DownChanges)
	require.Equal(t, 1, stats.NeutralChanges)
	require.InDelta(t, 33.33, stats.UpPct, 0.1)
}

func TestStatisticsOnEmptyScannerIsZeroed(t *testing.T) {
	s := NewScanner()
	stats := s.Statistics()
	require.Equal(t, 0, stats.TotalChanges)
	require.Equal(t, float64(0), stats.MicroPct)
}

func TestRecentChangesReturnsMostRecentInOrder(t *testing.T) {
	s := NewScanner(WithMinChange(0.5))
	base := time.Now()
	prices := []float64{100, 101, 102, 103}
	for i, p := range prices {
		s.Scan(tickAt(base.Add(time.Duration(i)*time.Second), "BTC-USD", p))
	}
	recent := s.RecentChanges(2)
	require.Len(t, recent, 2)
	require.Equal(t, 102.0, recent[0].OldPrice)
	require.Equal(t, 103.0, recent[1].NewPrice)
}

func TestResetClearsState(t *testing.T) {
	s := NewScanner(WithMinChange(0.5))
	s.Scan(tickAt(time.Now(), "BTC-USD", 100))
	s.Scan(tickAt(time.Now(), "BTC-USD", 101))
	s.Reset()

	require.Equal(t, 0, s.Statistics().TotalChanges)
	require.Equal(t, "", s.GetBinarySequence(0))

	// After reset, the scanner re-seeds on the next tick.
	_, ok := s.Scan(tickAt(time.Now(), "BTC-USD", 50))
	require.False(t, ok)
}

type stubSink struct {
	saved []Change
}

func (s *stubSink) SaveChange(ctx context.Context, symbol, exchange string, change Change) error {
	s.saved = append(s.saved, change)
	return nil
}

func TestRegistryRoutesTicksBySymbolAndExchange(t *testing.T) {
	sink := &stubSink{}
	reg := NewRegistry(sink, zerolog.Nop(), WithMinChange(0.5))

	base := time.Now()
	reg.Observe(context.Background(), tickAt(base, "BTC-USD", 100))
	_, ok := reg.Observe(context.Background(), tickAt(base.Add(time.Second), "BTC-USD", 101))
	require.True(t, ok)

	reg.Observe(context.Background(), tickAt(base, "ETH-USD", 10))
	ethChange, ok := reg.Observe(context.Background(), tickAt(base.Add(time.Second), "ETH-USD", 10.01))
	require.True(t, ok)
	require.Equal(t, DirectionNeutral, ethChange.Direction) // below min_change for this independent scanner

	require.Len(t, sink.saved, 2)
}

func TestRegistryScannerIsStablePerKey(t *testing.T) {
	reg := NewRegistry(nil, zerolog.Nop())
	a := reg.Scanner("BTC-USD", "binance")
	b := reg.Scanner("BTC-USD", "binance")
	require.Same(t, a, b)

	c := reg.Scanner("BTC-USD", "kraken")
	require.NotSame(t, a, c)
}
