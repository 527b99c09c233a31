package quality

import (
	"time"

	"github.com/fks/market-data/internal/types"
)

// GapTolerance is spec.md §4.7's default multiplier over the expected
// interval before a gap between consecutive timestamps is flagged.
const GapTolerance = 1.5

var expectedDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// FreshnessMonitor reports how stale a series is relative to an
// expected sampling frequency.
type FreshnessMonitor struct {
	WarningAfter  time.Duration
	CriticalAfter time.Duration
	GapTolerance  float64
}

// NewFreshnessMonitor builds a monitor with spec.md §4.7's defaults:
// fresh ≤5min, warning ≤15min, critical beyond.
func NewFreshnessMonitor() *FreshnessMonitor {
	return &FreshnessMonitor{
		WarningAfter:  5 * time.Minute,
		CriticalAfter: 15 * time.Minute,
		GapTolerance:  GapTolerance,
	}
}

// Check evaluates timestamps (assumed ascending) against now for
// (symbol, frequency), returning staleness status and internal gap count.
func (m *FreshnessMonitor) Check(symbol, frequency string, timestamps []time.Time, now time.Time) types.FreshnessResult {
	result := types.FreshnessResult{Symbol: symbol, ExpectedFrequency: frequency}
	if len(timestamps) == 0 {
		result.Status = types.FreshnessCritical
		return result
	}

	last := timestamps[len(timestamps)-1]
	age := now.Sub(last)
	result.LastTS = last
	result.AgeSeconds = age.Seconds()

	switch {
	case age <= m.WarningAfter:
		result.Status = types.FreshnessFresh
	case age <= m.CriticalAfter:
		result.Status = types.FreshnessWarning
	default:
		result.Status = types.FreshnessCritical
	}

	expected, ok := expectedDurations[frequency]
	if !ok {
		return result
	}
	gapThreshold := time.Duration(float64(expected) * m.GapTolerance)
	gaps := 0
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Sub(timestamps[i-1]) > gapThreshold {
			gaps++
		}
	}
	result.GapsDetected = gaps
	return result
}

// Score implements the composite freshness scaling by age alone: 100
// up to 1 minute, linear decay 100→50 across (1,15] minutes, 50→0
// across (15,60] minutes, and 0 beyond.
func (m *FreshnessMonitor) Score(age time.Duration) float64 {
	ageMin := age.Minutes()
	switch {
	case ageMin <= 1:
		return 100
	case ageMin <= 15:
		return 100 - (ageMin-1)*(50.0/14.0)
	case ageMin <= 60:
		return 50 - (ageMin-15)*(50.0/45.0)
	default:
		return 0
	}
}
