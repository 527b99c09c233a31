package quality

import (
	"time"

	"github.com/fks/market-data/internal/types"
)

// MinPoints is spec.md §4.7's default minimum row count.
const MinPoints = 20

// CompletenessValidator checks required-field presence and gap counts
// against an expected nominal frequency.
type CompletenessValidator struct {
	RequiredFields []string
	MinPoints      int
}

// NewCompletenessValidator defaults RequiredFields to OHLCV, per
// spec.md §4.7.
func NewCompletenessValidator() *CompletenessValidator {
	return &CompletenessValidator{
		RequiredFields: []string{"open", "high", "low", "close", "volume"},
		MinPoints:      MinPoints,
	}
}

// Check evaluates bars for (symbol, frequency) completeness.
func (c *CompletenessValidator) Check(symbol, frequency string, bars []types.MarketBar) types.CompletenessResult {
	result := types.CompletenessResult{
		Symbol:        symbol,
		TotalRows:     len(bars),
		MissingFields: make(map[string]int),
	}
	if len(bars) == 0 {
		result.Status = types.CompletenessPoor
		return result
	}

	complete := 0
	for _, bar := range bars {
		rowOK := true
		if bar.Open == 0 && bar.High == 0 && bar.Low == 0 && bar.Close == 0 {
			result.MissingFields["ohlc"]++
			rowOK = false
		}
		if bar.Volume < 0 {
			result.MissingFields["volume"]++
			rowOK = false
		}
		if bar.TS.IsZero() {
			result.MissingFields["ts"]++
			rowOK = false
		}
		if rowOK {
			complete++
		}
	}

	result.CompleteRows = complete
	result.CompletenessPct = 100 * float64(complete) / float64(len(bars))
	result.MinPointsMet = len(bars) >= c.MinPoints
	result.GapsDetected = countGaps(bars, frequency)
	result.Status = statusFor(result.CompletenessPct)
	return result
}

func statusFor(pct float64) types.CompletenessStatus {
	switch {
	case pct >= 99:
		return types.CompletenessExcellent
	case pct >= 95:
		return types.CompletenessGood
	case pct >= 90:
		return types.CompletenessFair
	default:
		return types.CompletenessPoor
	}
}

func countGaps(bars []types.MarketBar, frequency string) int {
	expected, ok := expectedDurations[frequency]
	if !ok || len(bars) < 2 {
		return 0
	}
	threshold := time.Duration(float64(expected) * GapTolerance)
	gaps := 0
	for i := 1; i < len(bars); i++ {
		if bars[i].TS.Sub(bars[i-1].TS) > threshold {
			gaps++
		}
	}
	return gaps
}
