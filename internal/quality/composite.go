package quality

import (
	"time"

	"github.com/fks/market-data/internal/types"
)

// Scorer combines the outlier, freshness, and completeness components
// into spec.md §4.7's weighted composite.
type Scorer struct {
	outlier      *OutlierDetector
	freshness    *FreshnessMonitor
	completeness *CompletenessValidator
}

// NewScorer builds a composite scorer from default-configured
// component validators. The weights (types.WeightOutlier etc.) must
// sum to 1.0; enforced here at construction rather than on the pure
// data type.
func NewScorer() *Scorer {
	if types.WeightOutlier+types.WeightFreshness+types.WeightCompleteness != 1.0 {
		panic("quality: component weights must sum to 1.0")
	}
	return &Scorer{
		outlier:      NewOutlierDetector(types.OutlierMethodMAD, 0),
		freshness:    NewFreshnessMonitor(),
		completeness: NewCompletenessValidator(),
	}
}

// Score computes the composite quality assessment for one symbol's
// bar series at frequency, evaluated against now.
func (s *Scorer) Score(symbol, frequency string, bars []types.MarketBar, now time.Time) types.QualityScore {
	start := time.Now()

	closes := make([]float64, len(bars))
	timestamps := make([]time.Time, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		timestamps[i] = bar.TS
	}

	outlierResult := s.outlier.Detect("close", closes)
	outlierPct := Pct(outlierResult, len(closes))
	outlierScore := max(0, 100-10*outlierPct)

	freshnessResult := s.freshness.Check(symbol, frequency, timestamps, now)
	freshnessScore := s.freshness.Score(now.Sub(freshnessResult.LastTS))

	completenessResult := s.completeness.Check(symbol, frequency, bars)
	completenessScore := completenessResult.CompletenessPct
	if !completenessResult.MinPointsMet {
		completenessScore /= 2
	}

	overall := types.WeightOutlier*outlierScore +
		types.WeightFreshness*freshnessScore +
		types.WeightCompleteness*completenessScore

	score := types.QualityScore{
		Symbol:          symbol,
		Overall:         overall,
		OutlierScore:    outlierScore,
		FreshnessScore:  freshnessScore,
		CompletenessPct: completenessScore,
		Status:          statusForScore(overall),
		Timestamp:       now,
		CheckDurationMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	score.Issues, score.Recommendations = issuesFor(outlierResult, freshnessResult, completenessResult)
	return score
}

func statusForScore(overall float64) types.QualityStatus {
	switch {
	case overall >= 90:
		return types.QualityExcellent
	case overall >= 75:
		return types.QualityGood
	case overall >= 60:
		return types.QualityFair
	default:
		return types.QualityPoor
	}
}

// issuesFor derives issues/recommendations deterministically from
// which components fall below their thresholds, per spec.md §4.7.
func issuesFor(outlier types.OutlierResult, freshness types.FreshnessResult, completeness types.CompletenessResult) ([]string, []string) {
	var issues, recommendations []string

	if outlier.Severity == types.OutlierSeverityHigh {
		issues = append(issues, "high share of outlier values in close price series")
		recommendations = append(recommendations, "investigate provider for price feed instability")
	} else if outlier.Severity == types.OutlierSeverityMedium {
		issues = append(issues, "elevated outlier share in close price series")
	}

	if freshness.Status == types.FreshnessCritical {
		issues = append(issues, "data is critically stale")
		recommendations = append(recommendations, "check provider connectivity and scheduler cadence")
	} else if freshness.Status == types.FreshnessWarning {
		issues = append(issues, "data freshness is degrading")
	}
	if freshness.GapsDetected > 0 {
		issues = append(issues, "gaps detected between consecutive bars")
	}

	switch completeness.Status {
	case types.CompletenessPoor:
		issues = append(issues, "completeness below acceptable threshold")
		recommendations = append(recommendations, "backfill missing rows for this symbol/interval")
	case types.CompletenessFair:
		issues = append(issues, "completeness below excellent threshold")
	}
	if !completeness.MinPointsMet {
		issues = append(issues, "sample size below minimum required points")
	}

	return issues, recommendations
}
