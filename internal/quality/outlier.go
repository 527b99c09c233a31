// Package quality implements outlier/freshness/completeness validators
// and a weighted composite scorer over normalized bars, per spec.md
// §4.7, generalizing the anomaly-detection shape of the now-removed
// internal/quality/validator.go (DataValidator.detectPriceAnomalies'
// moving-average deviation check, severity buckets, windowed history).
package quality

import (
	"math"
	"sort"

	"github.com/fks/market-data/internal/types"
)

// MinPeriods is spec.md §4.7's default minimum sample size before
// outlier detection runs.
const MinPeriods = 20

// DefaultZScoreThreshold, DefaultIQRThreshold, DefaultMADThreshold are
// spec.md §4.7's per-method defaults.
const (
	DefaultZScoreThreshold = 3.0
	DefaultIQRThreshold    = 1.5
	DefaultMADThreshold    = 3.0
)

// CleanupStrategy selects how flagged points are treated.
type CleanupStrategy string

const (
	CleanupRemove      CleanupStrategy = "remove"
	CleanupInterpolate CleanupStrategy = "interpolate"
	CleanupWinsorize   CleanupStrategy = "winsorize"
)

// OutlierDetector flags anomalous values in a numeric series using one
// of three selectable methods.
type OutlierDetector struct {
	Method      types.OutlierMethod
	Threshold   float64
	MinPeriods  int
	Window      int // 0 = whole series; >0 = rolling window for z-score
}

// NewOutlierDetector builds a detector with spec.md §4.7's defaults for
// the given method if threshold is zero.
func NewOutlierDetector(method types.OutlierMethod, threshold float64) *OutlierDetector {
	if threshold == 0 {
		switch method {
		case types.OutlierMethodIQR:
			threshold = DefaultIQRThreshold
		case types.OutlierMethodMAD:
			threshold = DefaultMADThreshold
		default:
			threshold = DefaultZScoreThreshold
		}
	}
	return &OutlierDetector{Method: method, Threshold: threshold, MinPeriods: MinPeriods}
}

// Detect returns the indices of values flagged as outliers, plus a
// result summarizing share and severity.
func (d *OutlierDetector) Detect(field string, values []float64) types.OutlierResult {
	if len(values) < d.MinPeriods {
		return types.OutlierResult{Field: field, Method: d.Method, Threshold: d.Threshold}
	}

	var flagged []int
	switch d.Method {
	case types.OutlierMethodIQR:
		flagged = d.detectIQR(values)
	case types.OutlierMethodMAD:
		flagged = d.detectMAD(values)
	default:
		flagged = d.detectZScore(values)
	}

	pct := 100 * float64(len(flagged)) / float64(len(values))
	return types.OutlierResult{
		Field:          field,
		OutlierIndices: flagged,
		OutlierCount:   len(flagged),
		Method:         d.Method,
		Threshold:      d.Threshold,
		Severity:       severityFor(pct),
	}
}

// Pct returns the flagged share for a result, recomputed from indices
// and the sample size that produced it.
func Pct(result types.OutlierResult, sampleSize int) float64 {
	if sampleSize == 0 {
		return 0
	}
	return 100 * float64(result.OutlierCount) / float64(sampleSize)
}

func severityFor(pct float64) types.OutlierSeverity {
	switch {
	case pct > 10:
		return types.OutlierSeverityHigh
	case pct > 5:
		return types.OutlierSeverityMedium
	default:
		return types.OutlierSeverityLow
	}
}

func (d *OutlierDetector) detectZScore(values []float64) []int {
	if d.Window <= 0 || d.Window >= len(values) {
		mean, std := meanStd(values)
		if std == 0 {
			return nil
		}
		var flagged []int
		for i, v := range values {
			if math.Abs(v-mean)/std > d.Threshold {
				flagged = append(flagged, i)
			}
		}
		return flagged
	}

	var flagged []int
	for i := range values {
		start := i - d.Window + 1
		if start < 0 {
			continue
		}
		mean, std := meanStd(values[start : i+1])
		if std == 0 {
			continue
		}
		if math.Abs(values[i]-mean)/std > d.Threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

func (d *OutlierDetector) detectIQR(values []float64) []int {
	q1, q3 := quartiles(values)
	iqr := q3 - q1
	lower := q1 - d.Threshold*iqr
	upper := q3 + d.Threshold*iqr

	var flagged []int
	for i, v := range values {
		if v < lower || v > upper {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

func (d *OutlierDetector) detectMAD(values []float64) []int {
	med := median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)
	if mad == 0 {
		return nil
	}

	var flagged []int
	for i, v := range values {
		if math.Abs(0.6745*(v-med)/mad) > d.Threshold {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// Clean applies strategy to the flagged indices and returns a cleaned
// copy of values; the original slice is untouched.
func Clean(values []float64, flagged []int, strategy CleanupStrategy) []float64 {
	if len(flagged) == 0 {
		return append([]float64(nil), values...)
	}
	isFlagged := make(map[int]bool, len(flagged))
	for _, i := range flagged {
		isFlagged[i] = true
	}

	switch strategy {
	case CleanupRemove:
		out := make([]float64, 0, len(values)-len(flagged))
		for i, v := range values {
			if !isFlagged[i] {
				out = append(out, v)
			}
		}
		return out
	case CleanupWinsorize:
		q1, q3 := quartiles(values)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr
		out := append([]float64(nil), values...)
		for i := range out {
			if isFlagged[i] {
				out[i] = math.Max(lower, math.Min(upper, out[i]))
			}
		}
		return out
	default: // interpolate
		out := append([]float64(nil), values...)
		for i := range out {
			if !isFlagged[i] {
				continue
			}
			prev, next := i-1, i+1
			for prev >= 0 && isFlagged[prev] {
				prev--
			}
			for next < len(out) && isFlagged[next] {
				next++
			}
			switch {
			case prev >= 0 && next < len(out):
				out[i] = (out[prev] + out[next]) / 2
			case prev >= 0:
				out[i] = out[prev]
			case next < len(out):
				out[i] = out[next]
			}
		}
		return out
	}
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / n)
	return mean, std
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func quartiles(values []float64) (q1, q3 float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	mid := n / 2
	if n%2 == 1 {
		q1 = median(sorted[:mid])
		q3 = median(sorted[mid+1:])
	} else {
		q1 = median(sorted[:mid])
		q3 = median(sorted[mid:])
	}
	return q1, q3
}
