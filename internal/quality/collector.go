package quality

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fks/market-data/internal/types"
)

// ScoreSink persists composite score rows, per spec.md §4.8's
// (time, symbol, overall, status, component_scores, issues,
// issue_count, check_duration_ms) row shape.
type ScoreSink interface {
	SaveScore(ctx context.Context, score types.QualityScore) error
}

// Sample is one (symbol, bars, timestamp?) unit the collector checks.
// Timestamp defaults to time.Now() when zero.
type Sample struct {
	Symbol    string
	Frequency string
	Bars      []types.MarketBar
	Timestamp time.Time
}

// Collector wraps the outlier/freshness/completeness scorer, times
// each check, updates Prometheus instruments, and optionally persists
// the resulting composite score row. Grounded on
// internal/interfaces/http/metrics.go's StepTimer/MetricsRegistry
// pairing (time the unit of work, then record it against the
// registry) generalized from pipeline steps to quality checks.
type Collector struct {
	scorer  *Scorer
	metrics *MetricsRegistry
	sink    ScoreSink
	log     zerolog.Logger
}

// NewCollector builds a collector. sink may be nil to skip persistence.
func NewCollector(scorer *Scorer, metrics *MetricsRegistry, sink ScoreSink, log zerolog.Logger) *Collector {
	return &Collector{scorer: scorer, metrics: metrics, sink: sink, log: log.With().Str("component", "quality_collector").Logger()}
}

// Check scores a single sample, records metrics, and persists the
// result if a sink is configured.
func (c *Collector) Check(ctx context.Context, sample Sample) (types.QualityScore, error) {
	now := sample.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	start := time.Now()
	score := c.scorer.Score(sample.Symbol, sample.Frequency, sample.Bars, now)
	elapsed := time.Since(start)

	var lastTS time.Time
	if len(sample.Bars) > 0 {
		lastTS = sample.Bars[len(sample.Bars)-1].TS
	}
	outlierResult := c.scorer.outlier.Detect("close", closesOf(sample.Bars))

	c.metrics.observe(sample.Symbol, qualityObservation{
		outlierScore:        score.OutlierScore,
		freshnessScore:      score.FreshnessScore,
		completenessScore:   score.CompletenessPct,
		overall:             score.Overall,
		freshnessAgeSeconds: now.Sub(lastTS).Seconds(),
		outlierCount:        outlierResult.OutlierCount,
		stale:               len(sample.Bars) == 0 || now.Sub(lastTS) > c.scorer.freshness.CriticalAfter,
		durationSeconds:     elapsed.Seconds(),
		status:              score.Status,
	})

	c.log.Debug().
		Str("symbol", sample.Symbol).
		Float64("overall", score.Overall).
		Str("status", string(score.Status)).
		Dur("duration", elapsed).
		Msg("quality check complete")

	if c.sink == nil {
		return score, nil
	}
	if err := c.sink.SaveScore(ctx, score); err != nil {
		c.log.Warn().Err(err).Str("symbol", sample.Symbol).Msg("failed to persist quality score")
		return score, err
	}
	return score, nil
}

// CheckBatch runs Check over every sample in order, continuing past
// per-symbol failures per spec.md §4.8, and returns every score
// produced alongside a map of symbol -> error for failures.
func (c *Collector) CheckBatch(ctx context.Context, samples []Sample) ([]types.QualityScore, map[string]error) {
	scores := make([]types.QualityScore, 0, len(samples))
	failures := make(map[string]error)
	for _, sample := range samples {
		score, err := c.Check(ctx, sample)
		scores = append(scores, score)
		if err != nil {
			failures[sample.Symbol] = err
		}
	}
	return scores, failures
}

func closesOf(bars []types.MarketBar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return closes
}
