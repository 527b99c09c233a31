package quality

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fks/market-data/internal/types"
)

// MetricsRegistry holds the Prometheus instruments the collector
// updates on every check, grounded on
// internal/interfaces/http/metrics.go's MetricsRegistry pattern:
// gauges/counters/histograms built and registered once at construction.
type MetricsRegistry struct {
	ComponentScore *prometheus.GaugeVec
	FreshnessAge   *prometheus.GaugeVec
	OutliersTotal  *prometheus.CounterVec
	StaleTotal     *prometheus.CounterVec
	CheckDuration  *prometheus.HistogramVec
	ChecksTotal    *prometheus.CounterVec
}

// NewMetricsRegistry builds and registers the quality-collector metrics
// against reg. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the global DefaultRegisterer across test runs.
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	m := &MetricsRegistry{
		ComponentScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketdata_quality_component_score",
				Help: "Latest component quality score by symbol and component",
			},
			[]string{"symbol", "component"},
		),
		FreshnessAge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketdata_quality_freshness_age_seconds",
				Help: "Age in seconds of the most recent bar at last check",
			},
			[]string{"symbol"},
		),
		OutliersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdata_quality_outliers_total",
				Help: "Total outliers flagged by symbol",
			},
			[]string{"symbol"},
		),
		StaleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdata_quality_stale_events_total",
				Help: "Total critical-freshness events by symbol",
			},
			[]string{"symbol"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketdata_quality_check_duration_seconds",
				Help:    "Duration of a quality check",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"symbol"},
		),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdata_quality_checks_total",
				Help: "Total quality checks run by symbol and status",
			},
			[]string{"symbol", "status"},
		),
	}

	reg.MustRegister(
		m.ComponentScore,
		m.FreshnessAge,
		m.OutliersTotal,
		m.StaleTotal,
		m.CheckDuration,
		m.ChecksTotal,
	)
	return m
}

func (m *MetricsRegistry) observe(symbol string, score qualityObservation) {
	m.ComponentScore.WithLabelValues(symbol, "outlier").Set(score.outlierScore)
	m.ComponentScore.WithLabelValues(symbol, "freshness").Set(score.freshnessScore)
	m.ComponentScore.WithLabelValues(symbol, "completeness").Set(score.completenessScore)
	m.ComponentScore.WithLabelValues(symbol, "overall").Set(score.overall)
	m.FreshnessAge.WithLabelValues(symbol).Set(score.freshnessAgeSeconds)
	m.OutliersTotal.WithLabelValues(symbol).Add(float64(score.outlierCount))
	if score.stale {
		m.StaleTotal.WithLabelValues(symbol).Inc()
	}
	m.CheckDuration.WithLabelValues(symbol).Observe(score.durationSeconds)
	m.ChecksTotal.WithLabelValues(symbol, string(score.status)).Inc()
}

type qualityObservation struct {
	outlierScore        float64
	freshnessScore      float64
	completenessScore   float64
	overall             float64
	freshnessAgeSeconds float64
	outlierCount        int
	stale               bool
	durationSeconds     float64
	status              types.QualityStatus
}
