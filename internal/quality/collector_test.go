package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/fks/market-data/internal/types"
)

type stubSink struct {
	saved []types.QualityScore
	fail  map[string]bool
}

func (s *stubSink) SaveScore(ctx context.Context, score types.QualityScore) error {
	if s.fail[score.Symbol] {
		return errors.New("save failed")
	}
	s.saved = append(s.saved, score)
	return nil
}

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	counter, err := c.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestCollectorCheckRecordsMetricsAndPersists(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsRegistry(reg)
	sink := &stubSink{fail: map[string]bool{}}
	collector := NewCollector(NewScorer(), metrics, sink, zerolog.Nop())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bars := barsFrom(now.Add(-20*time.Minute), 25, time.Minute)

	score, err := collector.Check(context.Background(), Sample{
		Symbol: "BTC-USD", Frequency: "1m", Bars: bars, Timestamp: now,
	})
	require.NoError(t, err)
	require.Equal(t, "BTC-USD", score.Symbol)
	require.Len(t, sink.saved, 1)
	require.Equal(t, 1.0, counterValue(t, metrics.ChecksTotal, "BTC-USD", string(score.Status)))
}

func TestCollectorCheckSinkFailureStillReturnsScore(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsRegistry(reg)
	sink := &stubSink{fail: map[string]bool{"BTC-USD": true}}
	collector := NewCollector(NewScorer(), metrics, sink, zerolog.Nop())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bars := barsFrom(now.Add(-20*time.Minute), 25, time.Minute)

	score, err := collector.Check(context.Background(), Sample{Symbol: "BTC-USD", Frequency: "1m", Bars: bars, Timestamp: now})
	require.Error(t, err)
	require.Equal(t, "BTC-USD", score.Symbol)
	require.Empty(t, sink.saved)
}

func TestCollectorCheckNilSinkSkipsPersistence(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsRegistry(reg)
	collector := NewCollector(NewScorer(), metrics, nil, zerolog.Nop())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bars := barsFrom(now.Add(-20*time.Minute), 25, time.Minute)

	_, err := collector.Check(context.Background(), Sample{Symbol: "ETH-USD", Frequency: "1m", Bars: bars, Timestamp: now})
	require.NoError(t, err)
}

func TestCollectorCheckBatchContinuesPastFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsRegistry(reg)
	sink := &stubSink{fail: map[string]bool{"ETH-USD": true}}
	collector := NewCollector(NewScorer(), metrics, sink, zerolog.Nop())

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	bars := barsFrom(now.Add(-20*time.Minute), 25, time.Minute)

	samples := []Sample{
		{Symbol: "BTC-USD", Frequency: "1m", Bars: bars, Timestamp: now},
		{Symbol: "ETH-USD", Frequency: "1m", Bars: bars, Timestamp: now},
		{Symbol: "SOL-USD", Frequency: "1m", Bars: bars, Timestamp: now},
	}
	scores, failures := collector.CheckBatch(context.Background(), samples)
	require.Len(t, scores, 3)
	require.Len(t, failures, 1)
	require.Contains(t, failures, "ETH-USD")
	require.Len(t, sink.saved, 2)
}

func TestCollectorDefaultsTimestampWhenZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetricsRegistry(reg)
	collector := NewCollector(NewScorer(), metrics, nil, zerolog.Nop())

	bars := barsFrom(time.Now().Add(-time.Minute), 25, time.Second)
	score, err := collector.Check(context.Background(), Sample{Symbol: "BTC-USD", Frequency: "1m", Bars: bars})
	require.NoError(t, err)
	require.False(t, score.Timestamp.IsZero())
}
