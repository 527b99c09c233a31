package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeRangeFields(t *testing.T) {
	tr := TimeRange{
		From: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 9, 7, 11, 0, 0, 0, time.UTC),
	}
	require.True(t, tr.From.Before(tr.To))
}

func TestHealthCheckZeroValue(t *testing.T) {
	var hc HealthCheck
	require.False(t, hc.Healthy)
	require.Empty(t, hc.Errors)
}
