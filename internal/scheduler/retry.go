package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetryAttempts is spec.md §4.4's "up to three attempts".
const DefaultRetryAttempts = 3

const (
	backoffBase   = 250 * time.Millisecond
	backoffCap    = 30 * time.Second
	backoffJitter = 0.25 // ±25%, grounded on guard.go's calculateBackoff
)

// RunWithRetry retries task.Run on any error with capped, jittered
// exponential backoff, per spec.md §4.4. A task whose context is
// canceled mid-attempt is not retried further.
func RunWithRetry(ctx context.Context, task Task, attempts int, log zerolog.Logger) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := task.Run(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("task", task.Name()).Int("attempt", attempt).Msg("task attempt failed")

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(backoffFor(attempt)):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{}, lastErr
}

func backoffFor(attempt int) time.Duration {
	raw := float64(backoffBase) * math.Pow(2, float64(attempt-1))
	if raw > float64(backoffCap) {
		raw = float64(backoffCap)
	}
	jitter := raw * backoffJitter * (rand.Float64()*2 - 1)
	d := time.Duration(raw + jitter)
	if d < 0 {
		d = backoffBase
	}
	return d
}
