// Package scheduler fans out periodic collection tasks across a bounded
// worker pool on a cron schedule, per spec.md §4.4.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task is a unit of scheduled work. Grounded on
// aristath-sentinel/trader-go/internal/scheduler/scheduler.go's Job
// interface, generalized to take a context and return a result for
// structured logging.
type Task interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Result is a task's outcome, logged but not otherwise propagated, per
// spec.md §4.7's "background loops log and continue" policy.
type Result struct {
	Status         string
	Provider       string
	CandlesFetched int
	CandlesStored  int
	Timestamp      time.Time
}

// Scheduler wraps robfig/cron with a bounded worker pool so fan-out
// tasks queue rather than pile up when a cron tick fires faster than
// the prior run's tasks drain.
type Scheduler struct {
	cron *cron.Cron
	sem  chan struct{}
	log  zerolog.Logger
}

// New builds a Scheduler whose concurrent task execution is capped at
// poolSize. A poolSize of 0 defaults to 4.
func New(poolSize int, log zerolog.Logger) *Scheduler {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		sem:  make(chan struct{}, poolSize),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddTask registers task to run on the given cron schedule. Accepts
// six-field cron expressions (leading seconds field) plus robfig's
// descriptors such as "@every 5m".
func (s *Scheduler) AddTask(ctx context.Context, schedule string, task Task) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runBounded(ctx, task)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("task", task.Name()).Msg("task registered")
	return nil
}

// runBounded acquires a worker-pool slot before running task, so a slow
// task does not block unrelated siblings from ever starting — it only
// blocks once the pool is saturated.
func (s *Scheduler) runBounded(ctx context.Context, task Task) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	result, err := RunWithRetry(ctx, task, DefaultRetryAttempts, s.log)
	if err != nil {
		s.log.Error().Err(err).Str("task", task.Name()).Msg("task failed after retries")
		return
	}
	s.log.Debug().
		Str("task", task.Name()).
		Str("status", result.Status).
		Int("candles_fetched", result.CandlesFetched).
		Int("candles_stored", result.CandlesStored).
		Msg("task completed")
}

// RunNow executes task immediately, outside its cron schedule, still
// subject to the worker pool bound.
func (s *Scheduler) RunNow(ctx context.Context, task Task) (Result, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-s.sem }()
	return RunWithRetry(ctx, task, DefaultRetryAttempts, s.log)
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop drains in-flight cron invocations before returning.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info().Msg("scheduler stopped")
}
