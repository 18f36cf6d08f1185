// Package scheduler triggers sampling cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/storm-watch-service/internal/domain"
	"github.com/couchcryptid/storm-watch-service/internal/sampling"
)

// CycleRunner runs one sampling cycle to completion.
type CycleRunner interface {
	Run(ctx context.Context) (domain.Reading, error)
}

// Scheduler runs a sampling cycle every interval, starting immediately.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    CycleRunner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler. Overlapping runs are skipped.
func New(runner CycleRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sampling job and starts the underlying scheduler. Cycles
// run with ctx, so cancelling it aborts an in-flight cycle.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid sampling interval %s", s.interval)
	}

	_, err := s.scheduler.Every(s.interval).Do(func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("schedule sampling job: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("sampling scheduler started", "interval", s.interval)
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("sampling scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sampling.ErrCycleInProgress):
		s.logger.Info("sampling cycle still running, skipping tick")
	default:
		// The coordinator already logged the cycle outcome.
		s.logger.Debug("scheduled cycle failed", "error", err)
	}
}
