// Package scheduler runs rotations on cron schedules for serve mode.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/systmms/keyrot/internal/logging"
)

// Scheduler triggers named jobs on cron expressions. A job that is still
// running when its next tick arrives is skipped, not stacked.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
}

// New creates a scheduler using standard 5-field cron expressions.
func New(logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger: logger,
	}
}

// Add registers a job under a cron expression.
func (s *Scheduler) Add(spec, name string, job func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("Schedule fired for %s", name)
		job()
	})
	if err != nil {
		return err
	}
	s.logger.Info("Scheduled %s with cron expression %q", name, spec)
	return nil
}

// Start begins firing schedules in their own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for running jobs to finish")
	}
}
