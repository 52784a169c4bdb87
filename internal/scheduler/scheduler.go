package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tpalerts/internal/logging"
)

// StepFunc runs one unit of work and returns how long to wait before the next.
type StepFunc func(ctx context.Context) time.Duration

// Options tune scheduler behaviour.
type Options struct {
	StartupDelay time.Duration
}

// Scheduler repeatedly invokes a step function, sleeping between calls for the
// duration the step asked for.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	return &Scheduler{opts: opts, logger: logging.Component(logger, "scheduler")}
}

// Run blocks until ctx is cancelled and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, step StepFunc) error {
	if err := Sleep(ctx, s.opts.StartupDelay); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := step(ctx)
		if wait > 0 {
			s.logger.Debug().Time("next_run", time.Now().Add(wait)).Dur("wait", wait).Msg("waiting for next step")
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
