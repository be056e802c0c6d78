package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per scheduled tick. A returned error switches the
// next wait to the error backoff.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// ErrorBackoff replaces Interval after a failed tick; zero keeps Interval.
	ErrorBackoff time.Duration
	// AlignToStart snaps ticks to multiples of Interval instead of sleeping Interval after each tick.
	AlignToStart bool
	// Immediate runs the first tick without waiting.
	Immediate    bool
	StartupDelay time.Duration
}

// Scheduler drives sequential tick execution until its context is cancelled.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick until ctx is cancelled. Ticks never overlap.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextTick(time.Now().UTC())
	if s.opts.Immediate {
		next = time.Now().UTC()
	}

	for {
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		at := s.tickStart(next)
		err := tick(ctx, at)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now().UTC()
		if err != nil {
			backoff := s.opts.ErrorBackoff
			if backoff <= 0 {
				backoff = s.opts.Interval
			}
			s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("tick failed")
			next = now.Add(backoff)
			continue
		}

		if s.opts.AlignToStart {
			next = next.Add(s.opts.Interval)
			if next.Before(now) {
				next = s.nextTick(now)
			}
			continue
		}
		next = now.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) tickStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
