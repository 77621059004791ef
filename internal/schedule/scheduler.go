// Package schedule runs registered jobs on a cron expression. The bot uses a
// single daily tick for birthday announcements and banner rotation.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// Job is a named unit of scheduled work. Run errors are logged, never fatal.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// withTimer replaces the wait timer, letting tests fire ticks instantly.
func withTimer(timer func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) { s.timer = timer }
}

// Scheduler sleeps until the next tick of its cron expression, runs every
// registered job sequentially, and repeats until its context is cancelled.
type Scheduler struct {
	expr  string
	log   *slog.Logger
	timer func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	jobs []Job
}

// New creates a [Scheduler] for the given five-field cron expression.
func New(expr string, opts ...Option) (*Scheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("schedule: invalid cron expression %q", expr)
	}
	s := &Scheduler{
		expr:  expr,
		log:   slog.Default().With("component", "schedule"),
		timer: func(d time.Duration) <-chan time.Time { return time.After(d) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add registers a job. Jobs run in registration order on every tick.
func (s *Scheduler) Add(name string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, Job{Name: name, Run: run})
}

// Run blocks until ctx is cancelled, executing all jobs at each cron tick.
// It returns ctx.Err after cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next, err := gronx.NextTickAfter(s.expr, time.Now(), false)
		if err != nil {
			return fmt.Errorf("schedule: next tick for %q: %w", s.expr, err)
		}
		s.log.Debug("sleeping until next tick", "at", next)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.timer(time.Until(next)):
		}

		s.runJobs(ctx)
	}
}

func (s *Scheduler) runJobs(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		if err := job.Run(ctx); err != nil {
			s.log.Error("scheduled job failed", "job", job.Name, "error", err)
			continue
		}
		s.log.Info("scheduled job completed", "job", job.Name)
	}
}
