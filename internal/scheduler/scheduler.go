// Package scheduler runs the engagement jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err.Error()}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}

// Scheduler owns a cron runner and the jobs registered on it.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   map[string]cron.EntryID
}

// New returns a Scheduler evaluating schedules in loc. Panicking jobs are
// recovered and logged; a job still running when its next tick fires is
// not started twice.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Register schedules job under name using a standard five-field spec.
func (s *Scheduler) Register(name, spec string, job func()) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("scheduled job triggered", slog.String("job", name))
		job()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	s.jobs[name] = id
	return nil
}

// Next reports when name fires next. ok is false for unknown jobs or before Start.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, exists := s.jobs[name]
	if !exists {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
