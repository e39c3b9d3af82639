// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single run of a job.
const DefaultJobTimeout = 30 * time.Second

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Observer is told about every finished run.
type Observer interface {
	ObserveJobRun(job string, err error)
}

// Scheduler handles periodic jobs such as the backend health check.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a new scheduler instance. observer may be nil.
func New(logger *slog.Logger, observer Observer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		logger:   logger,
		observer: observer,
		timeout:  DefaultJobTimeout,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]Job),
	}
}

// Add registers job under name. schedule is a five field cron expression or
// a descriptor such as "@every 1m".
func (s *Scheduler) Add(name, schedule string, job Job) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("scheduling %q: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

// RunNow runs a registered job immediately and returns its error.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	return s.run(name, job)
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	if s.observer != nil {
		s.observer.ObserveJobRun(name, err)
	}
	if err != nil {
		s.logger.Warn("scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
	return nil
}

// ValidateSchedule checks a cron expression or descriptor.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
