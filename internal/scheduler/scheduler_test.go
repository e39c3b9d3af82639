// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (o *recordingObserver) ObserveJobRun(job string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = make(map[string][]error)
	}
	o.runs[job] = append(o.runs[job], err)
}

func (o *recordingObserver) count(job string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.runs[job])
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"* * * * *", false},
		{"*/5 * * * *", false},
		{"@every 1m", false},
		{"@hourly", false},
		{"", true},
		{"not a schedule", true},
		{"* * * *", true},
		{"61 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_Add(t *testing.T) {
	s := New(testLogger(), nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("ping", "@every 1m", noop))
	assert.Error(t, s.Add("ping", "@every 1m", noop), "duplicate name")
	assert.Error(t, s.Add("other", "bogus", noop), "invalid schedule")
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &recordingObserver{}
	s := New(testLogger(), obs)
	boom := errors.New("boom")

	require.NoError(t, s.Add("ok", "@hourly", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("fails", "@hourly", func(context.Context) error { return boom }))

	assert.NoError(t, s.RunNow("ok"))
	assert.ErrorIs(t, s.RunNow("fails"), boom)
	assert.Error(t, s.RunNow("missing"))

	assert.Equal(t, []error{nil}, obs.runs["ok"])
	assert.Equal(t, []error{boom}, obs.runs["fails"])
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	obs := &recordingObserver{}
	s := New(testLogger(), obs)

	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error { return nil }))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return obs.count("tick") > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := New(testLogger(), nil)
	started := make(chan struct{})
	done := make(chan error, 1)

	require.NoError(t, s.Add("slow", "@hourly", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	go func() { done <- s.RunNow("slow") }()
	<-started
	s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Health(context.Context) error { return p.err }

type fakeGauge struct{ up *bool }

func (g *fakeGauge) SetBackendUp(up bool) { g.up = &up }

func TestBackendHealthCheck(t *testing.T) {
	g := &fakeGauge{}
	require.NoError(t, BackendHealthCheck(fakePinger{}, g)(context.Background()))
	require.NotNil(t, g.up)
	assert.True(t, *g.up)

	down := errors.New("connection refused")
	assert.ErrorIs(t, BackendHealthCheck(fakePinger{err: down}, g)(context.Background()), down)
	assert.False(t, *g.up)
}
