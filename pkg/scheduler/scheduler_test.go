package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"StockPulse/pkg/logger"
)

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

type fakeClock struct {
	now    time.Time
	ticker *fakeTicker
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) NewTicker(time.Duration) Ticker { return f.ticker }

type countingJob struct {
	name  string
	runs  atomic.Int64
	runCh chan struct{}
}

func (c *countingJob) Name() string            { return c.name }
func (c *countingJob) Interval() time.Duration { return time.Hour }

func (c *countingJob) Run(context.Context) error {
	c.runs.Add(1)
	select {
	case c.runCh <- struct{}{}:
	default:
	}
	return nil
}

func TestSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	clock := &fakeClock{
		now:    time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
	job := &countingJob{name: "refresh", runCh: make(chan struct{}, 4)}

	s := New(logger.Nop(), clock)
	s.Register(job)
	s.Start(context.Background())
	defer s.Stop()

	waitRun(t, job.runCh)
	if got := job.runs.Load(); got != 1 {
		t.Fatalf("runs after start = %d, want 1", got)
	}

	clock.ticker.ch <- clock.now.Add(time.Hour)
	waitRun(t, job.runCh)
	if got := job.runs.Load(); got != 2 {
		t.Fatalf("runs after tick = %d, want 2", got)
	}
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	clock := &fakeClock{
		now:    time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		ticker: &fakeTicker{ch: make(chan time.Time)},
	}
	job := &countingJob{name: "prune", runCh: make(chan struct{}, 4)}

	s := New(logger.Nop(), clock)
	s.Register(job)
	s.Start(context.Background())

	waitRun(t, job.runCh)
	s.Stop()

	before := job.runs.Load()
	select {
	case clock.ticker.ch <- clock.now.Add(time.Hour):
		t.Fatal("ticker still consumed after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	if got := job.runs.Load(); got != before {
		t.Fatalf("runs changed after Stop: %d -> %d", before, got)
	}
}

func waitRun(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job run")
	}
}
