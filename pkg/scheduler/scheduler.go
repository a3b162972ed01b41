package scheduler

import (
	"context"
	"sync"
	"time"

	"StockPulse/pkg/logger"
)

// Job is a unit of periodic work run by the Scheduler.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Interval returns how often the job should run.
	Interval() time.Duration

	// Run executes the job once.
	Run(ctx context.Context) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// RealClock returns a Clock backed by the system time.
func RealClock() Clock { return realClock{} }

// Scheduler runs registered jobs on their intervals until stopped.
type Scheduler struct {
	log   *logger.Logger
	clock Clock
	jobs  []Job

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a Scheduler. A nil clock defaults to the system clock.
func New(log *logger.Logger, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{log: log, clock: clock}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(jobs ...Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, jobs...)
}

// Start launches one goroutine per registered job. Each job runs once
// immediately and then on every tick of its interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.runLoop(ctx, j)
		}(job)
	}

	go func() {
		wg.Wait()
		close(s.done)
	}()
}

func (s *Scheduler) runLoop(ctx context.Context, j Job) {
	s.runOnce(ctx, j)

	ticker := s.clock.NewTicker(j.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	start := s.clock.Now()
	if err := j.Run(ctx); err != nil {
		s.log.Warn("scheduled job failed",
			logger.String("job", j.Name()),
			logger.Error(err))
		return
	}
	s.log.Debug("scheduled job completed",
		logger.String("job", j.Name()),
		logger.Duration("elapsed", s.clock.Now().Sub(start)))
}

// Stop cancels all job loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done, started := s.cancel, s.done, s.started
	s.started = false
	s.mu.Unlock()

	if !started {
		return
	}
	cancel()
	<-done
}
