// Package scheduler runs a function repeatedly on a self-correcting timer:
// each run is followed by exactly one re-arm, delayed by what is left of the
// interval after the run's own duration.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Scheduler drives Run at most once per Interval.
type Scheduler struct {
	interval time.Duration
	run      func(ctx context.Context)
	clock    Clock

	mu      sync.Mutex
	timer   Timer
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	gen     uint64
}

// New creates a stopped scheduler.
func New(interval time.Duration, run func(ctx context.Context), clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock
	}
	return &Scheduler{interval: interval, run: run, clock: clock}
}

// NextDelay is the wait after a run that took elapsed.
func NextDelay(interval, elapsed time.Duration) time.Duration {
	return max(0, interval-elapsed)
}

// Start arms the first run after delay. The context passed to runs is
// derived from ctx and cancelled by Stop. Calling Start while running
// re-arms with the new delay.
func (s *Scheduler) Start(ctx context.Context, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.ctx, s.cancel = context.WithCancel(ctx)
		s.running = true
	}
	s.armLocked(delay)
}

// Stop disarms the pending timer and prevents further runs. A run already
// in progress sees its context cancelled and is not rescheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
}

// Running reports whether the scheduler is armed or executing.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) armLocked(delay time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx := s.ctx
	s.mu.Unlock()

	start := s.clock.Now()
	s.run(ctx)
	elapsed := s.clock.Now().Sub(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}
	s.armLocked(NextDelay(s.interval, elapsed))
}
