package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/bamsammich/mirror/internal/event"
)

// State is the scheduler's position within a cycle.
type State int32

const (
	Idle State = iota
	Scanning
	Diffing
	Applying
	Reporting
)

var stateNames = [...]string{
	Idle:      "idle",
	Scanning:  "scanning",
	Diffing:   "diffing",
	Applying:  "applying",
	Reporting: "reporting",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// cycleRunner is the part of Engine the scheduler drives.
type cycleRunner interface {
	RunCycle(ctx context.Context, n uint64, track func(State)) CycleResult
}

// Scheduler runs cycles back to back, starting one every interval measured
// start to start. A cycle that overruns the interval is followed immediately
// by the next; cycles never overlap. A failed or panicking cycle is reported
// and the loop continues.
type Scheduler struct {
	runner   cycleRunner
	events   chan<- event.Event
	now      func() time.Time
	interval time.Duration
	cycle    atomic.Uint64
	state    atomic.Int32
}

// NewScheduler creates a Scheduler. events, if non-nil, receives the cycle
// lifecycle events.
func NewScheduler(runner cycleRunner, interval time.Duration, events chan<- event.Event) *Scheduler {
	return &Scheduler{
		runner:   runner,
		events:   events,
		now:      time.Now,
		interval: interval,
	}
}

// State returns the current state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Cycles returns how many cycles have started.
func (s *Scheduler) Cycles() uint64 { return s.cycle.Load() }

// Run starts the first cycle immediately and keeps going until ctx is
// cancelled. An in-progress cycle stops at the next action boundary. Run
// returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		started := s.now()
		s.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := s.interval - s.now().Sub(started)
		if wait < 0 {
			slog.Warn("cycle overran interval",
				"cycle", s.cycle.Load(),
				"interval", s.interval,
				"over", -wait,
			)
			wait = 0
		}
		timer.Reset(wait)
	}
}

// RunOnce executes a single cycle and returns its result. Panics inside the
// cycle are recovered and reported as a failed cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (result CycleResult) {
	n := s.cycle.Add(1)
	started := s.now()
	s.emit(event.Event{Type: event.CycleStarted, Cycle: n})

	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", "cycle", n, "panic", r, "stack", string(debug.Stack()))
			result = CycleResult{Cycle: n, Err: fmt.Errorf("cycle %d panicked: %v", n, r)}
		}

		s.setState(Reporting)
		result.Stats.Elapsed = s.now().Sub(started)
		ev := event.Event{Cycle: n, Summary: result.Stats}
		switch {
		case result.Err != nil && !result.Interrupted:
			ev.Type = event.CycleFailed
			ev.Error = result.Err
		case result.Interrupted:
			ev.Type = event.CycleCompleted
			ev.Reason = "interrupted"
		default:
			ev.Type = event.CycleCompleted
		}
		s.emit(ev)
		s.setState(Idle)
	}()

	return s.runner.RunCycle(ctx, n, s.setState)
}

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

func (s *Scheduler) emit(ev event.Event) {
	if s.events == nil {
		return
	}
	ev.Timestamp = s.now()
	s.events <- ev
}
