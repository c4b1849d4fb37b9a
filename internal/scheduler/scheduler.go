// Package scheduler drives the periodic scrape cycle. One cycle runs at
// startup, then one per fixed interval; a trigger that arrives while a cycle
// is still running is dropped, never queued.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"market-watch/internal/observability/metrics"
	"market-watch/internal/usecase/monitor"
)

// State is the scheduler's lifecycle phase.
type State int32

const (
	// StateIdle means no cycle is running and triggers are accepted.
	StateIdle State = iota
	// StateRunning means a cycle is in flight; triggers are dropped.
	StateRunning
	// StateCancelling means Stop was called with a cycle in flight.
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Trigger labels what started a cycle.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// CycleRunner runs one full scrape cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*monitor.CycleStats, error)
}

// LastCycle is the stored outcome of the most recently finished cycle,
// served by the operator status endpoint.
type LastCycle struct {
	Trigger    Trigger
	Stats      *monitor.CycleStats
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Config holds scheduling settings.
type Config struct {
	// Interval is the fixed delay between scheduled cycle starts.
	Interval time.Duration
	// CycleTimeout bounds one full cycle end to end.
	CycleTimeout time.Duration
}

// DefaultConfig returns the default 30-minute schedule.
func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Minute,
		CycleTimeout: 25 * time.Minute,
	}
}

// Scheduler owns the cycle cadence. Exactly one cycle runs at a time; the
// state machine goes Idle -> Running on a trigger, Running -> Cancelling on
// Stop, and back to Idle when the cycle finishes.
type Scheduler struct {
	runner CycleRunner
	cfg    Config

	state atomic.Int32
	cron  *cron.Cron
	wg    sync.WaitGroup

	mu            sync.Mutex
	cancelCurrent context.CancelFunc
	lastCycle     *LastCycle
}

// New creates a scheduler over the given cycle runner.
func New(runner CycleRunner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultConfig().CycleTimeout
	}
	return &Scheduler{runner: runner, cfg: cfg}
}

// Start kicks off the startup cycle and the periodic schedule. It returns
// once the schedule is armed; cycles run in background goroutines.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	spec := "@every " + s.cfg.Interval.String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.Trigger(TriggerSchedule)
	}); err != nil {
		return fmt.Errorf("arm schedule %q: %w", spec, err)
	}
	s.cron.Start()

	slog.Info("scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("cycle_timeout", s.cfg.CycleTimeout))

	// Startup cycle so a fresh deploy does not wait a full interval for its
	// first results.
	s.Trigger(TriggerStartup)
	return nil
}

// Trigger starts a cycle now if the scheduler is idle. It reports whether
// the cycle was actually started; an overlapping trigger is dropped.
func (s *Scheduler) Trigger(trigger Trigger) bool {
	// The cancel func and waitgroup registration must be visible before the
	// Running state is, or a concurrent Stop could observe Running with
	// nothing to cancel and a waitgroup it can pass straight through.
	s.mu.Lock()
	if State(s.state.Load()) != StateIdle {
		s.mu.Unlock()
		metrics.RecordCycleSkipped()
		slog.Warn("cycle trigger dropped, previous cycle still running",
			slog.String("trigger", string(trigger)),
			slog.String("state", s.State().String()))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	s.cancelCurrent = cancel
	s.wg.Add(1)
	s.state.Store(int32(StateRunning))
	s.mu.Unlock()

	go s.runCycle(ctx, cancel, trigger)
	return true
}

// ForceCycle is the operator entry point: start a cycle immediately unless
// one is already running.
func (s *Scheduler) ForceCycle() bool {
	return s.Trigger(TriggerManual)
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastCycle returns the outcome of the most recently finished cycle, or nil
// when no cycle has finished yet.
func (s *Scheduler) LastCycle() *LastCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCycle == nil {
		return nil
	}
	last := *s.lastCycle
	return &last
}

// Stop halts the schedule, cancels any in-flight cycle and waits for it to
// finish or for ctx to expire. The in-flight cycle commits whatever it
// completed before the cancellation.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling)) {
		s.mu.Lock()
		cancel := s.cancelCurrent
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		slog.Info("waiting for in-flight cycle to finish")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) runCycle(ctx context.Context, cancel context.CancelFunc, trigger Trigger) {
	defer s.wg.Done()
	defer cancel()
	defer s.state.Store(int32(StateIdle))

	startedAt := time.Now()
	slog.Info("cycle starting", slog.String("trigger", string(trigger)))

	stats, err := s.runner.RunCycle(ctx)

	last := &LastCycle{
		Trigger:    trigger,
		Stats:      stats,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err != nil {
		last.Err = err.Error()
		slog.Error("cycle failed",
			slog.String("trigger", string(trigger)),
			slog.Any("error", err))
	}

	s.mu.Lock()
	s.lastCycle = last
	s.cancelCurrent = nil
	s.mu.Unlock()
}
