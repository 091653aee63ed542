// Package runner drives an engine in real time: one Tick per ticker period,
// with dt fixed to the period, until the context is cancelled or a tick
// budget is used up.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sensor.sim/internal/engine"
	"github.com/banshee-data/sensor.sim/internal/monitoring"
	"github.com/banshee-data/sensor.sim/internal/telemetry"
	"github.com/banshee-data/sensor.sim/internal/timeutil"
)

// DefaultInterval is the simulation tick period.
const DefaultInterval = 100 * time.Millisecond

// maxLoggedSinkErrors caps how many sink failures are logged per run.
const maxLoggedSinkErrors = 5

// Sink receives each new telemetry entry. *serialout.Emitter satisfies it.
type Sink interface {
	Emit(telemetry.Entry) error
}

// Config controls a Runner.
type Config struct {
	Interval time.Duration // tick period, DefaultInterval when zero
	MaxTicks int           // stop after this many ticks; 0 runs until cancelled
	Sink     Sink          // optional
	// OnTick is called after every tick with the tick count and the
	// measured temperature.
	OnTick func(n int, measured float64)
}

// Runner is a fixed-rate tick loop.
type Runner struct {
	engine *engine.Engine
	clock  timeutil.Clock
	cfg    Config

	startOnce  sync.Once
	started    chan struct{}
	ticks      atomic.Int64
	sinkErrors atomic.Int64
}

// New creates a runner for e. A nil clock uses the real clock.
func New(e *engine.Engine, clock timeutil.Clock, cfg Config) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Runner{
		engine:  e,
		clock:   clock,
		cfg:     cfg,
		started: make(chan struct{}),
	}
}

// Started is closed once the ticker is running.
func (r *Runner) Started() <-chan struct{} { return r.started }

// Ticks returns the number of ticks run so far.
func (r *Runner) Ticks() int { return int(r.ticks.Load()) }

// SinkErrors returns the number of failed sink writes.
func (r *Runner) SinkErrors() int { return int(r.sinkErrors.Load()) }

// Run ticks until ctx is done or MaxTicks is reached. It returns nil when
// the tick budget is used up and ctx.Err() on cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return errors.New("runner: nil engine")
	}

	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	r.startOnce.Do(func() { close(r.started) })

	dt := r.cfg.Interval.Seconds()
	monitoring.Logf("runner started: interval=%s max_ticks=%d", r.cfg.Interval, r.cfg.MaxTicks)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("runner stopped after %d ticks: %v", r.Ticks(), ctx.Err())
			return ctx.Err()

		case <-ticker.C():
			measured := r.engine.Tick(dt)
			n := int(r.ticks.Add(1))
			r.emit()
			if r.cfg.OnTick != nil {
				r.cfg.OnTick(n, measured)
			}
			if r.cfg.MaxTicks > 0 && n >= r.cfg.MaxTicks {
				monitoring.Logf("runner finished after %d ticks", n)
				return nil
			}
		}
	}
}

func (r *Runner) emit() {
	if r.cfg.Sink == nil || !r.engine.Simulating() {
		return
	}
	entry, ok := r.engine.LatestTelemetry()
	if !ok {
		return
	}
	if err := r.cfg.Sink.Emit(entry); err != nil {
		if n := r.sinkErrors.Add(1); n <= maxLoggedSinkErrors {
			monitoring.Logf("sink write failed (%d): %v", n, err)
		}
	}
}
