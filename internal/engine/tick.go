// Package engine provides the pedestrian manager, its spatial index, and the
// fixed-interval tick loop that drives it.
package engine

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// Engine drives the simulation forward. Tick and speed may be read and
// changed from other goroutines while Run is active.
type Engine struct {
	Interval    time.Duration // Base tick interval
	ReportEvery uint64        // Ticks per OnReport call; 0 disables reports

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) TickReport // Every tick
	OnReport func(rep TickReport)         // Every ReportEvery ticks, counters summed over the window

	tick    atomic.Uint64 // monotonic, never resets
	speed   atomic.Uint64 // float64 bits; 1.0 = real-time, 0 = paused
	running atomic.Bool
	window  TickReport
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval:    time.Second / 33,
		ReportEvery: 330,
	}
	e.SetSpeed(1.0)
	return e
}

// Tick returns the number of ticks run so far.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier; 0 pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.speed.Store(math.Float64bits(speed))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick(), "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick())
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	tick := e.tick.Add(1)
	if e.OnTick == nil {
		return
	}
	rep := e.OnTick(tick)
	e.window.Merge(rep)

	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 {
		if e.OnReport != nil {
			e.OnReport(e.window)
		}
		e.window = TickReport{}
	}
}
