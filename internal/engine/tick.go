// Package engine provides the population stepper, its variants, and the
// step loop that drives a run.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Engine drives a simulation forward one step at a time.
type Engine struct {
	Tick     uint64        // Last completed step
	MaxTicks uint64        // Stop after this step; 0 = run until stopped
	Interval time.Duration // Pause between steps; 0 = as fast as possible

	ReportEvery uint64 // OnReport cadence in steps; 0 disables

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) // Every step
	OnReport func(tick uint64) // Every ReportEvery steps

	running atomic.Bool
}

// NewEngine creates an engine that stops after maxTicks steps.
func NewEngine(maxTicks uint64) *Engine {
	return &Engine{MaxTicks: maxTicks}
}

// Run steps until MaxTicks is reached, Stop is called, or ctx is done.
// Steps always run to completion; cancellation is checked between steps.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "max_ticks", e.MaxTicks)

	var ticker *time.Ticker
	if e.Interval > 0 {
		ticker = time.NewTicker(e.Interval)
		defer ticker.Stop()
	}

	for e.running.Load() {
		if e.MaxTicks > 0 && e.Tick >= e.MaxTicks {
			break
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				slog.Info("simulation engine cancelled", "tick", e.Tick)
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "tick", e.Tick)
			return err
		}

		e.step()
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return nil
}

// Stop halts the loop after the current step.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// step advances by one tick and fires callbacks.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
}

// Attach wires sim into the engine callbacks.
func (e *Engine) Attach(sim *Simulation) {
	e.OnTick = sim.Advance
	e.OnReport = sim.Report
	e.ReportEvery = uint64(sim.Config.ReportEvery)
}
