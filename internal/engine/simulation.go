// Simulation ties a model to the run's recorded outputs.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/gridpop/internal/entropy"
)

// Simulation holds a model plus its population history and snapshots.
// Step-side mutation happens under mu so the API can read concurrently.
type Simulation struct {
	Config Config
	Seed   int64 // Resolved seed; replaying with it reproduces the run

	mu        sync.RWMutex
	model     Model
	history   []int
	snapshots []Snapshot
	lastStep  uint64
	stats     SimStats
}

// SimStats tracks aggregate run statistics.
type SimStats struct {
	Step        uint64 `json:"step"`
	Population  int    `json:"population"`
	Births      int    `json:"births"`       // In the last step
	TotalBirths int    `json:"total_births"` // Since step 0
	Peak        int    `json:"peak"`
}

// NewSimulation resolves the seed, builds the model and records step 0.
func NewSimulation(cfg Config) (*Simulation, error) {
	seed := entropy.ResolveSeed(cfg.Seed)
	cfg.Seed = seed
	return NewSimulationWithRand(cfg, entropy.New(seed))
}

// NewSimulationWithRand builds the model from an existing generator.
func NewSimulationWithRand(cfg Config, rng *rand.Rand) (*Simulation, error) {
	model, err := Build(cfg, rng)
	if err != nil {
		return nil, err
	}
	s := &Simulation{
		Config: cfg,
		Seed:   cfg.Seed,
		model:  model,
	}
	s.record(0)
	slog.Info("simulation initialized",
		"variant", cfg.Variant,
		"seed", s.Seed,
		"population", model.Population(),
	)
	return s, nil
}

// Advance runs one model step and records its outputs.
func (s *Simulation) Advance(step uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model.Step()
	s.lastStep = step
	s.stats.TotalBirths += s.model.Births()
	s.record(step)
}

// record appends history and, on schedule, a snapshot. Caller holds mu or
// has exclusive access.
func (s *Simulation) record(step uint64) {
	pop := s.model.Population()
	s.history = append(s.history, pop)

	every := uint64(s.Config.SnapshotEvery)
	if every > 0 && step%every == 0 {
		s.snapshots = append(s.snapshots, Snapshot{Step: step, Points: s.model.Positions()})
	}

	s.stats.Step = step
	s.stats.Population = pop
	s.stats.Births = s.model.Births()
	if pop > s.stats.Peak {
		s.stats.Peak = pop
	}
}

// CurrentStep returns the most recently completed step.
func (s *Simulation) CurrentStep() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStep
}

// Stats returns a copy of the aggregate statistics.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// History returns a copy of the population count per step, starting at step 0.
func (s *Simulation) History() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.history...)
}

// Capacity returns the model's carrying capacity or ceiling.
func (s *Simulation) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model.Capacity()
}

// Snapshots returns a copy of all recorded snapshots.
func (s *Simulation) Snapshots() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Snapshot(nil), s.snapshots...)
}

// SnapshotAt returns the snapshot recorded for step.
func (s *Simulation) SnapshotAt(step uint64) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snapshots {
		if snap.Step == step {
			return snap, true
		}
	}
	return Snapshot{}, false
}

// Latest returns the positions after the most recent step, recorded or not.
func (s *Simulation) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Step: s.lastStep, Points: s.model.Positions()}
}

// Report logs a progress line.
func (s *Simulation) Report(step uint64) {
	st := s.Stats()
	slog.Info("progress",
		"step", step,
		"population", st.Population,
		"births", st.Births,
		"total_births", st.TotalBirths,
		"peak", st.Peak,
	)
}

// String returns a one-line summary.
func (s *Simulation) String() string {
	st := s.Stats()
	return fmt.Sprintf("Simulation(variant=%s, seed=%d, step=%d, population=%d)",
		s.Config.Variant, s.Seed, st.Step, st.Population)
}
