package engine

import (
	"math/rand"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/world"
)

// Rules selects which movement and gating rules a Stepper applies.
type Rules struct {
	R                float64 // Intrinsic growth rate
	Radius           int     // Manhattan radius for crowding and mate search
	Alpha            float64 // Crowding strength
	CarryingCapacity int     // 0 = grid carrying capacity

	Sexual       bool // Require another agent within Radius
	CrossingGate bool // Require at least one midline crossing
	TrapWait     int  // Steps an agent is held next to an obstacle; 0 disables
	Ceiling      int  // Hard population cap; 0 = none
}

// StepStats summarizes the most recent step.
type StepStats struct {
	Moves   int `json:"moves"`
	Stuck   int `json:"stuck"`   // Agents with no free neighbor
	Trapped int `json:"trapped"` // Agents held by a trap this step
	Births  int `json:"births"`
}

// Stepper advances a lattice population. It owns the grid and the run's
// generator for the duration of a step; nothing else may touch them.
type Stepper struct {
	Grid    *world.Grid
	Rules   Rules
	RNG     *rand.Rand
	Spawner *agents.Spawner

	StepCount uint64
	Last      StepStats
}

// NewStepper creates a stepper over g. Agents already on g must have been
// issued by spawner.
func NewStepper(g *world.Grid, rules Rules, rng *rand.Rand, spawner *agents.Spawner) *Stepper {
	return &Stepper{
		Grid:    g,
		Rules:   rules,
		RNG:     rng,
		Spawner: spawner,
	}
}

// Step advances pop by exactly one step: a full movement scan, then a full
// reproduction scan. The returned slice holds the survivors (everyone)
// followed by this step's newborns.
func (s *Stepper) Step(pop []agents.Agent) []agents.Agent {
	s.StepCount++
	s.Last = StepStats{}
	s.move(pop)
	return s.reproduce(pop)
}

// move visits agents in a fresh uniform order so that contested cells go
// to whoever is drawn first.
func (s *Stepper) move(pop []agents.Agent) {
	mid := s.Grid.Side / 2
	for _, i := range s.RNG.Perm(len(pop)) {
		a := &pop[i]

		if s.Rules.TrapWait > 0 {
			if a.TrapTimer > 0 {
				a.TrapTimer--
				a.WasTrapped = true
				s.Last.Trapped++
				continue
			}
			if !a.WasTrapped && s.Grid.AdjacentToBlocked(a.Pos) {
				a.TrapTimer = s.Rules.TrapWait - 1
				a.WasTrapped = true
				s.Last.Trapped++
				continue
			}
			a.WasTrapped = false
		}

		free := s.Grid.FreeNeighbors(a.Pos)
		if len(free) == 0 {
			s.Last.Stuck++
			continue
		}
		next := free[s.RNG.Intn(len(free))]
		s.Grid.Move(a.Pos, next)
		a.Crossed.Record(a.Pos, next, mid)
		a.Pos = next
		s.Last.Moves++
	}
}

// Lattice pairs a Stepper with its population and satisfies Model.
type Lattice struct {
	*Stepper
	Agents []agents.Agent
}

// Step advances the population one step.
func (l *Lattice) Step() {
	l.Agents = l.Stepper.Step(l.Agents)
}

// Population returns the current agent count.
func (l *Lattice) Population() int {
	return len(l.Agents)
}

// Births returns the offspring count of the last step.
func (l *Lattice) Births() int {
	return l.Last.Births
}

// Positions returns agent cells in population order.
func (l *Lattice) Positions() []world.Point {
	return cellPoints(l.Agents)
}

func cellPoints(pop []agents.Agent) []world.Point {
	out := make([]world.Point, len(pop))
	for i, a := range pop {
		out[i] = a.Pos.Point()
	}
	return out
}
