package engine

import (
	"math/rand"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/world"
)

// Automaton is the seam variant: each agent tries a single random direction
// per step, and a move across the seam triggers an immediate birth attempt
// next to the agent's new cell.
type Automaton struct {
	Grid    *world.Grid
	RNG     *rand.Rand
	Spawner *agents.Spawner
	Agents  []agents.Agent

	Seam     int    // Crossing between Seam and Seam+1 triggers a birth
	SeamAxis string // "x" (column seam) or "y" (row seam)
	Ceiling  int    // Births stop at this population; 0 = none

	StepCount uint64
	Last      StepStats
}

// Step moves every agent once in a fresh random order.
func (m *Automaton) Step() {
	m.StepCount++
	m.Last = StepStats{}
	n := len(m.Agents)
	var births []agents.Agent

	for _, i := range m.RNG.Perm(n) {
		a := &m.Agents[i]
		dir := world.NeighborDirections[m.RNG.Intn(len(world.NeighborDirections))]
		next := a.Pos.Add(dir)
		if !m.Grid.Free(next) {
			m.Last.Stuck++
			continue
		}
		prev := a.Pos
		m.Grid.Move(prev, next)
		a.Pos = next
		m.Last.Moves++

		if !m.crossesSeam(prev, next) {
			continue
		}
		if m.Ceiling > 0 && n+len(births) >= m.Ceiling {
			continue
		}
		free := m.Grid.FreeNeighbors(next)
		if len(free) == 0 {
			continue
		}
		site := free[m.RNG.Intn(len(free))]
		m.Grid.Occupy(site)
		births = append(births, m.Spawner.Spawn(site, m.StepCount))
	}

	m.Last.Births = len(births)
	m.Agents = append(m.Agents, births...)
}

func (m *Automaton) crossesSeam(prev, next world.Coord) bool {
	a, b := prev.X, next.X
	if m.SeamAxis == "y" {
		a, b = prev.Y, next.Y
	}
	return (a <= m.Seam && b > m.Seam) || (a > m.Seam && b <= m.Seam)
}

// Population returns the current agent count.
func (m *Automaton) Population() int {
	return len(m.Agents)
}

// Births returns the offspring count of the last step.
func (m *Automaton) Births() int {
	return m.Last.Births
}

// Positions returns agent cells in population order.
func (m *Automaton) Positions() []world.Point {
	return cellPoints(m.Agents)
}

// Capacity is the ceiling when set, otherwise the free cells of the grid.
func (m *Automaton) Capacity() int {
	if m.Ceiling > 0 {
		return m.Ceiling
	}
	return m.Grid.CarryingCapacity()
}
