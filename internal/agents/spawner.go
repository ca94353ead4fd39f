// Agent spawning: initial placement on free cells and newborn creation.
package agents

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/talgya/gridpop/internal/world"
)

// ErrInsufficientSpace is returned when the requested population does not
// fit on the free, unblocked cells of the grid.
var ErrInsufficientSpace = errors.New("insufficient free cells")

// Spawner creates agents for the simulation. It draws from the run's shared
// generator and issues sequential IDs.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{
		rng:    rng,
		nextID: 1,
	}
}

// Place puts n agents on distinct, uniformly chosen free cells and marks
// them occupied. Nothing is marked if n exceeds the free cell count.
func (s *Spawner) Place(g *world.Grid, n int) ([]Agent, error) {
	if n < 0 {
		return nil, fmt.Errorf("initial population must be non-negative, got %d", n)
	}
	free := g.FreeCells()
	if n > len(free) {
		return nil, fmt.Errorf("place %d agents on %d free cells: %w", n, len(free), ErrInsufficientSpace)
	}

	// Partial Fisher-Yates: the first n entries become the chosen cells.
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(free)-i)
		free[i], free[j] = free[j], free[i]
	}

	pop := make([]Agent, 0, n)
	for _, c := range free[:n] {
		g.Occupy(c)
		pop = append(pop, s.Spawn(c, 0))
	}
	return pop, nil
}

// PlaceAt puts agents on the given cells. Every cell must be free and
// distinct; nothing is marked otherwise.
func (s *Spawner) PlaceAt(g *world.Grid, cells []world.Coord) ([]Agent, error) {
	seen := make(map[world.Coord]bool, len(cells))
	for _, c := range cells {
		if !g.Free(c) || seen[c] {
			return nil, fmt.Errorf("place agent at %s: %w", c, ErrInsufficientSpace)
		}
		seen[c] = true
	}

	pop := make([]Agent, 0, len(cells))
	for _, c := range cells {
		g.Occupy(c)
		pop = append(pop, s.Spawn(c, 0))
	}
	return pop, nil
}

// Spawn returns a fresh agent at pos: no crossings, not trapped. The grid
// is not touched.
func (s *Spawner) Spawn(pos world.Coord, step uint64) Agent {
	id := s.nextID
	s.nextID++
	return Agent{
		ID:       id,
		Pos:      pos,
		BornStep: step,
	}
}
