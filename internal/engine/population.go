// Population dynamics: logistic births damped by local crowding.
package engine

import (
	"math"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/entropy"
	"github.com/talgya/gridpop/internal/world"
)

// BirthProbability is the logistic term r(1 - n/k). It is zero or negative
// once n reaches k, and zero when k is not positive.
func BirthProbability(r float64, n, k int) float64 {
	if k <= 0 {
		return 0
	}
	return r * (1 - float64(n)/float64(k))
}

// LocalBirthProbability damps pBirth by exp(-alpha * nLocal).
func LocalBirthProbability(pBirth, alpha float64, nLocal int) float64 {
	return pBirth * math.Exp(-alpha*float64(nLocal))
}

// Capacity returns the carrying capacity used by the logistic term.
func (s *Stepper) Capacity() int {
	if s.Rules.CarryingCapacity > 0 {
		return s.Rules.CarryingCapacity
	}
	return s.Grid.CarryingCapacity()
}

// eligible applies the variant gates to an agent with nLocal neighbors.
func (r Rules) eligible(a agents.Agent, nLocal int) bool {
	if a.Trapped() {
		return false
	}
	if r.Sexual && nLocal == 0 {
		return false
	}
	if r.CrossingGate && !a.Crossed.Any() {
		return false
	}
	return true
}

// reproduce scans the post-move population once. Each agent spawns at most
// one offspring onto a free neighbor. Newborns occupy their cell at once, so
// later agents in the scan cannot claim it, but they are not counted as
// neighbors and join the population only after the scan.
func (s *Stepper) reproduce(pop []agents.Agent) []agents.Agent {
	n := len(pop)
	pBirth := BirthProbability(s.Rules.R, n, s.Capacity())
	if pBirth <= 0 {
		return pop
	}

	born := make(map[world.Coord]bool)
	isNewborn := func(c world.Coord) bool { return born[c] }
	var births []agents.Agent

	for i := range pop {
		if s.Rules.Ceiling > 0 && n+len(births) >= s.Rules.Ceiling {
			break
		}
		a := pop[i]
		nLocal := s.Grid.CountWithin(a.Pos, s.Rules.Radius, isNewborn)
		if !s.Rules.eligible(a, nLocal) {
			continue
		}
		if !entropy.Bernoulli(s.RNG, LocalBirthProbability(pBirth, s.Rules.Alpha, nLocal)) {
			continue
		}
		free := s.Grid.FreeNeighbors(a.Pos)
		if len(free) == 0 {
			continue
		}
		site := free[s.RNG.Intn(len(free))]
		s.Grid.Occupy(site)
		born[site] = true
		births = append(births, s.Spawner.Spawn(site, s.StepCount))
	}

	s.Last.Births = len(births)
	return append(pop, births...)
}
