package engine

import (
	"fmt"
	"math/rand"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/continuum"
	"github.com/talgya/gridpop/internal/world"
)

// Model is one population variant that can be stepped and observed.
type Model interface {
	Step()
	Population() int
	Births() int
	Positions() []world.Point
	Capacity() int // Population the model tends toward or is capped at; 0 = unbounded
}

// Snapshot is the agent positions after a completed step.
type Snapshot struct {
	Step   uint64        `json:"step"`
	Points []world.Point `json:"points"`
}

// BuildBlocked generates the blocked set for cfg, drawing from rng.
func BuildBlocked(cfg Config, rng *rand.Rand) (world.BlockedSet, error) {
	o := cfg.Obstacles
	switch o.Kind {
	case "", ObstaclesNone:
		return world.BlockedSet{}, nil
	case ObstaclesRect:
		return world.Rectangles(cfg.Side, world.RectConfig{Count: o.Count, Size: o.Size, MinGap: o.MinGap}, rng)
	case ObstaclesNoise:
		nc := world.DefaultNoiseConfig()
		nc.Seed = rng.Int63()
		nc.Threshold = o.Threshold
		nc.Frequency = o.Frequency
		return world.Noise(cfg.Side, nc), nil
	case ObstaclesWall:
		return world.Wall(cfg.Side, o.WallColumn, o.WallGaps, rng)
	case ObstaclesMaze:
		wall, err := world.Wall(cfg.Side, o.WallColumn, o.WallGaps, rng)
		if err != nil {
			return nil, err
		}
		rects, err := world.Rectangles(cfg.Side, world.RectConfig{Count: o.Count, Size: o.Size, MinGap: o.MinGap}, rng)
		if err != nil {
			return nil, err
		}
		return world.Merge(wall, rects), nil
	default:
		return nil, fmt.Errorf("unknown obstacle kind %q", o.Kind)
	}
}

// Initialize builds the blocked set, the grid and the initial population
// for a lattice or automaton run. It fails before any step if the
// population does not fit.
func Initialize(cfg Config, rng *rand.Rand) (*Stepper, []agents.Agent, error) {
	blocked, err := BuildBlocked(cfg, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("build obstacles: %w", err)
	}
	g, err := world.NewGrid(cfg.Side, blocked)
	if err != nil {
		return nil, nil, fmt.Errorf("build grid: %w", err)
	}
	spawner := agents.NewSpawner(rng)
	pop, err := spawner.Place(g, cfg.InitialPopulation)
	if err != nil {
		return nil, nil, fmt.Errorf("initial placement: %w", err)
	}
	return NewStepper(g, cfg.Rules(), rng, spawner), pop, nil
}

// Build validates cfg and constructs the model for its variant.
func Build(cfg Config, rng *rand.Rand) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Variant {
	case VariantContinuum:
		w, err := continuum.New(cfg.ContinuumConfig(), rng)
		if err != nil {
			return nil, fmt.Errorf("build continuum: %w", err)
		}
		return w, nil
	case VariantAutomaton:
		st, pop, err := Initialize(cfg, rng)
		if err != nil {
			return nil, err
		}
		return &Automaton{
			Grid:     st.Grid,
			RNG:      rng,
			Spawner:  st.Spawner,
			Agents:   pop,
			Seam:     cfg.Seam,
			SeamAxis: cfg.SeamAxis,
			Ceiling:  cfg.Ceiling,
		}, nil
	default:
		st, pop, err := Initialize(cfg, rng)
		if err != nil {
			return nil, err
		}
		return &Lattice{Stepper: st, Agents: pop}, nil
	}
}
