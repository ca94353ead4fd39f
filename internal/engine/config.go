package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/gridpop/internal/continuum"
	"github.com/talgya/gridpop/internal/world"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Model variants.
const (
	VariantLattice   = "lattice"   // Per-agent free-neighbor movement with logistic births
	VariantAutomaton = "automaton" // One random direction per agent, seam-triggered births
	VariantContinuum = "continuum" // Continuous torus with circular holes
)

// Mating modes.
const (
	MatingAsexual = "asexual"
	MatingSexual  = "sexual"
)

// Obstacle kinds.
const (
	ObstaclesNone  = "none"
	ObstaclesRect  = "rect"
	ObstaclesNoise = "noise"
	ObstaclesWall  = "wall"
	ObstaclesMaze  = "maze" // Wall with gaps plus scattered blocks
)

// ObstacleConfig describes the blocked set generated before a run.
type ObstacleConfig struct {
	Kind   string `json:"kind"`
	Count  int    `json:"count,omitempty"`
	Size   int    `json:"size,omitempty"`
	MinGap int    `json:"min_gap,omitempty"`

	Threshold float64 `json:"threshold,omitempty"`
	Frequency float64 `json:"frequency,omitempty"`

	WallColumn int `json:"wall_column,omitempty"`
	WallGaps   int `json:"wall_gaps,omitempty"`
}

// DefaultObstacles returns workable settings for kind on a grid of the
// given side, so selecting a kind alone yields a valid configuration.
func DefaultObstacles(kind string, side int) ObstacleConfig {
	o := ObstacleConfig{Kind: kind}
	switch kind {
	case ObstaclesRect, ObstaclesMaze:
		o.Count = 6
		o.Size = max(1, side/10)
		o.MinGap = 2
	}
	switch kind {
	case ObstaclesNoise:
		nc := world.DefaultNoiseConfig()
		o.Threshold = nc.Threshold
		o.Frequency = nc.Frequency
	case ObstaclesWall, ObstaclesMaze:
		o.WallColumn = side/2 + 1
		o.WallGaps = max(1, side/10)
	}
	return o
}

// Config holds every scalar parameter of a run.
type Config struct {
	Variant           string `json:"variant"`
	Side              int    `json:"side"`
	InitialPopulation int    `json:"initial_population"`
	Steps             int    `json:"steps"`
	Seed              int64  `json:"seed"` // 0 = draw one at startup

	// Logistic birth parameters.
	R                float64 `json:"r"`
	Radius           int     `json:"radius"`
	Alpha            float64 `json:"alpha"`
	CarryingCapacity int     `json:"carrying_capacity,omitempty"` // 0 = free cells of the grid

	Mating       string `json:"mating"`
	CrossingGate bool   `json:"crossing_gate,omitempty"`
	TrapWait     int    `json:"trap_wait,omitempty"` // 0 disables trapping
	Ceiling      int    `json:"ceiling,omitempty"`   // 0 = no hard cap

	Obstacles ObstacleConfig `json:"obstacles"`

	// Automaton seam: a move between index and index+1 along SeamAxis.
	Seam     int    `json:"seam,omitempty"`
	SeamAxis string `json:"seam_axis,omitempty"` // "x" or "y"

	// Continuous-space parameters. Its population size and ceiling are
	// taken from InitialPopulation and Ceiling above.
	Continuum continuum.Config `json:"continuum"`

	SnapshotEvery int `json:"snapshot_every"` // 0 disables snapshots
	ReportEvery   int `json:"report_every"`   // 0 disables progress logs
}

// DefaultConfig returns the asexual lattice run used by most presets.
func DefaultConfig() Config {
	return Config{
		Variant:           VariantLattice,
		Side:              50,
		InitialPopulation: 20,
		Steps:             200,
		Seed:              42,
		R:                 0.3,
		Radius:            2,
		Alpha:             0.1,
		Mating:            MatingAsexual,
		Obstacles:         ObstacleConfig{Kind: ObstaclesNone},
		SeamAxis:          "x",
		Continuum:         continuum.DefaultConfig(),
		SnapshotEvery:     1,
		ReportEvery:       50,
	}
}

// ContinuumConfig returns the continuous-space parameters with the run's
// population size and ceiling applied.
func (c Config) ContinuumConfig() continuum.Config {
	cc := c.Continuum
	cc.InitialPopulation = c.InitialPopulation
	cc.Ceiling = c.Ceiling
	return cc
}

// Rules extracts the stepper rule set.
func (c Config) Rules() Rules {
	return Rules{
		R:                c.R,
		Radius:           c.Radius,
		Alpha:            c.Alpha,
		CarryingCapacity: c.CarryingCapacity,
		Sexual:           c.Mating == MatingSexual,
		CrossingGate:     c.CrossingGate,
		TrapWait:         c.TrapWait,
		Ceiling:          c.Ceiling,
	}
}

// Validate checks every field before any step runs.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Variant {
	case VariantLattice, VariantAutomaton:
	case VariantContinuum:
		if err := c.ContinuumConfig().Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		add("unknown variant %q", c.Variant)
	}
	if c.Steps < 0 {
		add("steps must be non-negative, got %d", c.Steps)
	}
	if c.SnapshotEvery < 0 || c.ReportEvery < 0 {
		add("snapshot and report intervals must be non-negative")
	}

	if c.Variant != VariantContinuum {
		if c.Side <= 0 {
			add("side must be positive, got %d", c.Side)
		}
		if c.InitialPopulation < 0 {
			add("initial population must be non-negative, got %d", c.InitialPopulation)
		}
		if c.R < 0 || c.Alpha < 0 || c.Radius < 0 {
			add("r, alpha and radius must be non-negative")
		}
		if c.CarryingCapacity < 0 || c.Ceiling < 0 || c.TrapWait < 0 {
			add("carrying capacity, ceiling and trap wait must be non-negative")
		}
		switch c.Mating {
		case MatingAsexual, MatingSexual:
		default:
			add("unknown mating mode %q", c.Mating)
		}
		if c.Variant == VariantAutomaton {
			if c.SeamAxis != "x" && c.SeamAxis != "y" {
				add("seam axis must be x or y, got %q", c.SeamAxis)
			}
			if c.Seam < 1 || c.Seam >= c.Side {
				add("seam %d must lie in 1..%d", c.Seam, c.Side-1)
			}
		}
		errs = append(errs, c.Obstacles.validate(c.Side))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (o ObstacleConfig) validate(side int) error {
	switch o.Kind {
	case "", ObstaclesNone:
		return nil
	case ObstaclesRect:
		return o.validateRect(side)
	case ObstaclesNoise:
		if o.Frequency <= 0 {
			return fmt.Errorf("noise obstacles need a positive frequency")
		}
		return nil
	case ObstaclesWall:
		return o.validateWall(side)
	case ObstaclesMaze:
		return errors.Join(o.validateWall(side), o.validateRect(side))
	default:
		return fmt.Errorf("unknown obstacle kind %q", o.Kind)
	}
}

func (o ObstacleConfig) validateRect(side int) error {
	if o.Count < 0 || o.Size <= 0 || o.Size > side || o.MinGap < 0 {
		return fmt.Errorf("rect obstacles need count >= 0 and 1 <= size <= %d", side)
	}
	return nil
}

func (o ObstacleConfig) validateWall(side int) error {
	if o.WallColumn < 1 || o.WallColumn > side || o.WallGaps < 0 || o.WallGaps > side {
		return fmt.Errorf("wall obstacles need column in 1..%d and gaps in 0..%d", side, side)
	}
	return nil
}
