package engine

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/continuum"
)

func TestPresetsAreValid(t *testing.T) {
	for _, p := range Presets() {
		t.Run(p.Name, func(t *testing.T) {
			cfg, err := LookupPreset(p.Name)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("preset %s invalid: %v", p.Name, err)
			}
			if _, err := Build(cfg, rand.New(rand.NewSource(1))); err != nil {
				t.Fatalf("build %s: %v", p.Name, err)
			}
		})
	}
	if _, err := LookupPreset("nope"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"variant":   func(c *Config) { c.Variant = "hex" },
		"side":      func(c *Config) { c.Side = 0 },
		"mating":    func(c *Config) { c.Mating = "both" },
		"negative":  func(c *Config) { c.Alpha = -1 },
		"steps":     func(c *Config) { c.Steps = -3 },
		"obstacles": func(c *Config) { c.Obstacles = ObstacleConfig{Kind: ObstaclesRect, Count: 2, Size: 0} },
		"kind":      func(c *Config) { c.Obstacles.Kind = "lava" },
		"seam": func(c *Config) {
			c.Variant = VariantAutomaton
			c.Seam = c.Side
		},
		"continuum": func(c *Config) {
			c.Variant = VariantContinuum
			c.Continuum.Domain = -1
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestInitializeFailsWhenPopulationDoesNotFit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Side = 4
	cfg.InitialPopulation = 13
	cfg.Obstacles = ObstacleConfig{Kind: ObstaclesRect, Count: 1, Size: 2}

	_, err := Build(cfg, rand.New(rand.NewSource(1)))
	if !errors.Is(err, agents.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
}

func TestRulesFromConfig(t *testing.T) {
	cfg, err := LookupPreset("crossing-sexual")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	r := cfg.Rules()
	if !r.Sexual || !r.CrossingGate || r.TrapWait != 0 {
		t.Fatalf("unexpected rules %+v", r)
	}
}

func TestContinuumUsesRunPopulationAndCeiling(t *testing.T) {
	cfg, err := LookupPreset("continuous")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	file := `{"initial_population": 7, "ceiling": 9, "continuum": {"domain": 50}}`
	if err := json.Unmarshal([]byte(file), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}

	m, err := Build(cfg, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w, ok := m.(*continuum.World)
	if !ok {
		t.Fatalf("expected continuum world, got %T", m)
	}
	if w.Population() != 7 || w.Config.Ceiling != 9 || w.Config.Domain != 50 {
		t.Fatalf("unexpected continuum config %+v with %d agents", w.Config, w.Population())
	}
	if w.Config.StepSigma != continuum.DefaultConfig().StepSigma {
		t.Fatalf("unset continuum fields should keep preset values, got sigma %g", w.Config.StepSigma)
	}

	cfg.InitialPopulation = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected negative population rejected for continuum, got %v", err)
	}
}

func TestDefaultObstaclesAreValid(t *testing.T) {
	for _, kind := range []string{ObstaclesNone, ObstaclesRect, ObstaclesNoise, ObstaclesWall, ObstaclesMaze} {
		for _, side := range []int{3, 20, 50} {
			cfg := DefaultConfig()
			cfg.Side = side
			cfg.InitialPopulation = 1
			cfg.Obstacles = DefaultObstacles(kind, side)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("%s on side %d: %v", kind, side, err)
			}
			if _, err := BuildBlocked(cfg, rand.New(rand.NewSource(4))); err != nil {
				t.Fatalf("%s on side %d: build: %v", kind, side, err)
			}
		}
	}
}

func TestMazeMergesWallAndBlocks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Obstacles = ObstacleConfig{Kind: ObstaclesMaze, Count: 3, Size: 4, MinGap: 2, WallColumn: 10, WallGaps: 5}
	blocked, err := BuildBlocked(cfg, rand.New(rand.NewSource(6)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wallCells, other := 0, 0
	for c := range blocked {
		if c.X == 10 {
			wallCells++
		} else {
			other++
		}
	}
	if wallCells < cfg.Side-cfg.Obstacles.WallGaps {
		t.Fatalf("expected at least %d wall cells, got %d", cfg.Side-cfg.Obstacles.WallGaps, wallCells)
	}
	if other == 0 {
		t.Fatal("expected square blocks off the wall column")
	}
}
