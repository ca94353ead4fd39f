package engine

import (
	"fmt"
	"sort"
)

// Preset is a named starting configuration for one of the model variants.
type Preset struct {
	Name        string
	Description string
	Config      func() Config
}

var presets = map[string]Preset{
	"asexual": {
		Name:        "asexual",
		Description: "open lattice, asexual logistic births with crowding",
		Config:      DefaultConfig,
	},
	"sexual": {
		Name:        "sexual",
		Description: "open lattice, births need a mate within the radius",
		Config: func() Config {
			c := DefaultConfig()
			c.Mating = MatingSexual
			return c
		},
	},
	"obstacles": {
		Name:        "obstacles",
		Description: "square obstacle blocks reduce carrying capacity",
		Config: func() Config {
			c := DefaultConfig()
			c.Obstacles = ObstacleConfig{Kind: ObstaclesRect, Count: 6, Size: 5, MinGap: 2}
			return c
		},
	},
	"terrain": {
		Name:        "terrain",
		Description: "simplex-noise obstacles, sexual births",
		Config: func() Config {
			c := DefaultConfig()
			c.Mating = MatingSexual
			c.Obstacles = ObstacleConfig{Kind: ObstaclesNoise, Threshold: 0.62, Frequency: 0.12}
			return c
		},
	},
	"maze": {
		Name:        "maze",
		Description: "a gapped wall plus square blocks, crossing-gated births",
		Config: func() Config {
			c := DefaultConfig()
			c.CrossingGate = true
			c.Obstacles = DefaultObstacles(ObstaclesMaze, c.Side)
			return c
		},
	},
	"trap": {
		Name:        "trap",
		Description: "agents next to an obstacle are held for trap_wait steps",
		Config: func() Config {
			c := DefaultConfig()
			c.TrapWait = 5
			c.Obstacles = ObstacleConfig{Kind: ObstaclesRect, Count: 6, Size: 5, MinGap: 2}
			return c
		},
	},
	"crossing": {
		Name:        "crossing",
		Description: "births only after an agent has crossed a grid midline",
		Config: func() Config {
			c := DefaultConfig()
			c.CrossingGate = true
			return c
		},
	},
	"crossing-sexual": {
		Name:        "crossing-sexual",
		Description: "births need a midline crossing and a mate in range",
		Config: func() Config {
			c := DefaultConfig()
			c.CrossingGate = true
			c.Mating = MatingSexual
			return c
		},
	},
	"automaton": {
		Name:        "automaton",
		Description: "one random direction per agent, births on crossing a walled seam",
		Config: func() Config {
			c := DefaultConfig()
			c.Variant = VariantAutomaton
			c.Side = 10
			c.InitialPopulation = 10
			c.Seam = 5
			c.SeamAxis = "x"
			c.Ceiling = 60
			c.Obstacles = ObstacleConfig{Kind: ObstaclesWall, WallColumn: 6, WallGaps: 3}
			return c
		},
	},
	"continuous": {
		Name:        "continuous",
		Description: "continuous torus with circular holes, proximity births",
		Config: func() Config {
			c := DefaultConfig()
			c.Variant = VariantContinuum
			c.InitialPopulation = 40
			c.Ceiling = 1000
			return c
		},
	},
}

// LookupPreset returns the named preset's configuration.
func LookupPreset(name string) (Config, error) {
	p, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}
	return p.Config(), nil
}

// Presets lists all presets sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
