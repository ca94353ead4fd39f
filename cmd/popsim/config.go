package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/gridpop/internal/engine"
)

// runFlags holds the values of the run subcommand's flags. Only flags the
// user actually set are applied on top of the preset and config file.
type runFlags struct {
	preset     string
	configPath string

	variant       string
	side          int
	population    int
	steps         int
	seed          int64
	r             float64
	radius        int
	alpha         float64
	capacity      int
	mating        string
	crossing      bool
	trapWait      int
	ceiling       int
	snapshotEvery int
	reportEvery   int

	obstacles      string
	obstacleCount  int
	obstacleSize   int
	minGap         int
	noiseThreshold float64
	noiseFreq      float64
	wallColumn     int
	wallGaps       int

	interval time.Duration
	dbPath   string
	noSave   bool
	serve    bool
	port     int
}

func newRunFlagSet() (*flag.FlagSet, *runFlags) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)

	fs.StringVar(&f.preset, "preset", "asexual", "starting preset (see `popsim presets`)")
	fs.StringVar(&f.configPath, "config", "", "JSON config file overlaid on the preset")

	fs.StringVar(&f.variant, "variant", "", "model variant: lattice, automaton, continuum")
	fs.IntVar(&f.side, "side", 0, "grid side length")
	fs.IntVar(&f.population, "n", 0, "initial population")
	fs.IntVar(&f.steps, "steps", 0, "number of steps")
	fs.Int64Var(&f.seed, "seed", 0, "random seed (0 = random)")
	fs.Float64Var(&f.r, "r", 0, "intrinsic birth rate")
	fs.IntVar(&f.radius, "radius", 0, "crowding radius")
	fs.Float64Var(&f.alpha, "alpha", 0, "crowding decay")
	fs.IntVar(&f.capacity, "k", 0, "carrying capacity (0 = free cells)")
	fs.StringVar(&f.mating, "mating", "", "asexual or sexual")
	fs.BoolVar(&f.crossing, "crossing-gate", false, "only agents that crossed the midline reproduce")
	fs.IntVar(&f.trapWait, "trap-wait", 0, "steps an agent waits when touching an obstacle (0 = off)")
	fs.IntVar(&f.ceiling, "ceiling", 0, "hard population cap (0 = none)")
	fs.StringVar(&f.obstacles, "obstacles", "", "obstacle kind: none, rect, noise, wall, maze")
	fs.IntVar(&f.obstacleCount, "obstacle-count", 0, "number of square obstacle blocks (rect, maze)")
	fs.IntVar(&f.obstacleSize, "obstacle-size", 0, "edge length of each block in cells (rect, maze)")
	fs.IntVar(&f.minGap, "min-gap", 0, "extra cells kept between blocks (rect, maze)")
	fs.Float64Var(&f.noiseThreshold, "noise-threshold", 0, "noise value above which a cell is blocked (noise)")
	fs.Float64Var(&f.noiseFreq, "noise-freq", 0, "base noise frequency per cell (noise)")
	fs.IntVar(&f.wallColumn, "wall-column", 0, "column of the wall (wall, maze)")
	fs.IntVar(&f.wallGaps, "wall-gaps", 0, "open rows in the wall (wall, maze)")
	fs.IntVar(&f.snapshotEvery, "snapshot-every", 0, "steps between position snapshots")
	fs.IntVar(&f.reportEvery, "report-every", 0, "steps between progress logs")

	fs.DurationVar(&f.interval, "interval", 0, "pause between steps")
	fs.StringVar(&f.dbPath, "db", envOrDefault("POPSIM_DB", "data/gridpop.db"), "sqlite database path")
	fs.BoolVar(&f.noSave, "no-save", false, "skip saving the run")
	fs.BoolVar(&f.serve, "serve", false, "serve the live run over HTTP while it steps")
	fs.IntVar(&f.port, "port", envIntOrDefault("POPSIM_PORT", 8080), "HTTP port for -serve")

	return fs, f
}

// buildConfig resolves preset, then config file, then explicitly set flags.
func buildConfig(fs *flag.FlagSet, f *runFlags) (engine.Config, error) {
	cfg, err := engine.LookupPreset(f.preset)
	if err != nil {
		return engine.Config{}, err
	}

	if f.configPath != "" {
		data, err := os.ReadFile(f.configPath)
		if err != nil {
			return engine.Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return engine.Config{}, fmt.Errorf("parse config %s: %w", f.configPath, err)
		}
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["variant"] {
		cfg.Variant = f.variant
	}
	if set["side"] {
		cfg.Side = f.side
	}
	if set["n"] {
		cfg.InitialPopulation = f.population
	}
	if set["steps"] {
		cfg.Steps = f.steps
	}
	if set["seed"] {
		cfg.Seed = f.seed
	}
	if set["r"] {
		cfg.R = f.r
	}
	if set["radius"] {
		cfg.Radius = f.radius
	}
	if set["alpha"] {
		cfg.Alpha = f.alpha
	}
	if set["k"] {
		cfg.CarryingCapacity = f.capacity
	}
	if set["mating"] {
		cfg.Mating = f.mating
	}
	if set["crossing-gate"] {
		cfg.CrossingGate = f.crossing
	}
	if set["trap-wait"] {
		cfg.TrapWait = f.trapWait
	}
	if set["ceiling"] {
		cfg.Ceiling = f.ceiling
	}
	if set["snapshot-every"] {
		cfg.SnapshotEvery = f.snapshotEvery
	}
	if set["report-every"] {
		cfg.ReportEvery = f.reportEvery
	}

	// A new kind starts from its defaults for the final side; the
	// individual obstacle flags then refine it.
	if set["obstacles"] && f.obstacles != cfg.Obstacles.Kind {
		cfg.Obstacles = engine.DefaultObstacles(f.obstacles, cfg.Side)
	}
	if set["obstacle-count"] {
		cfg.Obstacles.Count = f.obstacleCount
	}
	if set["obstacle-size"] {
		cfg.Obstacles.Size = f.obstacleSize
	}
	if set["min-gap"] {
		cfg.Obstacles.MinGap = f.minGap
	}
	if set["noise-threshold"] {
		cfg.Obstacles.Threshold = f.noiseThreshold
	}
	if set["noise-freq"] {
		cfg.Obstacles.Frequency = f.noiseFreq
	}
	if set["wall-column"] {
		cfg.Obstacles.WallColumn = f.wallColumn
	}
	if set["wall-gaps"] {
		cfg.Obstacles.WallGaps = f.wallGaps
	}

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
