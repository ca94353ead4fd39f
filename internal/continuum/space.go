// Package continuum runs the population on a continuous toroidal plane
// [0,Domain)×[0,Domain) with circular holes agents cannot enter.
package continuum

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/world"
)

// Hole is a disk agents may not enter or be born into.
type Hole struct {
	Center world.Point `json:"center"`
	Radius float64     `json:"radius"`
}

// Contains reports whether p lies strictly inside the disk on a torus of
// the given side. A hole near an edge extends across it. domain <= 0
// measures plain distance.
func (h Hole) Contains(p world.Point, domain float64) bool {
	dx := torusDelta(p.X-h.Center.X, domain)
	dy := torusDelta(p.Y-h.Center.Y, domain)
	return dx*dx+dy*dy < h.Radius*h.Radius
}

// torusDelta returns the shortest absolute separation along one axis.
func torusDelta(d, domain float64) float64 {
	d = math.Abs(d)
	if domain <= 0 {
		return d
	}
	d = math.Mod(d, domain)
	return math.Min(d, domain-d)
}

// Config holds continuous-space parameters.
type Config struct {
	Domain float64 `json:"domain"`

	// Population size and cap come from the enclosing run configuration.
	InitialPopulation int `json:"-"`
	Ceiling           int `json:"-"` // Hard population cap (0 = none)

	// Holes are used as given. When empty, HoleCount holes of HoleRadius are
	// scattered uniformly at construction.
	Holes      []Hole  `json:"holes,omitempty"`
	HoleCount  int     `json:"hole_count"`
	HoleRadius float64 `json:"hole_radius"`

	StepSigma    float64 `json:"step_sigma"`    // Std dev of each movement component
	MateDistance float64 `json:"mate_distance"` // Pairs closer than this may reproduce
	BirthProb    float64 `json:"birth_prob"`    // Chance a qualifying pair reproduces
	BirthSpread  float64 `json:"birth_spread"`  // Offspring offset range around the parent
}

// DefaultConfig returns a small plane with two holes.
func DefaultConfig() Config {
	return Config{
		Domain:            100,
		InitialPopulation: 40,
		HoleCount:         2,
		HoleRadius:        12,
		StepSigma:         1.5,
		MateDistance:      2,
		BirthProb:         0.5,
		BirthSpread:       1,
		Ceiling:           1000,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Domain <= 0 {
		errs = append(errs, fmt.Errorf("domain must be positive, got %g", c.Domain))
	}
	if c.InitialPopulation < 0 {
		errs = append(errs, fmt.Errorf("initial population must be non-negative, got %d", c.InitialPopulation))
	}
	if c.HoleCount < 0 || c.HoleRadius < 0 {
		errs = append(errs, fmt.Errorf("hole count and radius must be non-negative"))
	}
	for i, h := range c.Holes {
		if h.Radius < 0 {
			errs = append(errs, fmt.Errorf("hole %d has negative radius", i))
		}
	}
	if c.StepSigma < 0 || c.MateDistance < 0 || c.BirthSpread < 0 {
		errs = append(errs, fmt.Errorf("step sigma, mate distance and birth spread must be non-negative"))
	}
	if c.BirthProb < 0 || c.BirthProb > 1 {
		errs = append(errs, fmt.Errorf("birth probability must be in [0,1], got %g", c.BirthProb))
	}
	if c.Ceiling < 0 {
		errs = append(errs, fmt.Errorf("ceiling must be non-negative, got %d", c.Ceiling))
	}
	return errors.Join(errs...)
}

// Agent is an individual on the plane.
type Agent struct {
	ID       agents.AgentID `json:"id"`
	Pos      world.Point    `json:"pos"`
	BornStep uint64         `json:"born_step"`
}

// placementAttempts bounds rejection sampling per agent.
const placementAttempts = 1000

// World is the continuous-space population state.
type World struct {
	Config Config
	Holes  []Hole
	Agents []Agent

	StepCount  uint64
	LastBirths int

	rng    *rand.Rand
	nextID agents.AgentID
}

// New builds the plane and places the initial population uniformly outside
// the holes. Fails with agents.ErrInsufficientSpace when rejection sampling
// cannot find room.
func New(cfg Config, rng *rand.Rand) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		Config: cfg,
		Holes:  append([]Hole(nil), cfg.Holes...),
		rng:    rng,
		nextID: 1,
	}
	if len(w.Holes) == 0 {
		for i := 0; i < cfg.HoleCount; i++ {
			w.Holes = append(w.Holes, Hole{
				Center: world.Point{X: rng.Float64() * cfg.Domain, Y: rng.Float64() * cfg.Domain},
				Radius: cfg.HoleRadius,
			})
		}
	}

	w.Agents = make([]Agent, 0, cfg.InitialPopulation)
	for i := 0; i < cfg.InitialPopulation; i++ {
		p, ok := w.randomOpenPoint()
		if !ok {
			return nil, fmt.Errorf("place agent %d of %d: %w", i+1, cfg.InitialPopulation, agents.ErrInsufficientSpace)
		}
		w.Agents = append(w.Agents, w.spawn(p))
	}
	return w, nil
}

func (w *World) randomOpenPoint() (world.Point, bool) {
	for i := 0; i < placementAttempts; i++ {
		p := world.Point{X: w.rng.Float64() * w.Config.Domain, Y: w.rng.Float64() * w.Config.Domain}
		if !w.InHole(p) {
			return p, true
		}
	}
	return world.Point{}, false
}

func (w *World) spawn(p world.Point) Agent {
	id := w.nextID
	w.nextID++
	return Agent{ID: id, Pos: p, BornStep: w.StepCount}
}

// InHole reports whether p is inside any hole.
func (w *World) InHole(p world.Point) bool {
	for _, h := range w.Holes {
		if h.Contains(p, w.Config.Domain) {
			return true
		}
	}
	return false
}

// Wrap maps p onto the torus.
func (w *World) Wrap(p world.Point) world.Point {
	return world.Point{X: wrap(p.X, w.Config.Domain), Y: wrap(p.Y, w.Config.Domain)}
}

func wrap(v, domain float64) float64 {
	v = math.Mod(v, domain)
	if v < 0 {
		v += domain
	}
	return v
}

// Distance is the plain Euclidean distance between two points.
func Distance(a, b world.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Step moves every agent once, then runs one reproduction scan.
func (w *World) Step() {
	w.StepCount++
	w.move()
	w.reproduce()
}

// move proposes a Gaussian offset for each agent in a fresh random order.
// Proposals landing in a hole are rejected and the agent stays.
func (w *World) move() {
	for _, i := range w.rng.Perm(len(w.Agents)) {
		a := &w.Agents[i]
		next := w.Wrap(world.Point{
			X: a.Pos.X + w.rng.NormFloat64()*w.Config.StepSigma,
			Y: a.Pos.Y + w.rng.NormFloat64()*w.Config.StepSigma,
		})
		if w.InHole(next) {
			continue
		}
		a.Pos = next
	}
}

// reproduce pairs agents closer than MateDistance. Each agent joins at most
// one pair per step; offspring are appended after the scan.
func (w *World) reproduce() {
	n := len(w.Agents)
	paired := make([]bool, n)
	var births []Agent

	for i := 0; i < n; i++ {
		if paired[i] {
			continue
		}
		for j := i + 1; j < n; j++ {
			if paired[j] {
				continue
			}
			if Distance(w.Agents[i].Pos, w.Agents[j].Pos) >= w.Config.MateDistance {
				continue
			}
			paired[i], paired[j] = true, true

			if w.Config.Ceiling > 0 && n+len(births) >= w.Config.Ceiling {
				break
			}
			if w.rng.Float64() >= w.Config.BirthProb {
				break
			}
			parent := w.Agents[i]
			if w.rng.Intn(2) == 1 {
				parent = w.Agents[j]
			}
			spread := w.Config.BirthSpread
			child := w.Wrap(world.Point{
				X: parent.Pos.X + (w.rng.Float64()*2-1)*spread,
				Y: parent.Pos.Y + (w.rng.Float64()*2-1)*spread,
			})
			if !w.InHole(child) {
				births = append(births, w.spawn(child))
			}
			break
		}
	}

	w.LastBirths = len(births)
	w.Agents = append(w.Agents, births...)
}

// Population returns the current agent count.
func (w *World) Population() int {
	return len(w.Agents)
}

// Births returns the number of offspring produced by the last step.
func (w *World) Births() int {
	return w.LastBirths
}

// Capacity returns the population ceiling, or 0 when births are uncapped.
func (w *World) Capacity() int {
	return w.Config.Ceiling
}

// Positions returns agent positions in population order.
func (w *World) Positions() []world.Point {
	out := make([]world.Point, len(w.Agents))
	for i, a := range w.Agents {
		out[i] = a.Pos
	}
	return out
}
