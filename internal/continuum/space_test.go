package continuum

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/gridpop/internal/agents"
	"github.com/talgya/gridpop/internal/world"
)

func TestNewPlacesAgentsOutsideHoles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Holes = []Hole{{Center: world.Point{X: 50, Y: 50}, Radius: 30}}
	w, err := New(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if w.Population() != cfg.InitialPopulation {
		t.Fatalf("expected %d agents, got %d", cfg.InitialPopulation, w.Population())
	}
	for _, a := range w.Agents {
		if w.InHole(a.Pos) {
			t.Fatalf("agent %d placed inside hole at %+v", a.ID, a.Pos)
		}
	}
}

func TestNewFailsWhenHolesCoverDomain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Holes = []Hole{{Center: world.Point{X: 50, Y: 50}, Radius: 1000}}
	_, err := New(cfg, rand.New(rand.NewSource(1)))
	if !errors.Is(err, agents.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
}

func TestValidateRejectsBadParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domain = 0
	cfg.BirthProb = 2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStepKeepsAgentsOnTorusAndOutOfHoles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepSigma = 20
	w, err := New(cfg, rand.New(rand.NewSource(4)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	prev := w.Population()
	for step := 0; step < 50; step++ {
		w.Step()
		if w.Population() < prev {
			t.Fatalf("population decreased at step %d", step)
		}
		prev = w.Population()
		for _, a := range w.Agents {
			if a.Pos.X < 0 || a.Pos.X >= cfg.Domain || a.Pos.Y < 0 || a.Pos.Y >= cfg.Domain {
				t.Fatalf("agent %d off the domain: %+v", a.ID, a.Pos)
			}
			if w.InHole(a.Pos) {
				t.Fatalf("agent %d inside hole: %+v", a.ID, a.Pos)
			}
		}
	}
}

func TestReproductionRespectsCeiling(t *testing.T) {
	cfg := Config{
		Domain:            10,
		InitialPopulation: 20,
		StepSigma:         0.1,
		MateDistance:      20,
		BirthProb:         1,
		BirthSpread:       0.5,
		Ceiling:           25,
	}
	w, err := New(cfg, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.Step()
	// Twenty agents form ten pairs, but only five births fit under the ceiling.
	if w.Population() != 25 || w.Births() != 5 {
		t.Fatalf("expected population 25 after 5 births, got %d (%d births)", w.Population(), w.Births())
	}
	for i := 0; i < 5; i++ {
		w.Step()
	}
	if w.Population() != 25 {
		t.Fatalf("ceiling exceeded: %d", w.Population())
	}
}

func TestNoBirthsWhenApart(t *testing.T) {
	cfg := Config{Domain: 100, InitialPopulation: 2, MateDistance: 1, BirthProb: 1}
	w, err := New(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.Agents[0].Pos = world.Point{X: 10, Y: 10}
	w.Agents[1].Pos = world.Point{X: 60, Y: 60}
	w.Step()
	if w.Population() != 2 {
		t.Fatalf("expected no births, got population %d", w.Population())
	}
}

func TestHoleExtendsAcrossEdges(t *testing.T) {
	w := &World{
		Config: Config{Domain: 100},
		Holes:  []Hole{{Center: world.Point{X: 1, Y: 99}, Radius: 5}},
	}
	tests := []struct {
		p    world.Point
		want bool
	}{
		{world.Point{X: 3, Y: 99}, true},
		{world.Point{X: 98, Y: 99}, true}, // across the left edge
		{world.Point{X: 1, Y: 2}, true},   // across the top edge
		{world.Point{X: 98, Y: 1}, true},  // across the corner
		{world.Point{X: 90, Y: 99}, false},
		{world.Point{X: 1, Y: 50}, false},
	}
	for _, tt := range tests {
		if got := w.InHole(tt.p); got != tt.want {
			t.Errorf("InHole(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	plain := Hole{Center: world.Point{X: 1, Y: 99}, Radius: 5}
	if plain.Contains(world.Point{X: 98, Y: 99}, 0) {
		t.Fatal("plain distance should not wrap")
	}
}

func TestWrap(t *testing.T) {
	w := &World{Config: Config{Domain: 10}}
	got := w.Wrap(world.Point{X: -1, Y: 12})
	if got.X != 9 || got.Y != 2 {
		t.Fatalf("unexpected wrap: %+v", got)
	}
}

func TestDeterministicForSeed(t *testing.T) {
	run := func() []world.Point {
		w, err := New(DefaultConfig(), rand.New(rand.NewSource(8)))
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		for i := 0; i < 20; i++ {
			w.Step()
		}
		return w.Positions()
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("population differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("position %d differs", i)
		}
	}
}
