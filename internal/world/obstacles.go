// Obstacle generation: blocked sets built once before a run starts.
package world

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// RectConfig describes square obstacle blocks scattered over the grid.
type RectConfig struct {
	Count  int // Number of blocks
	Size   int // Block edge length in cells
	MinGap int // Minimum free cells between block origins beyond Size
}

// Rectangles places Count square blocks of Size×Size cells at random
// origins. Blocks keep at least MinGap cells apart where the grid allows;
// once placement attempts run out the remaining blocks are skipped.
func Rectangles(side int, cfg RectConfig, rng *rand.Rand) (BlockedSet, error) {
	blocked := make(BlockedSet)
	if cfg.Count <= 0 {
		return blocked, nil
	}
	if cfg.Size <= 0 || cfg.Size > side {
		return nil, fmt.Errorf("obstacle size %d does not fit a %dx%d grid", cfg.Size, side, side)
	}

	span := side - cfg.Size + 1
	var origins []Coord
	attempts := cfg.Count * 50
	for i := 0; i < attempts && len(origins) < cfg.Count; i++ {
		origin := Coord{X: 1 + rng.Intn(span), Y: 1 + rng.Intn(span)}
		if tooClose(origin, origins, cfg.Size+cfg.MinGap) {
			continue
		}
		origins = append(origins, origin)
	}

	for _, o := range origins {
		for dy := 0; dy < cfg.Size; dy++ {
			for dx := 0; dx < cfg.Size; dx++ {
				blocked[Coord{X: o.X + dx, Y: o.Y + dy}] = struct{}{}
			}
		}
	}
	return blocked, nil
}

// tooClose reports whether c sits within minDist (Chebyshev) of any origin.
func tooClose(c Coord, origins []Coord, minDist int) bool {
	for _, o := range origins {
		if max(abs(c.X-o.X), abs(c.Y-o.Y)) < minDist {
			return true
		}
	}
	return false
}

// NoiseConfig describes terrain-like obstacles from layered simplex noise.
type NoiseConfig struct {
	Seed        int64
	Threshold   float64 // Cells whose noise value exceeds this are blocked (0.0–1.0)
	Frequency   float64 // Base sampling frequency per cell
	Octaves     int
	Persistence float64
}

// DefaultNoiseConfig returns settings that block roughly a fifth of the grid.
func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Threshold:   0.62,
		Frequency:   0.12,
		Octaves:     3,
		Persistence: 0.5,
	}
}

// Noise blocks every cell where normalized OpenSimplex noise is above the
// threshold. The same seed always yields the same set.
func Noise(side int, cfg NoiseConfig) BlockedSet {
	noise := opensimplex.NewNormalized(cfg.Seed)
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}

	blocked := make(BlockedSet)
	for y := 1; y <= side; y++ {
		for x := 1; x <= side; x++ {
			v := octaveNoise(noise, float64(x), float64(y), octaves, cfg.Frequency, cfg.Persistence)
			if v > cfg.Threshold {
				blocked[Coord{X: x, Y: y}] = struct{}{}
			}
		}
	}
	return blocked
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Wall blocks column x except for gaps randomly chosen rows.
// Agents can only get from one side of the wall to the other through a gap.
func Wall(side, x, gaps int, rng *rand.Rand) (BlockedSet, error) {
	if x < 1 || x > side {
		return nil, fmt.Errorf("wall column %d outside 1..%d", x, side)
	}
	if gaps < 0 || gaps > side {
		return nil, fmt.Errorf("wall gaps %d outside 0..%d", gaps, side)
	}

	open := make(map[int]bool, gaps)
	for _, row := range rng.Perm(side)[:gaps] {
		open[row+1] = true
	}

	blocked := make(BlockedSet, side-gaps)
	for y := 1; y <= side; y++ {
		if !open[y] {
			blocked[Coord{X: x, Y: y}] = struct{}{}
		}
	}
	return blocked, nil
}

// Merge unions several blocked sets.
func Merge(sets ...BlockedSet) BlockedSet {
	out := make(BlockedSet)
	for _, s := range sets {
		for c := range s {
			out[c] = struct{}{}
		}
	}
	return out
}
