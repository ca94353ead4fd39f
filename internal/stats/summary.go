// Package stats summarizes a population history.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a population-over-time series.
type Summary struct {
	Steps      int     `json:"steps"` // Completed steps (len(history) - 1)
	Initial    int     `json:"initial"`
	Final      int     `json:"final"`
	Peak       int     `json:"peak"`
	PeakStep   int     `json:"peak_step"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	GrowthRate float64 `json:"growth_rate"` // Mean per-step log growth

	// Approach to capacity. Both step fields are -1 when the level was
	// never reached or Capacity is 0.
	Capacity        int `json:"capacity"`
	StepsToHalf     int `json:"steps_to_half"`
	StepsToCapacity int `json:"steps_to_capacity"`
}

// Summarize computes a Summary. history[0] is the initial population and
// capacity is the model's carrying capacity or ceiling (0 if unbounded).
func Summarize(history []int, capacity int) Summary {
	if len(history) == 0 {
		return Summary{Capacity: capacity, StepsToHalf: -1, StepsToCapacity: -1}
	}

	xs := make([]float64, len(history))
	for i, n := range history {
		xs[i] = float64(n)
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	peakStep := floats.MaxIdx(xs)

	s := Summary{
		Steps:    len(history) - 1,
		Initial:  history[0],
		Final:    history[len(history)-1],
		Peak:     history[peakStep],
		PeakStep: peakStep,
		Mean:     mean,
		StdDev:   std,

		Capacity:        capacity,
		StepsToHalf:     -1,
		StepsToCapacity: -1,
	}
	if capacity > 0 {
		s.StepsToHalf = StepsToReach(history, (capacity+1)/2)
		s.StepsToCapacity = StepsToReach(history, capacity)
	}
	if s.Steps > 0 && s.Initial > 0 && s.Final > 0 {
		s.GrowthRate = math.Log(float64(s.Final)/float64(s.Initial)) / float64(s.Steps)
	}
	return s
}

// StepsToReach returns the first step at which the population reached
// target, or -1 if it never did.
func StepsToReach(history []int, target int) int {
	for i, n := range history {
		if n >= target {
			return i
		}
	}
	return -1
}
