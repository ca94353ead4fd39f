package watch

import (
	"math"

	"github.com/talgya/gridpop/internal/stats"
)

// Run phases reported by Triage.
const (
	PhaseExtinct   = "EXTINCT"
	PhaseGrowing   = "GROWING"
	PhaseDeclining = "DECLINING"
	PhasePlateau   = "PLATEAU"
)

// Health holds derived signals computed from an Observation.
type Health struct {
	Summary     stats.Summary
	Window      int     // history entries the trend was read from
	Trend       float64 // relative change across the window
	BirthsShare float64 // births in the last step per live agent
	Phase       string
}

// PlateauTolerance is the relative change below which a window counts as flat.
const PlateauTolerance = 0.02

// Triage classifies the run from the last window history entries.
func Triage(obs *Observation, window int) *Health {
	h := &Health{Summary: stats.Summarize(obs.History, obs.Status.Capacity)}

	n := len(obs.History)
	pop := obs.Status.Stats.Population
	if n > 0 {
		pop = obs.History[n-1]
	}
	if pop > 0 {
		h.BirthsShare = float64(obs.Status.Stats.Births) / float64(pop)
	}
	if pop == 0 {
		h.Phase = PhaseExtinct
		return h
	}

	if window < 2 {
		window = 2
	}
	if window > n {
		window = n
	}
	h.Window = window
	if window < 2 {
		h.Phase = PhasePlateau
		return h
	}

	first := obs.History[n-window]
	last := obs.History[n-1]
	h.Trend = float64(last-first) / math.Max(float64(first), 1)

	switch {
	case math.Abs(h.Trend) < PlateauTolerance:
		h.Phase = PhasePlateau
	case h.Trend > 0:
		h.Phase = PhaseGrowing
	default:
		h.Phase = PhaseDeclining
	}
	return h
}
