// Package agents provides the agent record and initial placement on the grid.
package agents

import (
	"github.com/talgya/gridpop/internal/world"
)

// AgentID is a unique identifier for an agent within a run.
type AgentID uint64

// Crossings records which grid midlines an agent has crossed, by direction.
// Flags are set the first time a crossing happens and never cleared.
type Crossings struct {
	LR bool `json:"lr"` // Left to right across the vertical midline
	RL bool `json:"rl"` // Right to left
	TB bool `json:"tb"` // Top to bottom across the horizontal midline
	BT bool `json:"bt"` // Bottom to top
}

// Any reports whether at least one crossing has been recorded.
func (c Crossings) Any() bool {
	return c.LR || c.RL || c.TB || c.BT
}

// Record sets the flags for a move from prev to next given the midline mid.
// A coordinate is on the low side when it is <= mid.
func (c *Crossings) Record(prev, next world.Coord, mid int) {
	switch {
	case prev.X <= mid && next.X > mid:
		c.LR = true
	case prev.X > mid && next.X <= mid:
		c.RL = true
	}
	switch {
	case prev.Y <= mid && next.Y > mid:
		c.TB = true
	case prev.Y > mid && next.Y <= mid:
		c.BT = true
	}
}

// Agent is a single individual on the lattice. Agents are plain values
// owned by the population slice of the current step.
type Agent struct {
	ID  AgentID     `json:"id"`
	Pos world.Coord `json:"pos"`

	// Trap state: TrapTimer counts remaining immobile steps; WasTrapped
	// prevents re-trapping on the step right after release.
	TrapTimer  int  `json:"trap_timer,omitempty"`
	WasTrapped bool `json:"was_trapped,omitempty"`

	Crossed Crossings `json:"crossed"`

	BornStep uint64 `json:"born_step"`
}

// Trapped reports whether the agent is in a trap countdown.
func (a Agent) Trapped() bool {
	return a.TrapTimer > 0
}
