package world

import "fmt"

// BlockedSet is a fixed set of cells excluded from placement and movement.
type BlockedSet map[Coord]struct{}

// NewBlockedSet builds a set from a coordinate list.
func NewBlockedSet(coords ...Coord) BlockedSet {
	b := make(BlockedSet, len(coords))
	for _, c := range coords {
		b[c] = struct{}{}
	}
	return b
}

// Has reports whether c is in the set.
func (b BlockedSet) Has(c Coord) bool {
	_, ok := b[c]
	return ok
}

// Grid holds the occupancy state of an L×L lattice.
// A cell is occupied iff exactly one agent sits on it; blocked cells are
// never occupied.
type Grid struct {
	Side     int `json:"side"`
	occupied []bool
	blocked  []bool
	nBlocked int
	nOcc     int
}

// NewGrid creates a grid of the given side with every blocked cell marked
// unavailable and all other cells free.
func NewGrid(side int, blocked BlockedSet) (*Grid, error) {
	if side <= 0 {
		return nil, fmt.Errorf("grid side must be positive, got %d", side)
	}
	g := &Grid{
		Side:     side,
		occupied: make([]bool, side*side),
		blocked:  make([]bool, side*side),
	}
	for c := range blocked {
		if !g.InBounds(c) {
			return nil, fmt.Errorf("blocked cell %s outside %dx%d grid", c, side, side)
		}
		g.blocked[g.index(c)] = true
		g.nBlocked++
	}
	return g, nil
}

func (g *Grid) index(c Coord) int {
	return (c.Y-1)*g.Side + (c.X - 1)
}

// InBounds returns true if c lies within [1,Side]×[1,Side].
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 1 && c.X <= g.Side && c.Y >= 1 && c.Y <= g.Side
}

// Blocked reports whether c is a blocked cell. Out-of-bounds cells are not blocked.
func (g *Grid) Blocked(c Coord) bool {
	return g.InBounds(c) && g.blocked[g.index(c)]
}

// Occupied reports whether an agent sits on c.
func (g *Grid) Occupied(c Coord) bool {
	return g.InBounds(c) && g.occupied[g.index(c)]
}

// Free reports whether c is in bounds, unblocked and unoccupied.
func (g *Grid) Free(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	i := g.index(c)
	return !g.blocked[i] && !g.occupied[i]
}

// Occupy marks c as holding an agent. Occupying a cell that is not free
// breaks the occupancy invariant and panics.
func (g *Grid) Occupy(c Coord) {
	if !g.Free(c) {
		panic(fmt.Sprintf("world: occupy non-free cell %s", c))
	}
	g.occupied[g.index(c)] = true
	g.nOcc++
}

// Vacate clears the agent marker on c.
func (g *Grid) Vacate(c Coord) {
	if !g.Occupied(c) {
		panic(fmt.Sprintf("world: vacate empty cell %s", c))
	}
	g.occupied[g.index(c)] = false
	g.nOcc--
}

// Move vacates from and occupies to.
func (g *Grid) Move(from, to Coord) {
	g.Vacate(from)
	g.Occupy(to)
}

// FreeNeighbors returns the axis-aligned neighbors of c that are in bounds,
// unblocked and unoccupied, in NeighborDirections order. The result is
// empty when c is surrounded.
func (g *Grid) FreeNeighbors(c Coord) []Coord {
	out := make([]Coord, 0, 4)
	for _, n := range c.Neighbors() {
		if g.Free(n) {
			out = append(out, n)
		}
	}
	return out
}

// AdjacentToBlocked reports whether any in-bounds neighbor of c is blocked.
func (g *Grid) AdjacentToBlocked(c Coord) bool {
	for _, n := range c.Neighbors() {
		if g.Blocked(n) {
			return true
		}
	}
	return false
}

// CountWithin counts occupied cells within Manhattan distance radius of c,
// not counting c itself. Cells for which skip returns true are ignored.
func (g *Grid) CountWithin(c Coord, radius int, skip func(Coord) bool) int {
	if radius <= 0 {
		return 0
	}
	count := 0
	for dy := max(-radius, 1-c.Y); dy <= min(radius, g.Side-c.Y); dy++ {
		y := c.Y + dy
		span := radius - abs(dy)
		lo, hi := max(-span, 1-c.X), min(span, g.Side-c.X)
		for dx := lo; dx <= hi; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Coord{X: c.X + dx, Y: y}
			if !g.Occupied(n) {
				continue
			}
			if skip != nil && skip(n) {
				continue
			}
			count++
		}
	}
	return count
}

// FreeCells lists every free cell in row-major order.
func (g *Grid) FreeCells() []Coord {
	out := make([]Coord, 0, g.FreeCount())
	for y := 1; y <= g.Side; y++ {
		for x := 1; x <= g.Side; x++ {
			c := Coord{X: x, Y: y}
			if g.Free(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// Area returns Side².
func (g *Grid) Area() int {
	return g.Side * g.Side
}

// BlockedCount returns the number of blocked cells.
func (g *Grid) BlockedCount() int {
	return g.nBlocked
}

// OccupiedCount returns the number of occupied cells.
func (g *Grid) OccupiedCount() int {
	return g.nOcc
}

// FreeCount returns the number of cells available for placement.
func (g *Grid) FreeCount() int {
	return g.Area() - g.nBlocked - g.nOcc
}

// CarryingCapacity is the number of cells agents can ever stand on.
func (g *Grid) CarryingCapacity() int {
	return g.Area() - g.nBlocked
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(side=%d, blocked=%d, occupied=%d)", g.Side, g.nBlocked, g.nOcc)
}
