// Package world provides the square lattice, blocked cells, and occupancy
// bookkeeping that agents move and breed on.
// Coordinates are 1-based: a grid of side L spans [1,L]×[1,L].
package world

import "fmt"

// Coord is a cell position on the lattice.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// NeighborDirections defines the four axis-aligned offsets.
// The order is fixed so that neighbor lists are reproducible for a seed.
var NeighborDirections = [4]Coord{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

// Neighbors returns the four adjacent coordinates, bounds unchecked.
func (c Coord) Neighbors() [4]Coord {
	var result [4]Coord
	for i, dir := range NeighborDirections {
		result[i] = Coord{X: c.X + dir.X, Y: c.Y + dir.Y}
	}
	return result
}

// Add returns c offset by d.
func (c Coord) Add(d Coord) Coord {
	return Coord{X: c.X + d.X, Y: c.Y + d.Y}
}

// Manhattan returns |dx| + |dy| between two coordinates.
func Manhattan(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Point is a continuous position. Lattice cells convert to their integer
// coordinates so both spaces share one snapshot format.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point returns c as a continuous position.
func (c Coord) Point() Point {
	return Point{X: float64(c.X), Y: float64(c.Y)}
}
