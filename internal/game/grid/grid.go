// Package grid models the static battlefield: its bounds, its blocked cells, and
// the movement rules (connectivity and distance metric) shared by pathfinding
// and combat.
package grid

import (
	"fmt"
	"math"
	"sort"
)

// Cell is an integer grid coordinate. Equality depends only on X and Y, so a
// Cell is safe to use as a map key.
type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Add returns c displaced by (dx, dy).
func (c Cell) Add(dx, dy int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Step returns the neighbouring cell one move away in direction d.
func (c Cell) Step(d Direction) Cell {
	delta := d.Delta()
	return c.Add(delta.X, delta.Y)
}

// String returns the cell as "(x,y)".
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Manhattan returns |dx| + |dy| between a and b.
func Manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Chebyshev returns max(|dx|, |dy|) between a and b.
func Chebyshev(a, b Cell) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Euclidean returns the straight-line distance between a and b.
func Euclidean(a, b Cell) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Obstacles is an immutable set of blocked cells.
//
// Invariant: the set never changes after construction, so one *Obstacles may be
// shared by every combat state derived from the same root.
type Obstacles struct {
	cells map[Cell]struct{}
}

// NewObstacles builds an obstacle set from cells. Duplicates are collapsed.
//
// Postcondition: the returned set does not alias the cells argument.
func NewObstacles(cells ...Cell) *Obstacles {
	set := make(map[Cell]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	return &Obstacles{cells: set}
}

// Contains reports whether c is blocked. A nil set contains nothing.
func (o *Obstacles) Contains(c Cell) bool {
	if o == nil {
		return false
	}
	_, ok := o.cells[c]
	return ok
}

// Len returns the number of blocked cells. A nil set is empty.
func (o *Obstacles) Len() int {
	if o == nil {
		return 0
	}
	return len(o.cells)
}

// Cells returns the blocked cells sorted by row, then column.
//
// Postcondition: the returned slice is a fresh copy.
func (o *Obstacles) Cells() []Cell {
	if o == nil {
		return nil
	}
	out := make([]Cell, 0, len(o.cells))
	for c := range o.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Map is the static battlefield: dimensions, blocked cells and connectivity.
//
// Invariant: Width > 0, Height > 0, every obstacle is in bounds.
type Map struct {
	Width        int
	Height       int
	Obstacles    *Obstacles
	Connectivity Connectivity
}

// NewMap validates the dimensions and blocked cells and returns a Map.
//
// Precondition: width and height must be positive; blocked cells must lie in bounds.
// Postcondition: Returns a Map whose obstacle set is independent of blocked.
func NewMap(width, height int, conn Connectivity, blocked ...Cell) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid.NewMap: dimensions must be positive, got %dx%d", width, height)
	}
	m := &Map{Width: width, Height: height, Connectivity: conn}
	for _, c := range blocked {
		if !m.InBounds(c) {
			return nil, fmt.Errorf("grid.NewMap: obstacle %s outside %dx%d map", c, width, height)
		}
	}
	m.Obstacles = NewObstacles(blocked...)
	return m, nil
}

// InBounds reports whether c lies on the map.
func (m *Map) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < m.Width && c.Y >= 0 && c.Y < m.Height
}

// Blocked reports whether c holds an obstacle.
func (m *Map) Blocked(c Cell) bool {
	return m.Obstacles.Contains(c)
}

// Passable reports whether a unit could stand on c, ignoring other units.
func (m *Map) Passable(c Cell) bool {
	return m.InBounds(c) && !m.Blocked(c)
}

// Neighbors returns the in-bounds cells adjacent to c under the map's
// connectivity, in the fixed order N, E, S, W, then NE, SE, SW, NW.
//
// Postcondition: no returned cell is out of bounds; obstacles are NOT filtered.
func (m *Map) Neighbors(c Cell) []Cell {
	deltas := m.Connectivity.deltas()
	out := make([]Cell, 0, len(deltas))
	for _, d := range deltas {
		n := c.Add(d.X, d.Y)
		if m.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Distance returns the connectivity metric between a and b.
func (m *Map) Distance(a, b Cell) int {
	return m.Connectivity.Distance(a, b)
}
