// Package pathfind implements A* search over a grid.Map.
//
// The heuristic is the map's connectivity metric (Manhattan for 4-connected
// maps, Chebyshev for 8-connected maps); both are admissible and consistent
// for unit step costs, so returned paths have the minimum number of hops.
package pathfind

import (
	"container/heap"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// Path is the result of a successful search.
//
// Invariant: Steps holds the cells strictly between start and goal, in travel
// order; neither endpoint is included.
type Path struct {
	Steps []grid.Cell
	hops  int
}

// Hops returns the number of moves from start to goal: 0 when start == goal,
// otherwise len(Steps)+1.
func (p Path) Hops() int {
	return p.hops
}

// Next returns the first cell to move into, or false when the goal is at most
// one move away.
func (p Path) Next() (grid.Cell, bool) {
	if len(p.Steps) == 0 {
		return grid.Cell{}, false
	}
	return p.Steps[0], true
}

// FindPath searches m for a shortest path from start to goal.
//
// Obstacles are never entered. Open-set ties on f are broken by the lower h,
// then by insertion order, so results are reproducible for a fixed map.
//
// Postcondition: ok is false iff goal cannot be reached; unreachable is a
// normal outcome, not an error.
func FindPath(m *grid.Map, start, goal grid.Cell) (Path, bool) {
	return search(m, start, goal, nil)
}

// NextStep plans one orthogonal move from from toward to, treating occupied
// cells (other units) as additional blockers. The goal cell itself may be
// occupied; only the cells in between must be free.
//
// Postcondition: ok is false when no path exists or from is already adjacent to
// (or on) to.
func NextStep(m *grid.Map, from, to grid.Cell, occupied map[grid.Cell]bool) (grid.Direction, bool) {
	if m.Connectivity != grid.Four {
		// Units only move orthogonally, so plan on a 4-connected view of the map.
		four := *m
		four.Connectivity = grid.Four
		m = &four
	}
	p, ok := search(m, from, to, occupied)
	if !ok {
		return 0, false
	}
	next, ok := p.Next()
	if !ok {
		return 0, false
	}
	return grid.DirectionBetween(from, next)
}

type openItem struct {
	cell grid.Cell
	g, h int
	seq  int
}

type openSet []openItem

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	fi, fj := o[i].g+o[i].h, o[j].g+o[j].h
	if fi != fj {
		return fi < fj
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(openItem)) }
func (o *openSet) Pop() any {
	old := *o
	it := old[len(old)-1]
	*o = old[:len(old)-1]
	return it
}

func search(m *grid.Map, start, goal grid.Cell, occupied map[grid.Cell]bool) (Path, bool) {
	if start == goal {
		return Path{}, true
	}
	if !m.Passable(goal) {
		return Path{}, false
	}

	open := &openSet{}
	seq := 0
	heap.Push(open, openItem{cell: start, g: 0, h: m.Distance(start, goal), seq: seq})
	best := map[grid.Cell]int{start: 0}
	parent := make(map[grid.Cell]grid.Cell)
	closed := make(map[grid.Cell]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(openItem)
		if closed[cur.cell] {
			continue // stale entry superseded by a cheaper push
		}
		if cur.cell == goal {
			return buildPath(parent, start, goal, cur.g), true
		}
		closed[cur.cell] = true

		for _, n := range m.Neighbors(cur.cell) {
			if closed[n] || m.Blocked(n) {
				continue
			}
			if n != goal && occupied[n] {
				continue
			}
			g := cur.g + 1
			if prev, seen := best[n]; seen && g >= prev {
				continue
			}
			best[n] = g
			parent[n] = cur.cell
			seq++
			heap.Push(open, openItem{cell: n, g: g, h: m.Distance(n, goal), seq: seq})
		}
	}
	return Path{}, false
}

func buildPath(parent map[grid.Cell]grid.Cell, start, goal grid.Cell, hops int) Path {
	steps := make([]grid.Cell, 0, hops-1)
	for c := parent[goal]; c != start; c = parent[c] {
		steps = append(steps, c)
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return Path{Steps: steps, hops: hops}
}
