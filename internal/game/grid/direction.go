package grid

import (
	"fmt"
	"strings"
)

// Direction is one of the four orthogonal unit moves.
// Y grows southward, matching the host engine's screen coordinates.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists the legal move directions in enumeration order.
var Directions = [4]Direction{North, East, South, West}

// Delta returns the unit vector for d.
func (d Direction) Delta() Cell {
	switch d {
	case North:
		return Cell{X: 0, Y: -1}
	case East:
		return Cell{X: 1, Y: 0}
	case South:
		return Cell{X: 0, Y: 1}
	case West:
		return Cell{X: -1, Y: 0}
	default:
		return Cell{}
	}
}

// String returns "north", "east", "south", "west", or "unknown".
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// DirectionBetween returns the direction that moves from a to the orthogonally
// adjacent cell b.
//
// Postcondition: ok is false when b is not exactly one orthogonal step from a.
func DirectionBetween(a, b Cell) (Direction, bool) {
	for _, d := range Directions {
		if a.Step(d) == b {
			return d, true
		}
	}
	return 0, false
}

// Connectivity selects the movement model used by pathfinding and by the
// attack-range test.
type Connectivity int

const (
	// Four allows orthogonal steps and pairs with Manhattan distance.
	Four Connectivity = iota
	// Eight also allows diagonal steps and pairs with Chebyshev distance.
	Eight
)

var (
	orthogonalDeltas = []Cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	allDeltas        = []Cell{{0, -1}, {1, 0}, {0, 1}, {-1, 0}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}}
)

func (c Connectivity) deltas() []Cell {
	if c == Eight {
		return allDeltas
	}
	return orthogonalDeltas
}

// Distance returns the metric paired with c: Manhattan for Four, Chebyshev for Eight.
// It never overestimates the step count under c, so it is an admissible A* heuristic.
func (c Connectivity) Distance(a, b Cell) int {
	if c == Eight {
		return Chebyshev(a, b)
	}
	return Manhattan(a, b)
}

// String returns "4" or "8".
func (c Connectivity) String() string {
	if c == Eight {
		return "8"
	}
	return "4"
}

// ParseConnectivity accepts "4"/"four" and "8"/"eight".
func ParseConnectivity(s string) (Connectivity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "4", "four":
		return Four, nil
	case "8", "eight":
		return Eight, nil
	default:
		return Four, fmt.Errorf("grid.ParseConnectivity: unknown connectivity %q", s)
	}
}
