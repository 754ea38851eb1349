// Package combat implements the simulated skirmish model searched by the AI:
// units, actions, and immutable combat states with successor generation and a
// heuristic utility.
package combat

import (
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// Side distinguishes the two teams. Attackers are the maximizing side.
type Side int

const (
	Attackers Side = iota
	Defenders
)

// String returns "attackers" or "defenders".
func (s Side) String() string {
	switch s {
	case Attackers:
		return "attackers"
	case Defenders:
		return "defenders"
	default:
		return "unknown"
	}
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Attackers {
		return Defenders
	}
	return Attackers
}

// MaxTeamSize is the largest roster either side may field.
const MaxTeamSize = 2

// Unit is one combatant. Damage and Range are fixed for the unit's lifetime;
// Pos and HP change only through ApplyActions on a copied state.
type Unit struct {
	ID     int
	Pos    grid.Cell
	HP     int
	Damage int
	Range  int
}

// Alive reports whether the unit still has hit points.
//
// Postcondition: Returns true iff HP > 0.
func (u Unit) Alive() bool { return u.HP > 0 }

// String returns a compact description for logs.
func (u Unit) String() string {
	return fmt.Sprintf("unit %d at %s hp=%d", u.ID, u.Pos, u.HP)
}

// Weights are the coefficients of the linear utility function.
type Weights struct {
	AttackerHP    int
	DefenderHP    int
	AttackerAlive int
	DefenderAlive int
	Distance      int
}

// DefaultWeights returns the stock coefficients: attacker health and survival
// are rewarded, defender health and survival heavily penalized, and every
// square between an attacker and its nearest defender costs one point.
func DefaultWeights() Weights {
	return Weights{
		AttackerHP:    1,
		DefenderHP:    -10,
		AttackerAlive: 10,
		DefenderAlive: -100,
		Distance:      -1,
	}
}

// StraightLine picks the distance used by the utility on obstacle-free maps.
type StraightLine int

const (
	Euclidean StraightLine = iota
	Chebyshev
)

// DefaultUnreachablePenalty is the distance charged for an attacker that has no
// path to any defender.
const DefaultUnreachablePenalty = 50

// Evaluation parameterizes Utility.
type Evaluation struct {
	Weights            Weights
	StraightLine       StraightLine
	UnreachablePenalty int
}

// DefaultEvaluation returns DefaultWeights with Euclidean straight-line
// distance and the default unreachable penalty.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Weights:            DefaultWeights(),
		StraightLine:       Euclidean,
		UnreachablePenalty: DefaultUnreachablePenalty,
	}
}

// Battlefield is the read-only context shared by every state of one search:
// the map (bounds, obstacles, connectivity) and the evaluation parameters.
//
// Invariant: never mutated after construction.
type Battlefield struct {
	Map  *grid.Map
	Eval Evaluation
}

// NewBattlefield pairs a map with evaluation parameters.
//
// Precondition: m must not be nil.
func NewBattlefield(m *grid.Map, eval Evaluation) *Battlefield {
	if m == nil {
		panic("combat.NewBattlefield: map must not be nil")
	}
	return &Battlefield{Map: m, Eval: eval}
}
