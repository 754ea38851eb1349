package combat

import (
	"math"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/pathfind"
)

// State is one simulated position of the skirmish.
//
// Invariant: rosters hold only living units and are owned exclusively by this
// State; field is shared read-only with every other state of the same search.
// Apart from the one-time utility memo, a State is never mutated after
// construction.
type State struct {
	field     *Battlefield
	attackers []Unit
	defenders []Unit
	// attackersToMove is true on the maximizing side's plies.
	attackersToMove bool
	depth           int

	utility      int
	utilityKnown bool
}

// NewState builds a root state. Dead units are dropped and rosters are copied.
//
// Precondition: field must not be nil.
// Postcondition: Depth() == 0; the returned state does not alias the argument slices.
func NewState(field *Battlefield, attackers, defenders []Unit, attackersToMove bool) *State {
	if field == nil {
		panic("combat.NewState: field must not be nil")
	}
	return &State{
		field:           field,
		attackers:       living(attackers),
		defenders:       living(defenders),
		attackersToMove: attackersToMove,
	}
}

// NewSentinel returns an empty terminal state with a fixed utility, used to
// seed alpha and beta.
func NewSentinel(utility int) *State {
	return &State{utility: utility, utilityKnown: true}
}

func living(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// Field returns the shared battlefield. Nil for sentinel states.
func (s *State) Field() *Battlefield { return s.field }

// Attackers returns a copy of the living attacker roster.
func (s *State) Attackers() []Unit { return append([]Unit(nil), s.attackers...) }

// Defenders returns a copy of the living defender roster.
func (s *State) Defenders() []Unit { return append([]Unit(nil), s.defenders...) }

// Roster returns a copy of side's living units.
func (s *State) Roster(side Side) []Unit {
	if side == Attackers {
		return s.Attackers()
	}
	return s.Defenders()
}

// AttackersToMove reports whether the maximizing side acts in this state.
func (s *State) AttackersToMove() bool { return s.attackersToMove }

// SideToMove returns the side whose units act in this state.
func (s *State) SideToMove() Side {
	if s.attackersToMove {
		return Attackers
	}
	return Defenders
}

// Depth returns the number of plies simulated since the root.
func (s *State) Depth() int { return s.depth }

// Unit looks up a living unit of either side by ID.
func (s *State) Unit(id int) (Unit, bool) {
	for _, u := range s.attackers {
		if u.ID == id {
			return u, true
		}
	}
	for _, u := range s.defenders {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// IsTerminal reports whether either side has been wiped out.
//
// Postcondition: Returns true iff a roster is empty.
func (s *State) IsTerminal() bool {
	return len(s.attackers) == 0 || len(s.defenders) == 0
}

// occupied reports whether any living unit stands on c.
func (s *State) occupied(c grid.Cell) bool {
	for _, u := range s.attackers {
		if u.Pos == c {
			return true
		}
	}
	for _, u := range s.defenders {
		if u.Pos == c {
			return true
		}
	}
	return false
}

// LegalActions lists what u may do this ply: a Move for each of N, E, S, W
// whose destination is on the map, free of obstacles and free of living units,
// then an Attack for each enemy within u's range under the map's metric.
//
// Postcondition: order is deterministic (directions, then enemies in roster
// order); an empty result means u passes.
func (s *State) LegalActions(u Unit, enemies []Unit) []Action {
	m := s.field.Map
	var out []Action
	for _, d := range grid.Directions {
		dest := u.Pos.Step(d)
		if !m.Passable(dest) || s.occupied(dest) {
			continue
		}
		out = append(out, Move(u.ID, d))
	}
	for _, e := range enemies {
		if !e.Alive() {
			continue
		}
		if m.Distance(u.Pos, e.Pos) <= u.Range {
			out = append(out, Attack(u.ID, e.ID))
		}
	}
	return out
}

// Utility returns the heuristic value of the state from the attackers' point
// of view, computing it on first use.
//
// Postcondition: repeated calls return the same value.
func (s *State) Utility() int {
	if s.utilityKnown {
		return s.utility
	}
	s.utility = s.evaluate()
	s.utilityKnown = true
	return s.utility
}

func (s *State) evaluate() int {
	w := s.field.Eval.Weights
	attackerHP, defenderHP := 0, 0
	for _, u := range s.attackers {
		attackerHP += u.HP
	}
	for _, u := range s.defenders {
		defenderHP += u.HP
	}
	distance := 0.0
	for _, a := range s.attackers {
		distance += s.nearestDefenderDistance(a)
	}
	return w.AttackerHP*attackerHP +
		w.DefenderHP*defenderHP +
		w.AttackerAlive*len(s.attackers) +
		w.DefenderAlive*len(s.defenders) +
		int(math.Round(float64(w.Distance)*distance))
}

// nearestDefenderDistance is the A* hop count to the closest defender when the
// map has obstacles, and the straight-line distance otherwise. The two are not
// interchangeable, so the choice depends only on the map, never on the state.
func (s *State) nearestDefenderDistance(a Unit) float64 {
	if len(s.defenders) == 0 {
		return 0
	}
	m := s.field.Map
	best := math.Inf(1)
	for _, d := range s.defenders {
		var dist float64
		if m.Obstacles.Len() > 0 {
			if p, ok := pathfind.FindPath(m, a.Pos, d.Pos); ok {
				dist = float64(p.Hops())
			} else {
				dist = float64(s.field.Eval.UnreachablePenalty)
			}
		} else if s.field.Eval.StraightLine == Chebyshev {
			dist = float64(grid.Chebyshev(a.Pos, d.Pos))
		} else {
			dist = grid.Euclidean(a.Pos, d.Pos)
		}
		if dist < best {
			best = dist
		}
	}
	return best
}
