package combat

import "github.com/cory-johannsen/skirmish/internal/game/grid"

// Successors enumerates every joint action of the side to move and the state
// each one produces.
//
// Each acting unit contributes its LegalActions; a unit with none is left out
// of the joint action. Joint actions that send two units to the same cell, or
// any unit onto an obstacle, are discarded.
//
// Postcondition: every child has the opposite side to move and Depth()+1; the
// receiver is unchanged; enumeration order is deterministic.
func (s *State) Successors() []Node {
	actors, enemies := s.attackers, s.defenders
	if !s.attackersToMove {
		actors, enemies = s.defenders, s.attackers
	}

	var options [][]Action
	for _, u := range actors {
		if acts := s.LegalActions(u, enemies); len(acts) > 0 {
			options = append(options, acts)
		}
	}
	if len(options) == 0 {
		return nil
	}

	var children []Node
	joint := make([]Action, len(options))
	var expand func(i int)
	expand = func(i int) {
		if i == len(options) {
			if !s.admissible(joint) {
				return
			}
			am := make(ActionMap, len(joint))
			for _, a := range joint {
				am[a.UnitID] = a
			}
			children = append(children, Node{Actions: am, State: s.ApplyActions(am)})
			return
		}
		for _, a := range options[i] {
			joint[i] = a
			expand(i + 1)
		}
	}
	expand(0)
	return children
}

// admissible rejects self-collisions and moves onto obstacles.
func (s *State) admissible(joint []Action) bool {
	seen := make(map[grid.Cell]bool, len(joint))
	for _, a := range joint {
		if a.Kind != ActionMove {
			continue
		}
		u, ok := s.Unit(a.UnitID)
		if !ok {
			return false
		}
		dest := u.Pos.Step(a.Direction)
		if s.field.Map.Blocked(dest) || seen[dest] {
			return false
		}
		seen[dest] = true
	}
	return true
}

// ApplyActions returns the state reached by performing actions simultaneously
// from s: every action is resolved against s (the pre-ply snapshot), so the
// order of application cannot change the result. Units reduced to HP <= 0 are
// removed from the returned state's rosters.
//
// Postcondition: s is unchanged; the result has the other side to move and
// Depth() == s.Depth()+1.
func (s *State) ApplyActions(actions ActionMap) *State {
	next := &State{
		field:           s.field,
		attackers:       append([]Unit(nil), s.attackers...),
		defenders:       append([]Unit(nil), s.defenders...),
		attackersToMove: !s.attackersToMove,
		depth:           s.depth + 1,
	}

	for _, id := range actions.UnitIDs() {
		a := actions[id]
		actor, ok := s.Unit(a.UnitID)
		if !ok {
			continue
		}
		switch a.Kind {
		case ActionMove:
			if u := next.unitRef(a.UnitID); u != nil {
				u.Pos = actor.Pos.Step(a.Direction)
			}
		case ActionAttack:
			if target := next.unitRef(a.TargetID); target != nil {
				target.HP -= actor.Damage
			}
		case ActionUnknown:
			// Invalid actions are ignored.
		}
	}

	next.attackers = living(next.attackers)
	next.defenders = living(next.defenders)
	return next
}

// unitRef returns a pointer into s's own rosters. Only used while building a
// fresh state in ApplyActions.
func (s *State) unitRef(id int) *Unit {
	for i := range s.attackers {
		if s.attackers[i].ID == id {
			return &s.attackers[i]
		}
	}
	for i := range s.defenders {
		if s.defenders[i].ID == id {
			return &s.defenders[i]
		}
	}
	return nil
}
