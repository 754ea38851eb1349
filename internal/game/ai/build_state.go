package ai

import (
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// FieldParams are the per-match settings that turn a Snapshot into a Battlefield.
type FieldParams struct {
	Connectivity grid.Connectivity
	Eval         combat.Evaluation
}

// BuildField validates the static part of snap and builds the shared Battlefield.
//
// Precondition: snap must not be nil.
// Postcondition: returns an error for non-positive dimensions or an out-of-bounds obstacle.
func BuildField(snap *Snapshot, p FieldParams) (*combat.Battlefield, error) {
	m, err := grid.NewMap(snap.Width, snap.Height, p.Connectivity, snap.Blocked...)
	if err != nil {
		return nil, fmt.Errorf("ai.BuildField: %w", err)
	}
	return combat.NewBattlefield(m, p.Eval), nil
}

// BuildCombatState constructs the root search node from a host snapshot.
//
// Precondition: snap must not be nil.
// Postcondition: on success the node has an empty action map and a depth-0
// state holding only the living units of snap; dead units are dropped before
// validation. Returns an error if a team exceeds combat.MaxTeamSize, an ID is
// repeated, or a unit is off the map or on an obstacle.
func BuildCombatState(snap *Snapshot, field *combat.Battlefield, attackersToMove bool) (combat.Node, error) {
	if snap == nil || field == nil {
		return combat.Node{}, fmt.Errorf("ai.BuildCombatState: snapshot and field must not be nil")
	}
	attackers, defenders := Living(snap.Attackers), Living(snap.Defenders)
	if len(attackers) > combat.MaxTeamSize || len(defenders) > combat.MaxTeamSize {
		return combat.Node{}, fmt.Errorf("ai.BuildCombatState: teams are limited to %d units, got %d attackers and %d defenders",
			combat.MaxTeamSize, len(attackers), len(defenders))
	}

	seen := make(map[int]struct{}, len(attackers)+len(defenders))
	cells := make(map[grid.Cell]int, len(attackers)+len(defenders))
	convert := func(units []UnitSnapshot) ([]combat.Unit, error) {
		out := make([]combat.Unit, 0, len(units))
		for _, u := range units {
			if _, dup := seen[u.ID]; dup {
				return nil, fmt.Errorf("duplicate unit id %d", u.ID)
			}
			seen[u.ID] = struct{}{}
			c := u.Cell()
			if !field.Map.InBounds(c) {
				return nil, fmt.Errorf("unit %d at %s is off the %dx%d map", u.ID, c, field.Map.Width, field.Map.Height)
			}
			if field.Map.Blocked(c) {
				return nil, fmt.Errorf("unit %d stands on obstacle %s", u.ID, c)
			}
			if other, taken := cells[c]; taken {
				return nil, fmt.Errorf("units %d and %d share cell %s", other, u.ID, c)
			}
			cells[c] = u.ID
			out = append(out, combat.Unit{ID: u.ID, Pos: c, HP: u.HP, Damage: u.Damage, Range: u.Range})
		}
		return out, nil
	}

	a, err := convert(attackers)
	if err != nil {
		return combat.Node{}, fmt.Errorf("ai.BuildCombatState: %w", err)
	}
	d, err := convert(defenders)
	if err != nil {
		return combat.Node{}, fmt.Errorf("ai.BuildCombatState: %w", err)
	}
	return combat.Node{
		Actions: combat.ActionMap{},
		State:   combat.NewState(field, a, d, attackersToMove),
	}, nil
}
