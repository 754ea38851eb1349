package combat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// ActionKind tags the Action variant.
// The zero value (ActionUnknown) is intentionally invalid.
type ActionKind int

const (
	ActionUnknown ActionKind = iota // zero value; intentionally invalid
	ActionMove                      // step one cell in Direction
	ActionAttack                    // deal the unit's damage to TargetID
)

// String returns "move", "attack", or "unknown".
func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionAttack:
		return "attack"
	default:
		return "unknown"
	}
}

// Action is the closed Move | Attack variant. Direction is meaningful only for
// ActionMove and TargetID only for ActionAttack.
type Action struct {
	Kind      ActionKind
	UnitID    int
	Direction grid.Direction
	TargetID  int
}

// Move builds a move action.
func Move(unitID int, d grid.Direction) Action {
	return Action{Kind: ActionMove, UnitID: unitID, Direction: d}
}

// Attack builds an attack action.
func Attack(unitID, targetID int) Action {
	return Action{Kind: ActionAttack, UnitID: unitID, TargetID: targetID}
}

// String renders the action for logs, e.g. "1:move north" or "2:attack 7".
func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("%d:move %s", a.UnitID, a.Direction)
	case ActionAttack:
		return fmt.Sprintf("%d:attack %d", a.UnitID, a.TargetID)
	default:
		return fmt.Sprintf("%d:unknown", a.UnitID)
	}
}

// ActionMap is a joint action: one action per acting unit, keyed by unit ID.
type ActionMap map[int]Action

// UnitIDs returns the acting unit IDs in ascending order.
func (m ActionMap) UnitIDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// String renders the joint action in unit-ID order.
func (m ActionMap) String() string {
	parts := make([]string, 0, len(m))
	for _, id := range m.UnitIDs() {
		parts = append(parts, m[id].String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Node pairs the joint action taken with the state it produced.
// The root node of a search has an empty Actions map.
type Node struct {
	Actions ActionMap
	State   *State
}
