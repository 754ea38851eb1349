package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
)

// Ordering selects how successors are sorted before expansion.
type Ordering int

const (
	// BestFirst expands the moving side's most promising children first:
	// descending utility for the maximizer, ascending for the minimizer.
	BestFirst Ordering = iota
	// Ascending sorts by ascending utility for both sides.
	Ascending
)

// String returns "best_first" or "ascending".
func (o Ordering) String() string {
	if o == Ascending {
		return "ascending"
	}
	return "best_first"
}

// ParseOrdering converts a configuration string to an Ordering.
//
// Postcondition: returns an error for anything but "best_first" or "ascending".
func ParseOrdering(s string) (Ordering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best_first", "":
		return BestFirst, nil
	case "ascending":
		return Ascending, nil
	default:
		return BestFirst, fmt.Errorf("ai.ParseOrdering: unknown ordering %q", s)
	}
}

// Order sorts children in place by their own state's utility. The sort is
// stable, so children with equal utility keep their enumeration order.
//
// Postcondition: every child's utility is memoized.
func Order(children []combat.Node, maximizing bool, mode Ordering) {
	descending := mode == BestFirst && maximizing
	sort.SliceStable(children, func(i, j int) bool {
		ui, uj := children[i].State.Utility(), children[j].State.Utility()
		if descending {
			return ui > uj
		}
		return ui < uj
	})
}
