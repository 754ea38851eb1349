// Package dice provides the randomness abstraction used to lay out scenarios:
// a Source of integers and small "NdS+M" expressions rolled against it.
package dice

import (
	"fmt"
	"strings"
)

// Source is the randomness provider for rolls and placements.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult holds the individual dice and modifier of one evaluated expression.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll for logs, e.g. "2d6+3 [4 5] +3 = 12".
func (r RollResult) String() string {
	parts := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		parts[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("%s [%s] %+d = %d", r.Expression, strings.Join(parts, " "), r.Modifier, r.Total())
}
