package dice

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Expression is a parsed "NdS+M" roll. A bare integer parses to a constant
// with Count == 0.
//
// Invariant: Count >= 0; Sides >= 2 whenever Count > 0.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// MaxCount bounds the number of dice in one expression.
const MaxCount = 100

// Parse parses forms such as "d6", "2d4", "1d4+1", "3d6-2" and "5".
//
// Postcondition: Returns a valid Expression or a descriptive error; Count
// never exceeds MaxCount.
func Parse(s string) (Expression, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Expression{}, fmt.Errorf("dice: empty expression")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return Expression{Raw: raw, Modifier: n}, nil
	}
	lower := strings.ToLower(raw)
	dIdx := strings.Index(lower, "d")
	if dIdx < 0 {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", raw)
	}

	count := 1
	if countStr := lower[:dIdx]; countStr != "" {
		if !digitsOnly(countStr) {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q", raw)
		}
		var err error
		count, err = strconv.Atoi(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid die count in %q: %w", raw, err)
		}
		if count < 1 || count > MaxCount {
			return Expression{}, fmt.Errorf("dice: die count in %q must be between 1 and %d", raw, MaxCount)
		}
	}

	rest := lower[dIdx+1:]
	sidesStr, modStr := rest, ""
	if i := strings.IndexAny(rest, "+-"); i >= 0 {
		sidesStr, modStr = rest[:i], rest[i:]
	}
	if !digitsOnly(sidesStr) {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q", raw)
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("dice: invalid die sides in %q: %w", raw, err)
	}
	if sides < 2 {
		return Expression{}, fmt.Errorf("dice: die sides in %q must be >= 2", raw)
	}

	mod := 0
	if modStr != "" {
		if !digitsOnly(modStr[1:]) {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q", raw)
		}
		mod, err = strconv.Atoi(modStr)
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}
	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}

// digitsOnly reports whether s is a non-empty run of ASCII digits.
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Min and Max bound every possible total.
func (e Expression) Min() int { return e.Count + e.Modifier }

func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

// Roll evaluates e against src.
//
// Precondition: e comes from Parse; src must not be nil.
// Postcondition: Min() <= result.Total() <= Max().
func (e Expression) Roll(src Source) RollResult {
	rolled := make([]int, e.Count)
	for i := range rolled {
		rolled[i] = src.Intn(e.Sides) + 1
	}
	return RollResult{Expression: e.Raw, Dice: rolled, Modifier: e.Modifier}
}

// Roller pairs a Source with a logger; every roll is logged at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller.
//
// Precondition: src must not be nil. A nil logger disables logging.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	if src == nil {
		panic("dice.NewRoller: src must not be nil")
	}
	return &Roller{src: src, logger: observability.OrNop(logger)}
}

// Source returns the underlying Source.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates e and logs the result.
func (r *Roller) Roll(e Expression) RollResult {
	result := e.Roll(r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// RollExpr parses s and rolls it.
func (r *Roller) RollExpr(s string) (RollResult, error) {
	e, err := Parse(s)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}
