// Package arena plays scenarios to completion between two policies, standing
// in for the host game engine: it owns the authoritative snapshot, alternates
// the sides' ticks and resolves their commands.
package arena

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
)

// EndEnv is the environment an end condition is evaluated against.
type EndEnv struct {
	Tick           int
	AttackersAlive int
	DefendersAlive int
	AttackerHP     int
	DefenderHP     int
}

// envFor summarizes snap after tick ticks.
func envFor(snap *ai.Snapshot, tick int) EndEnv {
	env := EndEnv{Tick: tick}
	for _, u := range ai.Living(snap.Attackers) {
		env.AttackersAlive++
		env.AttackerHP += u.HP
	}
	for _, u := range ai.Living(snap.Defenders) {
		env.DefendersAlive++
		env.DefenderHP += u.HP
	}
	return env
}

// EndCondition is a compiled boolean expression over EndEnv, e.g.
// "AttackersAlive == 0 || DefendersAlive == 0".
type EndCondition struct {
	src     string
	program *vm.Program
}

// CompileEndCondition type-checks src against EndEnv.
//
// Postcondition: returns an error unless src compiles to a boolean expression.
func CompileEndCondition(src string) (*EndCondition, error) {
	prog, err := expr.Compile(src, expr.Env(EndEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("arena.CompileEndCondition %q: %w", src, err)
	}
	return &EndCondition{src: src, program: prog}, nil
}

// String returns the source expression.
func (c *EndCondition) String() string { return c.src }

// Met evaluates the condition for env.
func (c *EndCondition) Met(env EndEnv) (bool, error) {
	out, err := vm.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("arena.EndCondition %q: %w", c.src, err)
	}
	met, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("arena.EndCondition %q: non-boolean result %T", c.src, out)
	}
	return met, nil
}
