// Package scripting runs Lua policy scripts in a sandboxed GopherLua VM. A
// script defines a global decide(view) function that receives the acting
// side's view of the battlefield and returns a list of commands.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes one decision
// may execute when no limit is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit times.
// GopherLua's context-aware main loop calls Done() once per opcode, making
// this an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// LimitContext derives a context from parent that is cancelled after limit
// opcodes or when parent ends, whichever comes first.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
func LimitContext(parent context.Context, limit int) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	base, cancel := context.WithCancel(parent)
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{Context: base, cancel: cancel, remaining: rem}, cancel
}

// NewSandboxedState creates a GopherLua LState with:
//   - Only safe stdlib loaded: base, table, string, math
//   - Dangerous globals removed: dofile, loadfile, load, collectgarbage, require
//   - Execution limited to at most instLimit Lua opcodes
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: the caller owns the LState and must call the returned cancel
// function and L.Close() when done.
func NewSandboxedState(instLimit int) (*lua.LState, context.CancelFunc) {
	return newSandboxedState(context.Background(), instLimit)
}

func newSandboxedState(parent context.Context, instLimit int) (*lua.LState, context.CancelFunc) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	ctx, cancel := LimitContext(parent, instLimit)
	L.SetContext(ctx)
	return L, cancel
}
