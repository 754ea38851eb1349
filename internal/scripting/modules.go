package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/pathfind"
)

// registerModules defines the engine global for one decision:
//
//	engine.distance(x1, y1, x2, y2)  grid distance under the map's connectivity
//	engine.next_step(unit, target)   first step of a shortest path, or nil
//	engine.roll(expr)                total of a dice roll such as "1d6+1"
//	engine.log(msg)                  debug log line
//
// Precondition: L must be from NewSandboxedState; m and snap describe the same battlefield.
func registerModules(L *lua.LState, m *grid.Map, snap *ai.Snapshot, roller *dice.Roller, logger *zap.Logger) {
	engine := L.NewTable()
	L.SetField(engine, "distance", L.NewFunction(func(L *lua.LState) int {
		a := grid.Cell{X: L.CheckInt(1), Y: L.CheckInt(2)}
		b := grid.Cell{X: L.CheckInt(3), Y: L.CheckInt(4)}
		L.Push(lua.LNumber(m.Distance(a, b)))
		return 1
	}))
	L.SetField(engine, "next_step", L.NewFunction(func(L *lua.LState) int {
		unit, ok := snap.Find(L.CheckInt(1))
		if !ok {
			L.ArgError(1, "unknown unit")
		}
		target, ok := snap.Find(L.CheckInt(2))
		if !ok {
			L.ArgError(2, "unknown unit")
		}
		d, ok := pathfind.NextStep(m, unit.Cell(), target.Cell(), snap.Occupied(unit.ID))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(d.String()))
		return 1
	}))
	L.SetField(engine, "roll", L.NewFunction(func(L *lua.LState) int {
		if roller == nil {
			L.RaiseError("engine.roll: no dice available")
		}
		res, err := roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.roll: %s", err.Error())
		}
		L.Push(lua.LNumber(res.Total()))
		return 1
	}))
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Debug("script log", zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("engine", engine)
}
