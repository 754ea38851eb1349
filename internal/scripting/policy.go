package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Script is a compiled Lua policy. It holds no VM; every decision runs in a
// fresh sandbox, so scripts keep no state between ticks.
type Script struct {
	name   string
	proto  *lua.FunctionProto
	limit  int
	conn   grid.Connectivity
	roller *dice.Roller
	logger *zap.Logger
}

// ScriptOptions configure how a Script runs.
type ScriptOptions struct {
	// InstructionLimit caps opcodes per decision; 0 uses DefaultInstructionLimit.
	InstructionLimit int
	Connectivity     grid.Connectivity
	// Roller backs engine.roll; nil makes engine.roll raise an error.
	Roller *dice.Roller
	Logger *zap.Logger
}

// LoadScript reads and compiles the Lua file at path.
//
// Postcondition: returns an error if the file cannot be read or does not parse.
func LoadScript(path string, opts ScriptOptions) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting.LoadScript: %w", err)
	}
	return CompileScript(path, string(src), opts)
}

// CompileScript compiles src, naming it name in error messages.
func CompileScript(name, src string, opts ScriptOptions) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("scripting: parsing %q: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling %q: %w", name, err)
	}
	return &Script{
		name:   name,
		proto:  proto,
		limit:  opts.InstructionLimit,
		conn:   opts.Connectivity,
		roller: opts.Roller,
		logger: observability.OrNop(opts.Logger),
	}, nil
}

// Name returns the script's source name.
func (s *Script) Name() string { return s.name }

// Policy returns an ai.Policy that runs s for side.
func (s *Script) Policy(side combat.Side) ai.Policy {
	return &scriptPolicy{script: s, side: side}
}

type scriptPolicy struct {
	script *Script
	side   combat.Side
}

// Decide runs the script's decide function against side's view of snap.
// Lua runtime errors inside decide are logged at Warn level and leave every
// unit idle; a script that fails to load or lacks decide is an error.
func (p *scriptPolicy) Decide(ctx context.Context, snap *ai.Snapshot) (map[int]ai.Command, error) {
	s := p.script
	m, err := grid.NewMap(snap.Width, snap.Height, s.conn, snap.Blocked...)
	if err != nil {
		return nil, fmt.Errorf("scripting: %s: %w", s.name, err)
	}

	L, cancel := newSandboxedState(ctx, s.limit)
	defer L.Close()
	defer cancel()
	registerModules(L, m, snap, s.roller, s.logger)

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("scripting: loading %q: %w", s.name, err)
	}
	fn := L.GetGlobal("decide")
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("scripting: %q does not define decide", s.name)
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, view(L, p.side, snap)); err != nil {
		s.logger.Warn("scripting: Lua runtime error",
			zap.String("script", s.name),
			zap.Stringer("side", p.side),
			zap.Error(err),
		)
		return map[int]ai.Command{}, nil
	}
	ret := L.Get(-1)
	L.Pop(1)
	return commands(ret, s.logger), nil
}

// view builds the table passed to decide:
//
//	{side, width, height, blocked = {{x, y}...}, own = {unit...}, enemies = {unit...}}
//
// where each unit is {id, x, y, hp, damage, range}.
func view(L *lua.LState, side combat.Side, snap *ai.Snapshot) *lua.LTable {
	own, enemies := ai.Living(snap.Attackers), ai.Living(snap.Defenders)
	if side == combat.Defenders {
		own, enemies = enemies, own
	}
	t := L.NewTable()
	t.RawSetString("side", lua.LString(side.String()))
	t.RawSetString("width", lua.LNumber(snap.Width))
	t.RawSetString("height", lua.LNumber(snap.Height))
	blocked := L.NewTable()
	for _, c := range snap.Blocked {
		cell := L.NewTable()
		cell.RawSetString("x", lua.LNumber(c.X))
		cell.RawSetString("y", lua.LNumber(c.Y))
		blocked.Append(cell)
	}
	t.RawSetString("blocked", blocked)
	t.RawSetString("own", units(L, own))
	t.RawSetString("enemies", units(L, enemies))
	return t
}

func units(L *lua.LState, us []ai.UnitSnapshot) *lua.LTable {
	out := L.NewTable()
	for _, u := range us {
		t := L.NewTable()
		t.RawSetString("id", lua.LNumber(u.ID))
		t.RawSetString("x", lua.LNumber(u.X))
		t.RawSetString("y", lua.LNumber(u.Y))
		t.RawSetString("hp", lua.LNumber(u.HP))
		t.RawSetString("damage", lua.LNumber(u.Damage))
		t.RawSetString("range", lua.LNumber(u.Range))
		out.Append(t)
	}
	return out
}

// commands converts decide's return value into commands. Entries are
// {unit, kind = "move", dir} or {unit, kind = "attack", target}; malformed
// entries and repeats for a unit already commanded are logged and skipped.
func commands(ret lua.LValue, logger *zap.Logger) map[int]ai.Command {
	out := make(map[int]ai.Command)
	list, ok := ret.(*lua.LTable)
	if !ok {
		if ret != lua.LNil {
			logger.Warn("scripting: decide returned a non-table", zap.String("type", ret.Type().String()))
		}
		return out
	}
	list.ForEach(func(_, v lua.LValue) {
		entry, ok := v.(*lua.LTable)
		if !ok {
			logger.Warn("scripting: skipping non-table command")
			return
		}
		cmd, err := command(entry)
		if err != nil {
			logger.Warn("scripting: skipping command", zap.Error(err))
			return
		}
		if _, dup := out[cmd.UnitID]; dup {
			logger.Warn("scripting: skipping repeat command", zap.Int("unit", cmd.UnitID))
			return
		}
		out[cmd.UnitID] = cmd
	})
	return out
}

func command(t *lua.LTable) (ai.Command, error) {
	unit, ok := t.RawGetString("unit").(lua.LNumber)
	if !ok {
		return ai.Command{}, errors.New("command has no numeric unit")
	}
	cmd := ai.Command{UnitID: int(unit), Kind: lua.LVAsString(t.RawGetString("kind"))}
	switch cmd.Kind {
	case "move":
		d, err := parseDirection(lua.LVAsString(t.RawGetString("dir")))
		if err != nil {
			return ai.Command{}, err
		}
		cmd.Direction = d
	case "attack":
		target, ok := t.RawGetString("target").(lua.LNumber)
		if !ok {
			return ai.Command{}, fmt.Errorf("attack by unit %d has no numeric target", cmd.UnitID)
		}
		cmd.TargetID = int(target)
	default:
		return ai.Command{}, fmt.Errorf("unit %d: unknown command kind %q", cmd.UnitID, cmd.Kind)
	}
	return cmd, nil
}

func parseDirection(s string) (grid.Direction, error) {
	for _, d := range grid.Directions {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}
