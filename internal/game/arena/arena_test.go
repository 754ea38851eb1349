package arena_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/arena"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/scripting"
)

const untilWiped = "AttackersAlive == 0 || DefendersAlive == 0"

func TestCompileEndCondition(t *testing.T) {
	c, err := arena.CompileEndCondition("DefendersAlive == 0 || Tick >= 10")
	require.NoError(t, err)
	assert.Equal(t, "DefendersAlive == 0 || Tick >= 10", c.String())

	met, err := c.Met(arena.EndEnv{Tick: 3, DefendersAlive: 1})
	require.NoError(t, err)
	assert.False(t, met)
	met, err = c.Met(arena.EndEnv{Tick: 10, DefendersAlive: 1})
	require.NoError(t, err)
	assert.True(t, met)

	_, err = arena.CompileEndCondition("Tick + 1")
	assert.Error(t, err, "non-boolean")
	_, err = arena.CompileEndCondition("Mana > 3")
	assert.Error(t, err, "unknown identifier")
}

func duelSnapshot() *ai.Snapshot {
	return &ai.Snapshot{
		Width: 5, Height: 5,
		Blocked: []grid.Cell{{X: 0, Y: 3}},
		Attackers: []ai.UnitSnapshot{
			{ID: 1, X: 1, Y: 1, HP: 3, Damage: 2, Range: 1},
			{ID: 2, X: 3, Y: 1, HP: 10, Damage: 2, Range: 1},
		},
		Defenders: []ai.UnitSnapshot{
			{ID: 3, X: 1, Y: 2, HP: 2, Damage: 3, Range: 3},
		},
	}
}

func TestResolveCommands_MovesAndAttacks(t *testing.T) {
	snap := duelSnapshot()
	events := arena.ResolveCommands(snap, combat.Attackers, map[int]ai.Command{
		1: {Kind: "attack", UnitID: 1, TargetID: 3},
		2: {Kind: "move", UnitID: 2, Direction: grid.South},
	}, grid.Four, 0)

	require.Len(t, events, 2)
	assert.False(t, events[0].Rejected)
	assert.True(t, events[0].Killed)
	assert.False(t, events[1].Rejected)
	assert.Empty(t, snap.Defenders, "defender at 0 HP is removed")
	u, ok := snap.Find(2)
	require.True(t, ok)
	assert.Equal(t, grid.Cell{X: 3, Y: 2}, u.Cell())
}

func TestResolveCommands_Simultaneous(t *testing.T) {
	snap := duelSnapshot()
	snap.Attackers[1].X = 2
	// Unit 1 vacates (1,1) but the cell still counts as held for this tick.
	events := arena.ResolveCommands(snap, combat.Attackers, map[int]ai.Command{
		1: {Kind: "move", UnitID: 1, Direction: grid.North},
		2: {Kind: "move", UnitID: 2, Direction: grid.West},
	}, grid.Four, 0)
	require.Len(t, events, 2)
	assert.False(t, events[0].Rejected)
	assert.True(t, events[1].Rejected)

	// Both archer shots land although the first already kills.
	snap = duelSnapshot()
	snap.Defenders = append(snap.Defenders, ai.UnitSnapshot{ID: 4, X: 2, Y: 2, HP: 5, Damage: 3, Range: 2})
	events = arena.ResolveCommands(snap, combat.Defenders, map[int]ai.Command{
		3: {Kind: "attack", UnitID: 3, TargetID: 1},
		4: {Kind: "attack", UnitID: 4, TargetID: 1},
	}, grid.Four, 1)
	require.Len(t, events, 2)
	assert.True(t, events[0].Killed)
	assert.False(t, events[1].Rejected)
	_, alive := snap.Find(1)
	assert.False(t, alive)
	assert.Len(t, snap.Attackers, 1)
}

func TestResolveCommands_Rejections(t *testing.T) {
	cases := map[string]struct {
		side combat.Side
		cmd  ai.Command
		key  int
	}{
		"off map":       {combat.Attackers, ai.Command{Kind: "move", UnitID: 2, Direction: grid.North}, 2},
		"into unit":     {combat.Attackers, ai.Command{Kind: "move", UnitID: 1, Direction: grid.South}, 1},
		"out of range":  {combat.Attackers, ai.Command{Kind: "attack", UnitID: 2, TargetID: 3}, 2},
		"friendly fire": {combat.Attackers, ai.Command{Kind: "attack", UnitID: 1, TargetID: 2}, 1},
		"wrong side":    {combat.Defenders, ai.Command{Kind: "move", UnitID: 1, Direction: grid.West}, 1},
		"unknown kind":  {combat.Attackers, ai.Command{Kind: "dance", UnitID: 1}, 1},
		"mislabelled":   {combat.Attackers, ai.Command{Kind: "move", UnitID: 2, Direction: grid.West}, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			snap := duelSnapshot()
			if name == "off map" {
				snap.Attackers[1].Y = 0
			}
			before := snap.Clone()
			events := arena.ResolveCommands(snap, tc.side, map[int]ai.Command{tc.key: tc.cmd}, grid.Four, 0)
			require.Len(t, events, 1)
			assert.True(t, events[0].Rejected, events[0].Narrative)
			assert.Equal(t, before, snap)
		})
	}
}

func TestResolveCommands_SameDestination(t *testing.T) {
	snap := &ai.Snapshot{
		Width: 5, Height: 5,
		Attackers: []ai.UnitSnapshot{
			{ID: 1, X: 1, Y: 2, HP: 5, Damage: 1, Range: 1},
			{ID: 2, X: 3, Y: 2, HP: 5, Damage: 1, Range: 1},
		},
		Defenders: []ai.UnitSnapshot{{ID: 3, X: 4, Y: 4, HP: 5, Damage: 1, Range: 1}},
	}
	events := arena.ResolveCommands(snap, combat.Attackers, map[int]ai.Command{
		1: {Kind: "move", UnitID: 1, Direction: grid.East},
		2: {Kind: "move", UnitID: 2, Direction: grid.West},
	}, grid.Four, 0)
	require.Len(t, events, 2)
	assert.False(t, events[0].Rejected)
	assert.True(t, events[1].Rejected)
}

func TestResolveCommands_PanicsOnInvalidSnapshot(t *testing.T) {
	cmds := map[int]ai.Command{1: {Kind: "move", UnitID: 1, Direction: grid.East}}
	assert.Panics(t, func() {
		snap := duelSnapshot()
		snap.Width = 0
		arena.ResolveCommands(snap, combat.Attackers, cmds, grid.Four, 0)
	})
	assert.Panics(t, func() {
		snap := duelSnapshot()
		snap.Blocked = append(snap.Blocked, grid.Cell{X: 9, Y: 9})
		arena.ResolveCommands(snap, combat.Attackers, cmds, grid.Four, 0)
	})
}

func TestProperty_ResolveCommands_NeverStacksUnits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		snap := &ai.Snapshot{
			Width: 4, Height: 4,
			Attackers: []ai.UnitSnapshot{
				{ID: 1, X: 1, Y: 1, HP: 5, Damage: 1, Range: 1},
				{ID: 2, X: 2, Y: 1, HP: 5, Damage: 1, Range: 1},
			},
			Defenders: []ai.UnitSnapshot{
				{ID: 3, X: 1, Y: 2, HP: 5, Damage: 1, Range: 1},
				{ID: 4, X: 2, Y: 2, HP: 5, Damage: 1, Range: 1},
			},
		}
		side := rapid.SampledFrom([]combat.Side{combat.Attackers, combat.Defenders}).Draw(rt, "side")
		cmds := map[int]ai.Command{}
		for id := 1; id <= 4; id++ {
			if rapid.Bool().Draw(rt, "acts") {
				cmds[id] = ai.Command{Kind: "move", UnitID: id, Direction: rapid.SampledFrom(grid.Directions[:]).Draw(rt, "dir")}
			}
		}
		arena.ResolveCommands(snap, side, cmds, grid.Four, 0)
		seen := map[grid.Cell]bool{}
		for _, u := range append(snap.Attackers, snap.Defenders...) {
			if seen[u.Cell()] {
				rt.Fatalf("two units share %s", u.Cell())
			}
			seen[u.Cell()] = true
		}
	})
}

func duelScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ID: "duel", Width: 5, Height: 5,
		Attackers: []ai.UnitSnapshot{{ID: 1, X: 0, Y: 0, HP: 10, Damage: 2, Range: 1}},
		Defenders: []ai.UnitSnapshot{{ID: 2, X: 3, Y: 3, HP: 4, Damage: 1, Range: 1}},
	}
}

func registry(t *testing.T) *ai.Registry {
	t.Helper()
	reg := ai.NewRegistry()
	params := ai.FieldParams{Connectivity: grid.Four, Eval: combat.DefaultEvaluation()}
	searcher := ai.NewSearcher(2, ai.BestFirst, true, nil)
	require.NoError(t, reg.Register("search", func(side combat.Side) ai.Policy {
		return ai.NewAgent(side, params, searcher, 0, nil)
	}))
	require.NoError(t, reg.Register("greedy", func(side combat.Side) ai.Policy { return ai.NewGreedy(side, grid.Four) }))
	require.NoError(t, reg.Register("idle", func(combat.Side) ai.Policy { return ai.Idle{} }))
	require.NoError(t, reg.Register("broken", func(combat.Side) ai.Policy { return brokenPolicy{} }))
	script, err := scripting.LoadScript(filepath.Join("..", "..", "..", "content", "scripts", "focus_fire.lua"),
		scripting.ScriptOptions{Connectivity: grid.Four})
	require.NoError(t, err)
	require.NoError(t, reg.Register("script", script.Policy))
	return reg
}

type brokenPolicy struct{}

func (brokenPolicy) Decide(context.Context, *ai.Snapshot) (map[int]ai.Command, error) {
	return nil, errors.New("sensor failure")
}

func engine(t *testing.T, attacker, defender string, maxTicks int) *arena.Engine {
	t.Helper()
	e, err := arena.NewEngine(registry(t), arena.Settings{
		AttackerPolicy: attacker,
		DefenderPolicy: defender,
		Connectivity:   grid.Four,
		MaxTicks:       maxTicks,
		EndCondition:   untilWiped,
	}, dice.NewRoller(dice.NewSeededSource(1), nil), nil)
	require.NoError(t, err)
	return e
}

func TestMatch_GreedyBeatsIdle(t *testing.T) {
	e := engine(t, "greedy", "idle", 40)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "attackers", out.Winner)
	assert.Equal(t, "end_condition", out.Reason)
	assert.Equal(t, m.Tick(), out.Ticks)
	assert.Equal(t, 0, out.Final.DefendersAlive)
	assert.NotEmpty(t, m.Events())
}

func TestMatch_SearchBeatsIdle(t *testing.T) {
	e := engine(t, "search", "idle", 40)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "attackers", out.Winner)
	for _, ev := range m.Events() {
		assert.False(t, ev.Rejected, "search agent issued an illegal command: %s", ev.Narrative)
	}
}

func TestMatch_ScriptBeatsIdle(t *testing.T) {
	e := engine(t, "script", "idle", 40)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "attackers", out.Winner)
}

func TestMatch_MaxTicksDraw(t *testing.T) {
	e := engine(t, "idle", "idle", 6)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	out, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "draw", out.Winner)
	assert.Equal(t, "max_ticks", out.Reason)
	assert.Equal(t, 6, out.Ticks)
}

func TestMatch_SidesAlternate(t *testing.T) {
	e := engine(t, "idle", "idle", 6)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	assert.Equal(t, combat.Attackers, m.SideToAct())
	_, err = m.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, combat.Defenders, m.SideToAct())
}

func TestMatch_PolicyErrorPropagates(t *testing.T) {
	e := engine(t, "broken", "idle", 6)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	_, err = m.Run(context.Background())
	assert.ErrorContains(t, err, "sensor failure")
}

func TestMatch_CancelledContext(t *testing.T) {
	e := engine(t, "idle", "idle", 6)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_Rejects(t *testing.T) {
	roller := dice.NewRoller(dice.NewSeededSource(1), nil)
	base := arena.Settings{AttackerPolicy: "idle", DefenderPolicy: "idle", MaxTicks: 5, EndCondition: untilWiped}

	bad := base
	bad.DefenderPolicy = "telepathy"
	_, err := arena.NewEngine(registry(t), bad, roller, nil)
	assert.Error(t, err)

	bad = base
	bad.EndCondition = "Tick +"
	_, err = arena.NewEngine(registry(t), bad, roller, nil)
	assert.Error(t, err)

	bad = base
	bad.MaxTicks = 0
	_, err = arena.NewEngine(registry(t), bad, roller, nil)
	assert.Error(t, err)
}

func TestEngine_TracksMatches(t *testing.T) {
	e := engine(t, "idle", "idle", 2)
	m, err := e.StartMatch(duelScenario())
	require.NoError(t, err)
	assert.Equal(t, 1, e.Active())
	got, ok := e.GetMatch(m.ID)
	require.True(t, ok)
	assert.Same(t, m, got)
	e.EndMatch(m.ID)
	_, ok = e.GetMatch(m.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, e.Active())
}

func TestEngine_Play(t *testing.T) {
	e := engine(t, "greedy", "idle", 40)
	other := duelScenario()
	other.ID = "duel2"
	outcomes, err := e.Play(context.Background(), []*scenario.Scenario{duelScenario(), other}, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	assert.Equal(t, map[string]int{"attackers": 4}, arena.Tally(outcomes))
	assert.NotEqual(t, outcomes[0].MatchID, outcomes[1].MatchID)
	assert.Equal(t, 0, e.Active())
}

type memRecorder struct {
	got []arena.Outcome
	err error
}

func (r *memRecorder) Record(_ context.Context, out arena.Outcome) error {
	r.got = append(r.got, out)
	return r.err
}

func TestEngine_PlayRecordsOutcomes(t *testing.T) {
	e := engine(t, "greedy", "idle", 40)
	rec := &memRecorder{}
	e.SetRecorder(rec)
	outcomes, err := e.Play(context.Background(), []*scenario.Scenario{duelScenario()}, 2)
	require.NoError(t, err)
	assert.Equal(t, outcomes, rec.got)
	assert.Equal(t, "greedy", rec.got[0].AttackerPolicy)
	assert.Equal(t, "idle", rec.got[0].DefenderPolicy)
}

func TestEngine_PlayStopsOnRecordError(t *testing.T) {
	e := engine(t, "greedy", "idle", 40)
	e.SetRecorder(&memRecorder{err: errors.New("disk full")})
	outcomes, err := e.Play(context.Background(), []*scenario.Scenario{duelScenario()}, 3)
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, outcomes, 1)
}
