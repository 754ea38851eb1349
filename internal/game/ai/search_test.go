package ai_test

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

func rootNode(t testing.TB, w, h int, attackers, defenders []combat.Unit, blocked ...grid.Cell) combat.Node {
	t.Helper()
	m, err := grid.NewMap(w, h, grid.Four, blocked...)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	field := combat.NewBattlefield(m, combat.DefaultEvaluation())
	return combat.Node{Actions: combat.ActionMap{}, State: combat.NewState(field, attackers, defenders, true)}
}

func TestSearch_ZeroPliesReturnsRoot(t *testing.T) {
	root := rootNode(t, 6, 6,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 10, Damage: 2, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 5, Y: 5}, HP: 10, Damage: 3, Range: 3}})

	res := ai.NewSearcher(0, ai.BestFirst, true, nil).Search(context.Background(), root)
	if res.Choice.Node.State != root.State {
		t.Fatal("expected the root node back")
	}
	if res.Choice.Value != root.State.Utility() {
		t.Fatalf("expected root utility %d, got %d", root.State.Utility(), res.Choice.Value)
	}
	if len(res.Choice.Node.Actions) != 0 {
		t.Fatalf("expected no actions, got %s", res.Choice.Node.Actions)
	}
	if res.Stats.Expanded != 0 || res.Stats.Leaves != 1 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
}

func TestSearch_TerminalRootIsLeaf(t *testing.T) {
	root := rootNode(t, 4, 4,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 10, Damage: 2, Range: 1}}, nil)
	res := ai.NewSearcher(3, ai.BestFirst, true, nil).Search(context.Background(), root)
	if res.Choice.Node.State != root.State {
		t.Fatal("terminal root must be returned unchanged")
	}
}

func TestSearch_NoSuccessorsIsLeaf(t *testing.T) {
	// Attacker boxed into a corner by obstacles, defender out of range.
	root := rootNode(t, 4, 4,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 10, Damage: 2, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 3, Y: 3}, HP: 10, Damage: 3, Range: 1}},
		grid.Cell{X: 1, Y: 0}, grid.Cell{X: 0, Y: 1})
	for _, pruning := range []bool{true, false} {
		res := ai.NewSearcher(2, ai.BestFirst, pruning, nil).Search(context.Background(), root)
		if res.Choice.Node.State != root.State {
			t.Fatalf("pruning=%v: expected root back when no joint action exists", pruning)
		}
	}
}

func TestSearch_CancelledContextDegradesToLeaf(t *testing.T) {
	root := rootNode(t, 6, 6,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 10, Damage: 2, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 5, Y: 5}, HP: 10, Damage: 3, Range: 3}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := ai.NewSearcher(4, ai.BestFirst, true, nil).Search(ctx, root)
	if res.Choice.Node.State != root.State {
		t.Fatal("expected root when the context is already done")
	}
}

func TestSearch_TwoFootmenCloseOnArcher(t *testing.T) {
	a1 := combat.Unit{ID: 1, Pos: grid.Cell{X: 1, Y: 4}, HP: 10, Damage: 2, Range: 1}
	a2 := combat.Unit{ID: 2, Pos: grid.Cell{X: 1, Y: 6}, HP: 10, Damage: 2, Range: 1}
	d := combat.Unit{ID: 3, Pos: grid.Cell{X: 8, Y: 5}, HP: 10, Damage: 3, Range: 3}
	root := rootNode(t, 10, 10, []combat.Unit{a1, a2}, []combat.Unit{d})

	res := ai.NewSearcher(2, ai.BestFirst, true, nil).Search(context.Background(), root)
	child := res.Choice.Node
	if len(child.Actions) == 0 {
		t.Fatal("expected a root-level joint action")
	}
	closer := false
	for _, before := range root.State.Attackers() {
		after, ok := child.State.Unit(before.ID)
		if !ok {
			t.Fatalf("attacker %d vanished", before.ID)
		}
		if grid.Euclidean(after.Pos, d.Pos) < grid.Euclidean(before.Pos, d.Pos) {
			closer = true
		}
	}
	if !closer {
		t.Fatalf("expected at least one attacker to close distance, chose %s", child.Actions)
	}
}

func TestSearch_AttacksWhenInRange(t *testing.T) {
	root := rootNode(t, 5, 5,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 2, Y: 2}, HP: 10, Damage: 4, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 2, Y: 3}, HP: 4, Damage: 3, Range: 3}})
	res := ai.NewSearcher(1, ai.BestFirst, true, nil).Search(context.Background(), root)
	if got := res.Choice.Node.Actions[1]; got != combat.Attack(1, 2) {
		t.Fatalf("expected the killing blow, got %s", got)
	}
	if !res.Choice.Node.State.IsTerminal() {
		t.Fatal("expected the defender to be dead")
	}
}

func TestSearch_DefenderMinimizes(t *testing.T) {
	m, err := grid.NewMap(5, 5, grid.Four)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	field := combat.NewBattlefield(m, combat.DefaultEvaluation())
	state := combat.NewState(field,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 3, Damage: 1, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 2, Y: 0}, HP: 10, Damage: 5, Range: 3}}, false)
	root := combat.Node{Actions: combat.ActionMap{}, State: state}

	res := ai.NewSearcher(1, ai.BestFirst, true, nil).Search(context.Background(), root)
	if got := res.Choice.Node.Actions[2]; got != combat.Attack(2, 1) {
		t.Fatalf("expected the defender to shoot, got %s", got)
	}
	if res.Choice.Value >= state.Utility() {
		t.Fatalf("defender should lower the utility: root %d chose %d", state.Utility(), res.Choice.Value)
	}
}

func TestAlphaBeta_PrunesNoMoreThanMinimax(t *testing.T) {
	root := rootNode(t, 6, 6,
		[]combat.Unit{
			{ID: 1, Pos: grid.Cell{X: 1, Y: 1}, HP: 10, Damage: 2, Range: 1},
			{ID: 2, Pos: grid.Cell{X: 1, Y: 3}, HP: 10, Damage: 2, Range: 1},
		},
		[]combat.Unit{{ID: 3, Pos: grid.Cell{X: 4, Y: 2}, HP: 10, Damage: 3, Range: 3}})
	pruned := ai.NewSearcher(3, ai.BestFirst, true, nil).Search(context.Background(), root)
	full := ai.NewSearcher(3, ai.BestFirst, false, nil).Search(context.Background(), root)
	if pruned.Choice.Value != full.Choice.Value {
		t.Fatalf("alpha-beta %d != minimax %d", pruned.Choice.Value, full.Choice.Value)
	}
	if pruned.Stats.Leaves > full.Stats.Leaves {
		t.Fatalf("pruned search visited more leaves (%d) than minimax (%d)", pruned.Stats.Leaves, full.Stats.Leaves)
	}
	if pruned.Stats.Cutoffs == 0 {
		t.Fatal("expected at least one cutoff")
	}
}

func TestAlphaBeta_ExplicitWindow(t *testing.T) {
	root := rootNode(t, 5, 5,
		[]combat.Unit{{ID: 1, Pos: grid.Cell{X: 0, Y: 0}, HP: 10, Damage: 2, Range: 1}},
		[]combat.Unit{{ID: 2, Pos: grid.Cell{X: 4, Y: 4}, HP: 10, Damage: 3, Range: 3}})
	s := ai.NewSearcher(2, ai.Ascending, true, nil)
	got := s.AlphaBeta(context.Background(), root, 0, true, ai.SeedAlpha(), ai.SeedBeta())
	want := s.Minimax(context.Background(), root)
	if got.Value != want.Value {
		t.Fatalf("AlphaBeta %d != Minimax %d", got.Value, want.Value)
	}
}

func TestNewSearcher_PanicsOnNegativePlies(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	ai.NewSearcher(-1, ai.BestFirst, true, nil)
}

func TestProperty_AlphaBetaMatchesMinimax(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		const w, h = 5, 5
		var cells []grid.Cell
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				cells = append(cells, grid.Cell{X: x, Y: y})
			}
		}
		perm := rapid.Permutation(cells).Draw(rt, "cells")
		nA := rapid.IntRange(1, 2).Draw(rt, "attackers")
		nD := rapid.IntRange(1, 2).Draw(rt, "defenders")
		nObs := rapid.IntRange(0, 3).Draw(rt, "obstacles")

		unit := func(id int, c grid.Cell) combat.Unit {
			return combat.Unit{
				ID:     id,
				Pos:    c,
				HP:     rapid.IntRange(1, 6).Draw(rt, "hp"),
				Damage: rapid.IntRange(1, 4).Draw(rt, "damage"),
				Range:  rapid.IntRange(1, 3).Draw(rt, "range"),
			}
		}
		var attackers, defenders []combat.Unit
		i := 0
		for ; i < nA; i++ {
			attackers = append(attackers, unit(i+1, perm[i]))
		}
		for ; i < nA+nD; i++ {
			defenders = append(defenders, unit(i+1, perm[i]))
		}
		blocked := perm[i : i+nObs]

		m, err := grid.NewMap(w, h, grid.Four, blocked...)
		if err != nil {
			rt.Fatalf("NewMap: %v", err)
		}
		field := combat.NewBattlefield(m, combat.DefaultEvaluation())
		attackersToMove := rapid.Bool().Draw(rt, "attackersToMove")
		root := combat.Node{Actions: combat.ActionMap{}, State: combat.NewState(field, attackers, defenders, attackersToMove)}

		plies := rapid.IntRange(0, 2).Draw(rt, "plies")
		ordering := rapid.SampledFrom([]ai.Ordering{ai.BestFirst, ai.Ascending}).Draw(rt, "ordering")

		pruned := ai.NewSearcher(plies, ordering, true, nil).Search(context.Background(), root)
		full := ai.NewSearcher(plies, ordering, false, nil).Search(context.Background(), root)
		if pruned.Choice.Value != full.Choice.Value {
			rt.Fatalf("alpha-beta %d != minimax %d (plies=%d ordering=%s)", pruned.Choice.Value, full.Choice.Value, plies, ordering)
		}
	})
}
