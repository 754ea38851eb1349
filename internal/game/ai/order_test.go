package ai_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

func utilities(children []combat.Node) []int {
	out := make([]int, len(children))
	for i, c := range children {
		out[i] = c.State.Utility()
	}
	return out
}

func sampleChildren(t testing.TB) []combat.Node {
	root := rootNode(t, 6, 6,
		[]combat.Unit{
			{ID: 1, Pos: grid.Cell{X: 2, Y: 2}, HP: 10, Damage: 2, Range: 1},
			{ID: 2, Pos: grid.Cell{X: 3, Y: 4}, HP: 10, Damage: 2, Range: 1},
		},
		[]combat.Unit{{ID: 3, Pos: grid.Cell{X: 3, Y: 2}, HP: 10, Damage: 3, Range: 3}})
	return root.State.Successors()
}

func TestOrder_BestFirstMaximizerDescending(t *testing.T) {
	children := sampleChildren(t)
	ai.Order(children, true, ai.BestFirst)
	u := utilities(children)
	for i := 1; i < len(u); i++ {
		if u[i-1] < u[i] {
			t.Fatalf("not descending at %d: %v", i, u)
		}
	}
}

func TestOrder_BestFirstMinimizerAscending(t *testing.T) {
	children := sampleChildren(t)
	ai.Order(children, false, ai.BestFirst)
	u := utilities(children)
	for i := 1; i < len(u); i++ {
		if u[i-1] > u[i] {
			t.Fatalf("not ascending at %d: %v", i, u)
		}
	}
}

func TestOrder_AscendingIgnoresSide(t *testing.T) {
	children := sampleChildren(t)
	ai.Order(children, true, ai.Ascending)
	u := utilities(children)
	for i := 1; i < len(u); i++ {
		if u[i-1] > u[i] {
			t.Fatalf("not ascending at %d: %v", i, u)
		}
	}
}

func TestOrder_StableForEqualUtilities(t *testing.T) {
	children := sampleChildren(t)
	before := make(map[int][]string)
	for _, c := range children {
		u := c.State.Utility()
		before[u] = append(before[u], c.Actions.String())
	}
	ai.Order(children, true, ai.BestFirst)
	after := make(map[int][]string)
	for _, c := range children {
		u := c.State.Utility()
		after[u] = append(after[u], c.Actions.String())
	}
	for u, seq := range before {
		for i := range seq {
			if seq[i] != after[u][i] {
				t.Fatalf("utility %d: order changed %v -> %v", u, seq, after[u])
			}
		}
	}
}

func TestParseOrdering(t *testing.T) {
	for in, want := range map[string]ai.Ordering{"best_first": ai.BestFirst, "ascending": ai.Ascending, " Ascending ": ai.Ascending} {
		got, err := ai.ParseOrdering(in)
		if err != nil || got != want {
			t.Fatalf("ParseOrdering(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ai.ParseOrdering("random"); err == nil {
		t.Fatal("expected error for unknown ordering")
	}
}

func TestProperty_OrderIsPermutation(t *testing.T) {
	children := sampleChildren(t)
	rapid.Check(t, func(rt *rapid.T) {
		cp := append([]combat.Node(nil), children...)
		maximizing := rapid.Bool().Draw(rt, "maximizing")
		mode := rapid.SampledFrom([]ai.Ordering{ai.BestFirst, ai.Ascending}).Draw(rt, "mode")
		ai.Order(cp, maximizing, mode)
		seen := make(map[string]int)
		for _, c := range children {
			seen[c.Actions.String()]++
		}
		for _, c := range cp {
			seen[c.Actions.String()]--
		}
		for k, n := range seen {
			if n != 0 {
				rt.Fatalf("child %s count off by %d", k, n)
			}
		}
	})
}
