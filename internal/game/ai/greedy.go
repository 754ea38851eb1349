package ai

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/pathfind"
)

// Greedy is a one-ply baseline Policy: each unit attacks the weakest enemy in
// range, and otherwise takes the first step of a shortest path toward the
// nearest enemy.
type Greedy struct {
	side combat.Side
	conn grid.Connectivity
}

// NewGreedy constructs a Greedy policy playing side on maps with the given
// connectivity.
func NewGreedy(side combat.Side, conn grid.Connectivity) *Greedy {
	return &Greedy{side: side, conn: conn}
}

// Decide returns one command per unit that can act.
//
// Postcondition: no two move commands share a destination.
func (g *Greedy) Decide(_ context.Context, snap *Snapshot) (map[int]Command, error) {
	m, err := grid.NewMap(snap.Width, snap.Height, g.conn, snap.Blocked...)
	if err != nil {
		return nil, fmt.Errorf("ai.Greedy.Decide: %w", err)
	}
	own, enemies := Living(snap.Attackers), Living(snap.Defenders)
	if g.side == combat.Defenders {
		own, enemies = enemies, own
	}

	cmds := make(map[int]Command, len(own))
	if len(enemies) == 0 {
		return cmds, nil
	}
	reserved := make(map[grid.Cell]bool)
	for _, u := range own {
		if target, ok := weakestInRange(m, u, enemies); ok {
			cmds[u.ID] = Command{Kind: "attack", UnitID: u.ID, TargetID: target.ID}
			continue
		}
		occupied := snap.Occupied(u.ID)
		for c := range reserved {
			occupied[c] = true
		}
		goal := nearest(m, u, enemies)
		d, ok := pathfind.NextStep(m, u.Cell(), goal.Cell(), occupied)
		if !ok {
			continue
		}
		reserved[u.Cell().Step(d)] = true
		cmds[u.ID] = Command{Kind: "move", UnitID: u.ID, Direction: d}
	}
	return cmds, nil
}

func weakestInRange(m *grid.Map, u UnitSnapshot, enemies []UnitSnapshot) (UnitSnapshot, bool) {
	var best UnitSnapshot
	found := false
	for _, e := range enemies {
		if m.Distance(u.Cell(), e.Cell()) > u.Range {
			continue
		}
		if !found || e.HP < best.HP {
			best, found = e, true
		}
	}
	return best, found
}

func nearest(m *grid.Map, u UnitSnapshot, enemies []UnitSnapshot) UnitSnapshot {
	best := enemies[0]
	for _, e := range enemies[1:] {
		if m.Distance(u.Cell(), e.Cell()) < m.Distance(u.Cell(), best.Cell()) {
			best = e
		}
	}
	return best
}
