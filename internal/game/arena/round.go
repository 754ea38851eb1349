package arena

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// RoundEvent records what happened to one command during a tick.
type RoundEvent struct {
	Tick      int
	Side      combat.Side
	UnitID    int
	Command   ai.Command
	Rejected  bool // the command was illegal and ignored
	Killed    bool // the attack reduced its target to 0 HP or below
	Narrative string
}

// ResolveCommands applies side's commands to snap simultaneously: every
// command is checked and resolved against the positions and hit points at the
// start of the tick. Units reduced to 0 HP are removed afterwards.
//
// A command is rejected when its unit is not a living member of side, when a
// move leaves the map, enters an obstacle or a cell held by a unit at the
// start of the tick, or duplicates another accepted move's destination, or
// when an attack targets a unit that is not a living enemy in range.
//
// Precondition: snap must not be nil; its dimensions must be positive and its
// obstacles in bounds.
// Postcondition: returns one event per command in ascending unit-ID order;
// snap rosters hold only living units.
func ResolveCommands(snap *ai.Snapshot, side combat.Side, cmds map[int]ai.Command, conn grid.Connectivity, tick int) []RoundEvent {
	m, err := grid.NewMap(snap.Width, snap.Height, conn, snap.Blocked...)
	if err != nil {
		panic(fmt.Sprintf("arena.ResolveCommands: %v", err))
	}
	own, enemies := &snap.Attackers, &snap.Defenders
	if side == combat.Defenders {
		own, enemies = enemies, own
	}
	occupied := snap.Occupied(-1)

	ids := make([]int, 0, len(cmds))
	for id := range cmds {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var events []RoundEvent
	moves := make(map[int]grid.Cell)
	claimed := make(map[grid.Cell]bool)
	damage := make(map[int]int)

	for _, id := range ids {
		cmd := cmds[id]
		ev := RoundEvent{Tick: tick, Side: side, UnitID: id, Command: cmd}
		actor, ok := find(*own, id)
		if !ok || cmd.UnitID != id {
			ev.Rejected = true
			ev.Narrative = fmt.Sprintf("unit %d cannot act for the %s.", id, side)
			events = append(events, ev)
			continue
		}

		switch cmd.Kind {
		case "move":
			dest := actor.Cell().Step(cmd.Direction)
			switch {
			case !m.Passable(dest):
				ev.Rejected = true
				ev.Narrative = fmt.Sprintf("unit %d cannot move %s into %s.", id, cmd.Direction, dest)
			case occupied[dest] || claimed[dest]:
				ev.Rejected = true
				ev.Narrative = fmt.Sprintf("unit %d is blocked moving %s; %s is taken.", id, cmd.Direction, dest)
			default:
				moves[id] = dest
				claimed[dest] = true
				ev.Narrative = fmt.Sprintf("unit %d moves %s to %s.", id, cmd.Direction, dest)
			}
		case "attack":
			target, ok := find(*enemies, cmd.TargetID)
			switch {
			case !ok:
				ev.Rejected = true
				ev.Narrative = fmt.Sprintf("unit %d attacks but unit %d is not a living enemy.", id, cmd.TargetID)
			case m.Distance(actor.Cell(), target.Cell()) > actor.Range:
				ev.Rejected = true
				ev.Narrative = fmt.Sprintf("unit %d attacks but unit %d is out of range.", id, cmd.TargetID)
			default:
				damage[target.ID] += actor.Damage
				ev.Killed = target.HP-damage[target.ID] <= 0
				ev.Narrative = fmt.Sprintf("unit %d hits unit %d for %d.", id, target.ID, actor.Damage)
			}
		default:
			ev.Rejected = true
			ev.Narrative = fmt.Sprintf("unit %d issued unknown command %q.", id, cmd.Kind)
		}
		events = append(events, ev)
	}

	for i := range *own {
		if dest, ok := moves[(*own)[i].ID]; ok {
			(*own)[i].X, (*own)[i].Y = dest.X, dest.Y
		}
	}
	for i := range *enemies {
		(*enemies)[i].HP -= damage[(*enemies)[i].ID]
	}
	snap.Attackers = ai.Living(snap.Attackers)
	snap.Defenders = ai.Living(snap.Defenders)
	return events
}

func find(units []ai.UnitSnapshot, id int) (ai.UnitSnapshot, bool) {
	for _, u := range units {
		if u.ID == id && u.HP > 0 {
			return u, true
		}
	}
	return ai.UnitSnapshot{}, false
}
