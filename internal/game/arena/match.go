package arena

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// Outcome summarizes a finished match.
type Outcome struct {
	MatchID        uuid.UUID
	Scenario       string
	AttackerPolicy string
	DefenderPolicy string
	// Winner is "attackers", "defenders" or "draw".
	Winner string
	// Reason is "end_condition" or "max_ticks".
	Reason string
	Ticks  int
	Final  EndEnv
}

// Match is one playthrough of a scenario.
//
// Invariant: snap holds only living units; a Match is driven by one goroutine.
type Match struct {
	ID       uuid.UUID
	Scenario string
	snap     *ai.Snapshot
	policies map[combat.Side]ai.Policy
	names    map[combat.Side]string
	conn     grid.Connectivity
	end      *EndCondition
	maxTicks int
	tick     int
	events   []RoundEvent
	logger   *zap.Logger
}

// Tick returns the number of ticks played.
func (m *Match) Tick() int { return m.tick }

// Snapshot returns a copy of the current position.
func (m *Match) Snapshot() *ai.Snapshot { return m.snap.Clone() }

// Events returns every event recorded so far.
func (m *Match) Events() []RoundEvent { return append([]RoundEvent(nil), m.events...) }

// SideToAct returns the side whose policy plays the next tick. Attackers act
// on even ticks.
func (m *Match) SideToAct() combat.Side {
	if m.tick%2 == 0 {
		return combat.Attackers
	}
	return combat.Defenders
}

// Step plays one tick: the acting side's policy decides on a copy of the
// snapshot and its commands are resolved.
//
// Postcondition: Tick() has advanced by one unless an error is returned.
func (m *Match) Step(ctx context.Context) ([]RoundEvent, error) {
	side := m.SideToAct()
	cmds, err := m.policies[side].Decide(ctx, m.snap.Clone())
	if err != nil {
		return nil, fmt.Errorf("arena.Match.Step tick %d (%s): %w", m.tick, side, err)
	}
	events := ResolveCommands(m.snap, side, cmds, m.conn, m.tick)
	m.tick++
	m.events = append(m.events, events...)
	for _, ev := range events {
		if ev.Rejected {
			m.logger.Warn("command rejected", zap.Int("tick", ev.Tick), zap.Int("unit", ev.UnitID), zap.String("narrative", ev.Narrative))
			continue
		}
		m.logger.Debug("command resolved", zap.Int("tick", ev.Tick), zap.Stringer("side", ev.Side), zap.String("narrative", ev.Narrative))
	}
	return events, nil
}

// Run steps the match until the end condition holds or the tick cap is hit.
// Cancellation is honoured between ticks.
//
// Postcondition: on success Outcome.Ticks == Tick().
func (m *Match) Run(ctx context.Context) (Outcome, error) {
	for {
		env := envFor(m.snap, m.tick)
		met, err := m.end.Met(env)
		if err != nil {
			return Outcome{}, err
		}
		if met {
			return m.outcome(env, "end_condition"), nil
		}
		if m.tick >= m.maxTicks {
			return m.outcome(env, "max_ticks"), nil
		}
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("arena.Match.Run %s: %w", m.ID, err)
		}
		if _, err := m.Step(ctx); err != nil {
			return Outcome{}, err
		}
	}
}

func (m *Match) outcome(env EndEnv, reason string) Outcome {
	winner := "draw"
	switch {
	case env.DefendersAlive == 0 && env.AttackersAlive > 0:
		winner = combat.Attackers.String()
	case env.AttackersAlive == 0 && env.DefendersAlive > 0:
		winner = combat.Defenders.String()
	}
	return Outcome{
		MatchID:        m.ID,
		Scenario:       m.Scenario,
		AttackerPolicy: m.names[combat.Attackers],
		DefenderPolicy: m.names[combat.Defenders],
		Winner:         winner,
		Reason:         reason,
		Ticks:          m.tick,
		Final:          env,
	}
}
