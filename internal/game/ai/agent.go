package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Command is a single unit order in the host's vocabulary.
type Command struct {
	Kind      string // "move" or "attack"
	UnitID    int
	Direction grid.Direction // meaningful for "move"
	TargetID  int            // meaningful for "attack"
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Kind == "attack" {
		return fmt.Sprintf("%d attack %d", c.UnitID, c.TargetID)
	}
	return fmt.Sprintf("%d %s %s", c.UnitID, c.Kind, c.Direction)
}

// CommandFor translates a simulated action into a host command.
//
// Postcondition: returns false for ActionUnknown.
func CommandFor(a combat.Action) (Command, bool) {
	switch a.Kind {
	case combat.ActionMove:
		return Command{Kind: "move", UnitID: a.UnitID, Direction: a.Direction}, true
	case combat.ActionAttack:
		return Command{Kind: "attack", UnitID: a.UnitID, TargetID: a.TargetID}, true
	case combat.ActionUnknown:
	}
	return Command{}, false
}

// Commands translates a joint action. Invalid actions are dropped.
func Commands(actions combat.ActionMap) map[int]Command {
	out := make(map[int]Command, len(actions))
	for _, id := range actions.UnitIDs() {
		if cmd, ok := CommandFor(actions[id]); ok {
			out[id] = cmd
		}
	}
	return out
}

// Policy chooses the commands for one side's units at one decision point.
type Policy interface {
	// Decide returns at most one command per living unit of the policy's side.
	// An empty map means every unit passes.
	Decide(ctx context.Context, snap *Snapshot) (map[int]Command, error)
}

// Agent is the search-driven Policy.
//
// Invariant: searcher must not be nil.
type Agent struct {
	side     combat.Side
	params   FieldParams
	searcher *Searcher
	budget   time.Duration
	logger   *zap.Logger
}

// NewAgent constructs an Agent playing side.
//
// Precondition: searcher must not be nil; budget must be >= 0 (0 disables it).
// Postcondition: a nil logger is replaced by a no-op logger.
func NewAgent(side combat.Side, params FieldParams, searcher *Searcher, budget time.Duration, logger *zap.Logger) *Agent {
	if searcher == nil {
		panic("ai.NewAgent: searcher must not be nil")
	}
	return &Agent{
		side:     side,
		params:   params,
		searcher: searcher,
		budget:   budget,
		logger:   observability.OrNop(logger).With(zap.Stringer("side", side)),
	}
}

// Side returns the side this agent plays.
func (a *Agent) Side() combat.Side { return a.side }

// Decide builds the root state from snap and returns the commands of the
// root-level joint action chosen by the search.
//
// Postcondition: returns an error only for a malformed snapshot; a position
// with no legal joint action yields an empty map.
func (a *Agent) Decide(ctx context.Context, snap *Snapshot) (map[int]Command, error) {
	field, err := BuildField(snap, a.params)
	if err != nil {
		return nil, fmt.Errorf("ai.Agent.Decide: %w", err)
	}
	root, err := BuildCombatState(snap, field, a.side == combat.Attackers)
	if err != nil {
		return nil, fmt.Errorf("ai.Agent.Decide: %w", err)
	}

	if a.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.budget)
		defer cancel()
	}

	res := a.searcher.Search(ctx, root)
	if ctx.Err() != nil {
		a.logger.Warn("search budget exhausted; deepest branches evaluated early",
			zap.Duration("budget", a.budget),
			zap.Duration("elapsed", res.Elapsed),
		)
	}
	cmds := Commands(res.Choice.Node.Actions)
	a.logger.Debug("decision",
		zap.Int("value", res.Choice.Value),
		zap.Int("root_utility", root.State.Utility()),
		zap.Int("commands", len(cmds)),
	)
	return cmds, nil
}

// Idle is a Policy whose units always pass.
type Idle struct{}

// Decide always returns an empty command map.
func (Idle) Decide(context.Context, *Snapshot) (map[int]Command, error) {
	return map[int]Command{}, nil
}
