package ai

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
)

// ParseStraightLine converts a configuration string to a combat.StraightLine.
func ParseStraightLine(s string) (combat.StraightLine, error) {
	switch s {
	case "euclidean", "":
		return combat.Euclidean, nil
	case "chebyshev":
		return combat.Chebyshev, nil
	default:
		return combat.Euclidean, fmt.Errorf("ai.ParseStraightLine: unknown metric %q", s)
	}
}

// FieldParamsFromConfig derives the battlefield settings from cfg.
//
// Precondition: cfg has passed config.Validate.
func FieldParamsFromConfig(cfg config.Config) (FieldParams, error) {
	conn, err := grid.ParseConnectivity(cfg.Search.Connectivity)
	if err != nil {
		return FieldParams{}, fmt.Errorf("ai.FieldParamsFromConfig: %w", err)
	}
	line, err := ParseStraightLine(cfg.Search.StraightLine)
	if err != nil {
		return FieldParams{}, fmt.Errorf("ai.FieldParamsFromConfig: %w", err)
	}
	w := cfg.Weights
	return FieldParams{
		Connectivity: conn,
		Eval: combat.Evaluation{
			Weights: combat.Weights{
				AttackerHP:    w.AttackerHP,
				DefenderHP:    w.DefenderHP,
				AttackerAlive: w.AttackerAlive,
				DefenderAlive: w.DefenderAlive,
				Distance:      w.Distance,
			},
			StraightLine:       line,
			UnreachablePenalty: cfg.Search.UnreachablePenalty,
		},
	}, nil
}

// SearcherFromConfig builds the Searcher described by cfg.Search.
func SearcherFromConfig(cfg config.SearchConfig, logger *zap.Logger) (*Searcher, error) {
	ordering, err := ParseOrdering(cfg.Ordering)
	if err != nil {
		return nil, fmt.Errorf("ai.SearcherFromConfig: %w", err)
	}
	if cfg.Plies < 1 {
		return nil, fmt.Errorf("ai.SearcherFromConfig: plies must be >= 1, got %d", cfg.Plies)
	}
	return NewSearcher(cfg.Plies, ordering, cfg.Pruning, logger), nil
}

// DefaultRegistry registers the built-in policies: "search", "greedy" and "idle".
//
// Postcondition: returns an error if cfg cannot be turned into search settings.
func DefaultRegistry(cfg config.Config, logger *zap.Logger) (*Registry, error) {
	params, err := FieldParamsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	searcher, err := SearcherFromConfig(cfg.Search, logger)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	_ = reg.Register("search", func(side combat.Side) Policy {
		return NewAgent(side, params, searcher, cfg.Search.TimeBudget, logger)
	})
	_ = reg.Register("greedy", func(side combat.Side) Policy {
		return NewGreedy(side, params.Connectivity)
	})
	_ = reg.Register("idle", func(combat.Side) Policy { return Idle{} })
	return reg, nil
}
