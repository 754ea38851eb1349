package arena

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Settings configure every match an Engine starts.
type Settings struct {
	AttackerPolicy string
	DefenderPolicy string
	Connectivity   grid.Connectivity
	MaxTicks       int
	EndCondition   string
}

// Recorder persists finished matches.
type Recorder interface {
	Record(ctx context.Context, out Outcome) error
}

// Engine starts matches and tracks the ones in progress, keyed by match ID.
// All methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	matches  map[uuid.UUID]*Match
	registry *ai.Registry
	settings Settings
	end      *EndCondition
	roller   *dice.Roller
	recorder Recorder
	logger   *zap.Logger
}

// NewEngine creates an Engine.
//
// Precondition: registry and roller must not be nil; settings.MaxTicks >= 1.
// Postcondition: returns an error if the end condition does not compile or a
// policy name is not registered.
func NewEngine(registry *ai.Registry, settings Settings, roller *dice.Roller, logger *zap.Logger) (*Engine, error) {
	if registry == nil || roller == nil {
		panic("arena.NewEngine: registry and roller must not be nil")
	}
	if settings.MaxTicks < 1 {
		return nil, fmt.Errorf("arena.NewEngine: max ticks must be >= 1, got %d", settings.MaxTicks)
	}
	end, err := CompileEndCondition(settings.EndCondition)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{settings.AttackerPolicy, settings.DefenderPolicy} {
		if _, ok := registry.PolicyFor(name, combat.Attackers); !ok {
			return nil, fmt.Errorf("arena.NewEngine: unknown policy %q (have %v)", name, registry.Names())
		}
	}
	return &Engine{
		matches:  make(map[uuid.UUID]*Match),
		registry: registry,
		settings: settings,
		end:      end,
		roller:   roller,
		logger:   observability.OrNop(logger),
	}, nil
}

// SetRecorder makes Play hand every finished match to r. A nil r disables recording.
func (e *Engine) SetRecorder(r Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// StartMatch materializes sc and registers a new match for it.
//
// Postcondition: the returned match is retrievable via GetMatch until EndMatch.
func (e *Engine) StartMatch(sc *scenario.Scenario) (*Match, error) {
	snap, err := sc.Materialize(e.roller)
	if err != nil {
		return nil, fmt.Errorf("arena.StartMatch: %w", err)
	}
	attackers, _ := e.registry.PolicyFor(e.settings.AttackerPolicy, combat.Attackers)
	defenders, _ := e.registry.PolicyFor(e.settings.DefenderPolicy, combat.Defenders)

	id := uuid.New()
	m := &Match{
		ID:       id,
		Scenario: sc.ID,
		snap:     snap,
		policies: map[combat.Side]ai.Policy{combat.Attackers: attackers, combat.Defenders: defenders},
		names:    map[combat.Side]string{combat.Attackers: e.settings.AttackerPolicy, combat.Defenders: e.settings.DefenderPolicy},
		conn:     e.settings.Connectivity,
		end:      e.end,
		maxTicks: e.settings.MaxTicks,
		logger:   e.logger.With(zap.String("match", id.String()), zap.String("scenario", sc.ID)),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.matches[id] = m
	return m, nil
}

// GetMatch returns the active match with id.
//
// Postcondition: Returns (match, true) if found, or (nil, false) otherwise.
func (e *Engine) GetMatch(id uuid.UUID) (*Match, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.matches[id]
	return m, ok
}

// EndMatch forgets the match with id.
func (e *Engine) EndMatch(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.matches, id)
}

// Active returns the number of matches in progress.
func (e *Engine) Active() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.matches)
}

// Play runs n matches of each scenario sequentially and returns their outcomes.
//
// Postcondition: on error, the outcomes completed so far are returned with it.
func (e *Engine) Play(ctx context.Context, scenarios []*scenario.Scenario, n int) ([]Outcome, error) {
	var outcomes []Outcome
	for _, sc := range scenarios {
		for i := 0; i < n; i++ {
			m, err := e.StartMatch(sc)
			if err != nil {
				return outcomes, err
			}
			out, err := m.Run(ctx)
			e.EndMatch(m.ID)
			if err != nil {
				return outcomes, err
			}
			e.logger.Info("match finished",
				zap.String("match", out.MatchID.String()),
				zap.String("scenario", out.Scenario),
				zap.String("winner", out.Winner),
				zap.String("reason", out.Reason),
				zap.Int("ticks", out.Ticks),
				zap.Int("attacker_hp", out.Final.AttackerHP),
				zap.Int("defender_hp", out.Final.DefenderHP),
			)
			outcomes = append(outcomes, out)
			if err := e.record(ctx, out); err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}

func (e *Engine) record(ctx context.Context, out Outcome) error {
	e.mu.RLock()
	r := e.recorder
	e.mu.RUnlock()
	if r == nil {
		return nil
	}
	if err := r.Record(ctx, out); err != nil {
		return fmt.Errorf("arena.Play: recording %s: %w", out.MatchID, err)
	}
	return nil
}

// Tally counts wins per side and draws.
func Tally(outcomes []Outcome) map[string]int {
	out := map[string]int{}
	for _, o := range outcomes {
		out[o.Winner]++
	}
	return out
}
