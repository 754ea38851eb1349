// Package ai selects joint actions for a team of units by adversarial
// game-tree search over simulated combat states.
//
// The attackers are always the maximizing side: utilities are computed from
// their point of view, and a defender-side agent minimizes the same value.
package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/game/combat"
	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Choice is a node paired with the value backed up to it by the search.
// Value may differ from Node.State.Utility() for interior nodes.
type Choice struct {
	Node  combat.Node
	Value int
}

// Stats counts the work done by one search.
type Stats struct {
	Expanded int // nodes whose successors were generated
	Leaves   int // nodes evaluated statically
	Cutoffs  int // alpha-beta prunes
}

// Result is the outcome of Searcher.Search.
type Result struct {
	Choice  Choice
	Stats   Stats
	Elapsed time.Duration
}

// Searcher runs depth-limited minimax with optional alpha-beta pruning.
//
// Invariant: plies >= 0. A Searcher holds no per-search state and may be
// shared between goroutines.
type Searcher struct {
	plies    int
	ordering Ordering
	pruning  bool
	logger   *zap.Logger
}

// NewSearcher constructs a Searcher.
//
// Precondition: plies must be >= 0.
// Postcondition: a nil logger is replaced by a no-op logger.
func NewSearcher(plies int, ordering Ordering, pruning bool, logger *zap.Logger) *Searcher {
	if plies < 0 {
		panic(fmt.Sprintf("ai.NewSearcher: plies must be >= 0, got %d", plies))
	}
	return &Searcher{
		plies:    plies,
		ordering: ordering,
		pruning:  pruning,
		logger:   observability.OrNop(logger),
	}
}

// Plies returns the configured depth limit.
func (s *Searcher) Plies() int { return s.plies }

// Search explores from root for the side to move in root.State and returns
// the best root child, or root itself when no child is searched.
//
// Precondition: root.State must not be nil.
// Postcondition: Choice.Node is root or one of root.State.Successors().
func (s *Searcher) Search(ctx context.Context, root combat.Node) Result {
	start := time.Now()
	r := &run{Searcher: s, ctx: ctx}
	maximizing := root.State.AttackersToMove()

	var choice Choice
	if s.pruning {
		choice = r.alphaBeta(root, 0, maximizing, SeedAlpha(), SeedBeta())
	} else {
		choice = r.minimax(root, 0, maximizing)
	}

	res := Result{Choice: choice, Stats: r.stats, Elapsed: time.Since(start)}
	s.logger.Debug("search complete",
		zap.String("side", root.State.SideToMove().String()),
		zap.Int("plies", s.plies),
		zap.Bool("pruning", s.pruning),
		zap.Stringer("ordering", s.ordering),
		zap.Int("value", choice.Value),
		zap.Stringer("actions", choice.Node.Actions),
		zap.Int("expanded", res.Stats.Expanded),
		zap.Int("leaves", res.Stats.Leaves),
		zap.Int("cutoffs", res.Stats.Cutoffs),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res
}

// AlphaBeta searches node at the given depth and returns the best child for
// the side indicated by maximizing, within the (alpha, beta) window.
//
// A node is a leaf when depth equals the ply limit, its state is terminal, it
// has no successors, or ctx is done; a leaf is returned unchanged with its own
// utility as the value. Returned values are fail-hard: a child whose value
// cannot improve the window is never returned in place of alpha or beta.
func (s *Searcher) AlphaBeta(ctx context.Context, node combat.Node, depth int, maximizing bool, alpha, beta Choice) Choice {
	r := &run{Searcher: s, ctx: ctx}
	return r.alphaBeta(node, depth, maximizing, alpha, beta)
}

// Minimax is the unpruned reference search. It visits every node within the
// ply limit and returns the same value AlphaBeta would.
func (s *Searcher) Minimax(ctx context.Context, root combat.Node) Choice {
	r := &run{Searcher: s, ctx: ctx}
	return r.minimax(root, 0, root.State.AttackersToMove())
}

// SeedAlpha and SeedBeta are the root window bounds: an empty action map on a
// sentinel state valued at the extreme of int.
func SeedAlpha() Choice {
	return Choice{Node: combat.Node{Actions: combat.ActionMap{}, State: combat.NewSentinel(math.MinInt)}, Value: math.MinInt}
}

func SeedBeta() Choice {
	return Choice{Node: combat.Node{Actions: combat.ActionMap{}, State: combat.NewSentinel(math.MaxInt)}, Value: math.MaxInt}
}

// run carries the statistics of one search call.
type run struct {
	*Searcher
	ctx   context.Context
	stats Stats
}

// expand returns the ordered successors of node, or nil when node is a leaf.
func (r *run) expand(node combat.Node, depth int, maximizing bool) []combat.Node {
	if depth >= r.plies || node.State.IsTerminal() || r.ctx.Err() != nil {
		return nil
	}
	children := node.State.Successors()
	if len(children) == 0 {
		return nil
	}
	r.stats.Expanded++
	Order(children, maximizing, r.ordering)
	return children
}

func (r *run) leaf(node combat.Node) Choice {
	r.stats.Leaves++
	return Choice{Node: node, Value: node.State.Utility()}
}

func (r *run) alphaBeta(node combat.Node, depth int, maximizing bool, alpha, beta Choice) Choice {
	children := r.expand(node, depth, maximizing)
	if children == nil {
		return r.leaf(node)
	}

	for _, child := range children {
		v := r.alphaBeta(child, depth+1, !maximizing, alpha, beta).Value
		current := Choice{Node: child, Value: v}
		if maximizing {
			if v > alpha.Value {
				alpha = current
			}
		} else if v < beta.Value {
			beta = current
		}
		if alpha.Value >= beta.Value {
			r.stats.Cutoffs++
			return current
		}
	}
	if maximizing {
		return alpha
	}
	return beta
}

func (r *run) minimax(node combat.Node, depth int, maximizing bool) Choice {
	children := r.expand(node, depth, maximizing)
	if children == nil {
		return r.leaf(node)
	}

	best := Choice{Value: math.MinInt}
	if !maximizing {
		best.Value = math.MaxInt
	}
	for i, child := range children {
		v := r.minimax(child, depth+1, !maximizing).Value
		if i == 0 || (maximizing && v > best.Value) || (!maximizing && v < best.Value) {
			best = Choice{Node: child, Value: v}
		}
	}
	return best
}
