package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/game/arena"
)

// ErrOutcomeExists is returned when a match ID has already been recorded.
var ErrOutcomeExists = errors.New("outcome already recorded")

// OutcomeRecord is one stored match result.
type OutcomeRecord struct {
	Outcome    arena.Outcome
	FinishedAt time.Time
}

// OutcomeRepository stores match outcomes.
type OutcomeRepository struct {
	db *pgxpool.Pool
}

// NewOutcomeRepository creates an OutcomeRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewOutcomeRepository(db *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Record inserts out. It satisfies arena.Recorder.
//
// Postcondition: returns ErrOutcomeExists if out.MatchID is already stored.
func (r *OutcomeRepository) Record(ctx context.Context, out arena.Outcome) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO match_outcomes
		   (match_id, scenario, attacker_policy, defender_policy, winner, reason, ticks,
		    attackers_alive, defenders_alive, attacker_hp, defender_hp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		out.MatchID.String(), out.Scenario, out.AttackerPolicy, out.DefenderPolicy,
		out.Winner, out.Reason, out.Ticks,
		out.Final.AttackersAlive, out.Final.DefendersAlive, out.Final.AttackerHP, out.Final.DefenderHP,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrOutcomeExists
		}
		return fmt.Errorf("inserting outcome %s: %w", out.MatchID, err)
	}
	return nil
}

// Recent returns up to limit outcomes for scenario, newest first. An empty
// scenario matches every scenario.
func (r *OutcomeRepository) Recent(ctx context.Context, scenario string, limit int) ([]OutcomeRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT match_id::text, scenario, attacker_policy, defender_policy, winner, reason, ticks,
		        attackers_alive, defenders_alive, attacker_hp, defender_hp, finished_at
		 FROM match_outcomes
		 WHERE $1::text = '' OR scenario = $1::text
		 ORDER BY finished_at DESC, match_id
		 LIMIT $2`,
		scenario, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutcomeRecord, error) {
		var (
			rec OutcomeRecord
			id  string
			o   = &rec.Outcome
		)
		if err := row.Scan(&id, &o.Scenario, &o.AttackerPolicy, &o.DefenderPolicy, &o.Winner, &o.Reason, &o.Ticks,
			&o.Final.AttackersAlive, &o.Final.DefendersAlive, &o.Final.AttackerHP, &o.Final.DefenderHP, &rec.FinishedAt); err != nil {
			return OutcomeRecord{}, fmt.Errorf("scanning outcome: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return OutcomeRecord{}, fmt.Errorf("parsing match id %q: %w", id, err)
		}
		o.MatchID = parsed
		o.Final.Tick = o.Ticks
		return rec, nil
	})
}

// Tally counts stored results per winner for one pairing of policies.
func (r *OutcomeRepository) Tally(ctx context.Context, attackerPolicy, defenderPolicy string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT winner, COUNT(*)
		 FROM match_outcomes
		 WHERE attacker_policy = $1 AND defender_policy = $2
		 GROUP BY winner`,
		attackerPolicy, defenderPolicy,
	)
	if err != nil {
		return nil, fmt.Errorf("tallying outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			winner string
			n      int64
		)
		if err := rows.Scan(&winner, &n); err != nil {
			return nil, fmt.Errorf("scanning tally: %w", err)
		}
		out[winner] = int(n)
	}
	return out, rows.Err()
}
