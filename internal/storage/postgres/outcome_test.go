package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/arena"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
	"github.com/cory-johannsen/skirmish/internal/testutil"
)

func outcome(scenario, winner string) arena.Outcome {
	return arena.Outcome{
		MatchID:        uuid.New(),
		Scenario:       scenario,
		AttackerPolicy: "search",
		DefenderPolicy: "greedy",
		Winner:         winner,
		Reason:         "end_condition",
		Ticks:          12,
		Final:          arena.EndEnv{Tick: 12, AttackersAlive: 2, AttackerHP: 14},
	}
}

func TestOutcomeRepository(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	repo := postgres.NewOutcomeRepository(pc.Pool.DB())
	ctx := context.Background()

	first := outcome("wall", "attackers")
	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, outcome("wall", "draw")))
	require.NoError(t, repo.Record(ctx, outcome("open_field", "attackers")))

	t.Run("duplicate match id", func(t *testing.T) {
		assert.ErrorIs(t, repo.Record(ctx, first), postgres.ErrOutcomeExists)
	})

	t.Run("recent filters by scenario", func(t *testing.T) {
		recs, err := repo.Recent(ctx, "wall", 10)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, "wall", r.Outcome.Scenario)
			assert.False(t, r.FinishedAt.IsZero())
		}
		all, err := repo.Recent(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("round trip", func(t *testing.T) {
		recs, err := repo.Recent(ctx, "", 10)
		require.NoError(t, err)
		var found bool
		for _, r := range recs {
			if r.Outcome.MatchID == first.MatchID {
				assert.Equal(t, first, r.Outcome)
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("tally", func(t *testing.T) {
		got, err := repo.Tally(ctx, "search", "greedy")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"attackers": 2, "draw": 1}, got)

		none, err := repo.Tally(ctx, "idle", "idle")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	version, err := postgres.Migrate(pc.Config.DSN(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestPropertyRecordedOutcomesAreCounted(t *testing.T) {
	pc := testutil.NewPostgresContainer(t)
	repo := postgres.NewOutcomeRepository(pc.Pool.DB())
	ctx := context.Background()

	want := map[string]int{}
	rapid.Check(t, func(rt *rapid.T) {
		winner := rapid.SampledFrom([]string{"attackers", "defenders", "draw"}).Draw(rt, "winner")
		out := outcome("prop", winner)
		out.AttackerPolicy, out.DefenderPolicy = "prop_a", "prop_d"
		if err := repo.Record(ctx, out); err != nil {
			rt.Fatalf("Record: %v", err)
		}
		want[winner]++
		got, err := repo.Tally(ctx, "prop_a", "prop_d")
		if err != nil {
			rt.Fatalf("Tally: %v", err)
		}
		if got[winner] != want[winner] {
			rt.Fatalf("tally for %s = %d, want %d", winner, got[winner], want[winner])
		}
	})
}
