// Package main provides a CLI tool that prints recorded match outcomes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/skirmish.yaml", "path to configuration file")
	scenario := flag.String("scenario", "", "only show this scenario")
	limit := flag.Int("limit", 20, "maximum number of outcomes to show")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewOutcomeRepository(pool.DB())
	recs, err := repo.Recent(ctx, *scenario, *limit)
	if err != nil {
		log.Fatalf("listing outcomes: %v", err)
	}
	for _, r := range recs {
		o := r.Outcome
		fmt.Fprintf(os.Stdout, "%s  %-12s %s vs %s: %s (%s, %d ticks)\n",
			r.FinishedAt.Format(time.RFC3339), o.Scenario, o.AttackerPolicy, o.DefenderPolicy,
			o.Winner, o.Reason, o.Ticks)
	}

	tally, err := repo.Tally(ctx, cfg.Arena.AttackerPolicy, cfg.Arena.DefenderPolicy)
	if err != nil {
		log.Fatalf("tallying outcomes: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s vs %s: attackers=%d defenders=%d draws=%d [%s]\n",
		cfg.Arena.AttackerPolicy, cfg.Arena.DefenderPolicy,
		tally["attackers"], tally["defenders"], tally["draw"], time.Since(start))
}
