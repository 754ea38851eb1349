// Package main provides the skirmish binary, which plays scenarios between
// the search agent and a baseline policy and logs the results.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/config"
	"github.com/cory-johannsen/skirmish/internal/game/ai"
	"github.com/cory-johannsen/skirmish/internal/game/arena"
	"github.com/cory-johannsen/skirmish/internal/game/dice"
	"github.com/cory-johannsen/skirmish/internal/game/grid"
	"github.com/cory-johannsen/skirmish/internal/game/scenario"
	"github.com/cory-johannsen/skirmish/internal/observability"
	"github.com/cory-johannsen/skirmish/internal/scripting"
	"github.com/cory-johannsen/skirmish/internal/server"
	"github.com/cory-johannsen/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/skirmish.yaml", "path to configuration file")
	scenarioDir := flag.String("scenarios", "", "scenario YAML directory; overrides arena.scenario_dir")
	scenarioID := flag.String("scenario", "", "play only this scenario; overrides arena.scenario")
	matches := flag.Int("matches", 0, "matches per scenario; overrides arena.matches when > 0")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *scenarioDir != "" {
		cfg.Arena.ScenarioDir = *scenarioDir
	}
	if *scenarioID != "" {
		cfg.Arena.Scenario = *scenarioID
	}
	if *matches > 0 {
		cfg.Arena.Matches = *matches
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	all, err := scenario.LoadScenarios(cfg.Arena.ScenarioDir)
	if err != nil {
		logger.Fatal("loading scenarios", zap.Error(err))
	}
	selected, err := scenario.Select(all, cfg.Arena.Scenario)
	if err != nil {
		logger.Fatal("selecting scenario", zap.Error(err))
	}

	registry, err := ai.DefaultRegistry(cfg, logger)
	if err != nil {
		logger.Fatal("building policies", zap.Error(err))
	}
	conn, err := grid.ParseConnectivity(cfg.Search.Connectivity)
	if err != nil {
		logger.Fatal("parsing connectivity", zap.Error(err))
	}
	roller := dice.NewRoller(dice.SourceFor(cfg.Arena.Seed), logger)

	if cfg.Arena.Script != "" {
		script, err := scripting.LoadScript(cfg.Arena.Script, scripting.ScriptOptions{
			InstructionLimit: cfg.Arena.ScriptInstructionLimit,
			Connectivity:     conn,
			Roller:           roller,
			Logger:           logger,
		})
		if err != nil {
			logger.Fatal("loading policy script", zap.Error(err))
		}
		if err := registry.Register("script", script.Policy); err != nil {
			logger.Fatal("registering policy script", zap.Error(err))
		}
		logger.Info("policy script loaded", zap.String("script", script.Name()))
	}

	engine, err := arena.NewEngine(registry, arena.Settings{
		AttackerPolicy: cfg.Arena.AttackerPolicy,
		DefenderPolicy: cfg.Arena.DefenderPolicy,
		Connectivity:   conn,
		MaxTicks:       cfg.Arena.MaxTicks,
		EndCondition:   cfg.Arena.EndCondition,
	}, roller, logger)
	if err != nil {
		logger.Fatal("creating arena", zap.Error(err))
	}

	if cfg.Database.Enabled {
		if _, err := postgres.Migrate(cfg.Database.DSN(), 0); err != nil {
			logger.Fatal("migrating outcome store", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pool, err := postgres.NewPool(ctx, cfg.Database)
		cancel()
		if err != nil {
			logger.Fatal("connecting to outcome store", zap.Error(err))
		}
		defer pool.Close()
		engine.SetRecorder(postgres.NewOutcomeRepository(pool.DB()))
		logger.Info("recording outcomes",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
	}

	logger.Info("skirmish initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("scenarios", len(selected)),
		zap.Int("matches", cfg.Arena.Matches),
		zap.Int("plies", cfg.Search.Plies),
		zap.String("attacker_policy", cfg.Arena.AttackerPolicy),
		zap.String("defender_policy", cfg.Arena.DefenderPolicy),
	)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("arena", server.FuncJob(func(ctx context.Context) error {
		outcomes, err := engine.Play(ctx, selected, cfg.Arena.Matches)
		tally := arena.Tally(outcomes)
		logger.Info("tally",
			zap.Int("played", len(outcomes)),
			zap.Int("attackers", tally["attackers"]),
			zap.Int("defenders", tally["defenders"]),
			zap.Int("draws", tally["draw"]),
		)
		return err
	}))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("arena error", zap.Error(err))
	}
}
