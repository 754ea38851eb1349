// Package config provides Viper-based configuration loading for the skirmish agent.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SearchConfig holds game-tree search settings.
type SearchConfig struct {
	// Plies is the number of simulated half-turns below the root.
	Plies int `mapstructure:"plies"`
	// Pruning selects alpha-beta (true) or the unpruned reference minimax (false).
	Pruning bool `mapstructure:"pruning"`
	// Ordering is the move ordering mode: "best_first" or "ascending".
	Ordering string `mapstructure:"ordering"`
	// Connectivity is the grid movement model: "4" or "8".
	Connectivity string `mapstructure:"connectivity"`
	// StraightLine is the obstacle-free distance metric: "euclidean" or "chebyshev".
	StraightLine string `mapstructure:"straight_line"`
	// UnreachablePenalty replaces the distance term when no path exists.
	UnreachablePenalty int `mapstructure:"unreachable_penalty"`
	// TimeBudget bounds one decision; zero disables it.
	TimeBudget time.Duration `mapstructure:"time_budget"`
}

// WeightsConfig holds the utility coefficients.
type WeightsConfig struct {
	AttackerHP    int `mapstructure:"attacker_hp"`
	DefenderHP    int `mapstructure:"defender_hp"`
	AttackerAlive int `mapstructure:"attacker_alive"`
	DefenderAlive int `mapstructure:"defender_alive"`
	Distance      int `mapstructure:"distance"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ArenaConfig holds match runner settings.
type ArenaConfig struct {
	// ScenarioDir is the directory holding scenario YAML files.
	ScenarioDir string `mapstructure:"scenario_dir"`
	// Scenario selects one scenario by ID; empty runs every scenario.
	Scenario string `mapstructure:"scenario"`
	// Matches is the number of matches played per scenario.
	Matches int `mapstructure:"matches"`
	// MaxTicks caps the length of a match.
	MaxTicks int `mapstructure:"max_ticks"`
	// EndCondition is an expression evaluated after every tick; true ends the match.
	EndCondition string `mapstructure:"end_condition"`
	// Seed drives random obstacle placement; zero draws from crypto/rand.
	Seed int64 `mapstructure:"seed"`
	// AttackerPolicy and DefenderPolicy name registered policies.
	AttackerPolicy string `mapstructure:"attacker_policy"`
	DefenderPolicy string `mapstructure:"defender_policy"`
	// Script is a Lua policy file registered as the "script" policy; empty disables it.
	Script string `mapstructure:"script"`
	// ScriptInstructionLimit caps the Lua opcodes one decision may execute.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings for the outcome store.
type DatabaseConfig struct {
	// Enabled turns on recording of match outcomes.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Config is the top-level application configuration.
type Config struct {
	Search   SearchConfig   `mapstructure:"search"`
	Weights  WeightsConfig  `mapstructure:"weights"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Arena    ArenaConfig    `mapstructure:"arena"`
	Database DatabaseConfig `mapstructure:"database"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateSearch(c.Search); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateArena(c.Arena); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSearch(s SearchConfig) error {
	var errs []string
	if s.Plies < 1 {
		errs = append(errs, fmt.Sprintf("search.plies must be >= 1, got %d", s.Plies))
	}
	validOrderings := map[string]bool{"best_first": true, "ascending": true}
	if !validOrderings[s.Ordering] {
		errs = append(errs, fmt.Sprintf("search.ordering must be one of [best_first, ascending], got %q", s.Ordering))
	}
	validConn := map[string]bool{"4": true, "8": true}
	if !validConn[s.Connectivity] {
		errs = append(errs, fmt.Sprintf("search.connectivity must be one of [4, 8], got %q", s.Connectivity))
	}
	validLines := map[string]bool{"euclidean": true, "chebyshev": true}
	if !validLines[s.StraightLine] {
		errs = append(errs, fmt.Sprintf("search.straight_line must be one of [euclidean, chebyshev], got %q", s.StraightLine))
	}
	if s.UnreachablePenalty < 0 {
		errs = append(errs, fmt.Sprintf("search.unreachable_penalty must be >= 0, got %d", s.UnreachablePenalty))
	}
	if s.TimeBudget < 0 {
		errs = append(errs, "search.time_budget must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateArena(a ArenaConfig) error {
	var errs []string
	if a.ScenarioDir == "" {
		errs = append(errs, "arena.scenario_dir must not be empty")
	}
	if a.Matches < 1 {
		errs = append(errs, fmt.Sprintf("arena.matches must be >= 1, got %d", a.Matches))
	}
	if a.MaxTicks < 1 {
		errs = append(errs, fmt.Sprintf("arena.max_ticks must be >= 1, got %d", a.MaxTicks))
	}
	if strings.TrimSpace(a.EndCondition) == "" {
		errs = append(errs, "arena.end_condition must not be empty")
	}
	if a.AttackerPolicy == "" || a.DefenderPolicy == "" {
		errs = append(errs, "arena.attacker_policy and arena.defender_policy must not be empty")
	}
	if a.ScriptInstructionLimit < 1 {
		errs = append(errs, fmt.Sprintf("arena.script_instruction_limit must be >= 1, got %d", a.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, fmt.Sprintf("database.min_conns must be in [0, max_conns], got %d", d.MinConns))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKIRMISH_ prefix
	v.SetEnvPrefix("SKIRMISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the built-in defaults.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.plies", 2)
	v.SetDefault("search.pruning", true)
	v.SetDefault("search.ordering", "best_first")
	v.SetDefault("search.connectivity", "4")
	v.SetDefault("search.straight_line", "euclidean")
	v.SetDefault("search.unreachable_penalty", 50)
	v.SetDefault("search.time_budget", "0s")

	v.SetDefault("weights.attacker_hp", 1)
	v.SetDefault("weights.defender_hp", -10)
	v.SetDefault("weights.attacker_alive", 10)
	v.SetDefault("weights.defender_alive", -100)
	v.SetDefault("weights.distance", -1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("arena.scenario_dir", "content/scenarios")
	v.SetDefault("arena.matches", 1)
	v.SetDefault("arena.max_ticks", 200)
	v.SetDefault("arena.end_condition", "AttackersAlive == 0 || DefendersAlive == 0")
	v.SetDefault("arena.seed", 0)
	v.SetDefault("arena.attacker_policy", "search")
	v.SetDefault("arena.defender_policy", "greedy")
	v.SetDefault("arena.script", "")
	v.SetDefault("arena.script_instruction_limit", 100_000)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skirmish")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "skirmish")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "30m")
}
