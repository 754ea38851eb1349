// Package main provides the outcome store migration runner.
package main

import (
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
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all the way up; required for down)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	n := *steps
	switch *direction {
	case "up":
	case "down":
		if n <= 0 {
			log.Fatal("direction down needs -steps > 0")
		}
		n = -n
	default:
		log.Fatalf("invalid direction %q: must be 'up' or 'down'", *direction)
	}

	version, err := postgres.Migrate(cfg.Database.DSN(), n)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Fprintf(os.Stdout, "migrated %s to version=%d [%s]\n", *direction, version, time.Since(start))
}
