// Package main provides the encounter-log schema migration runner.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cory-johannsen/henhouse/internal/config"
	"github.com/cory-johannsen/henhouse/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps (0 = all)")
	flag.Parse()

	if *steps < 0 {
		log.Fatalf("invalid steps %d: must be >= 0", *steps)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	status, err := postgres.Migrate(cfg.Database.DSN(), postgres.Direction(*direction), *steps)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	elapsed := time.Since(start)

	if !status.Changed {
		fmt.Fprintf(os.Stdout, "no changes (version=%d dirty=%v) [%s]\n", status.Version, status.Dirty, elapsed)
		return
	}
	fmt.Fprintf(os.Stdout, "migrated %s to version=%d dirty=%v [%s]\n", *direction, status.Version, status.Dirty, elapsed)
}
