// Package main provides the simulation server binary: it loads a scenario,
// drives every session on a fixed tick, escalates waves, and logs finished
// encounters to PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/config"
	"github.com/cory-johannsen/henhouse/internal/game/scenario"
	"github.com/cory-johannsen/henhouse/internal/game/session"
	"github.com/cory-johannsen/henhouse/internal/gameserver"
	"github.com/cory-johannsen/henhouse/internal/observability"
	"github.com/cory-johannsen/henhouse/internal/scripting"
	"github.com/cory-johannsen/henhouse/internal/server"
	"github.com/cory-johannsen/henhouse/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment")
	scenarioPath := flag.String("scenario", "content/scenarios/demo.yaml", "scenario YAML to start; empty = no sessions")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "simserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	sim := cfg.Simulation
	cat, err := loadCatalog(sim.CatalogDir)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	src := newSource(sim.Seed, observability.Component(logger, "dice"))

	var scripts *scripting.Manager
	if sim.ScriptsDir != "" {
		scripts = scripting.NewManager(src, observability.Component(logger, "scripting"))
		scripts.SpeciesTier = func(species string) (int, bool) {
			sp, ok := cat.Get(species)
			return int(sp.ThreatTier), ok
		}
		if err := scripts.Load(gameserver.PacingScope, sim.ScriptsDir, sim.InstructionLimit); err != nil {
			logger.Fatal("loading pacing scripts", zap.Error(err))
		}
		defer scripts.Close()
	}

	registry := session.NewRegistry(session.Deps{
		Catalog: cat,
		Source:  src,
		Logger:  observability.Component(logger, "session"),
		Config:  sessionConfig(sim),
	})

	relay := newAlertRelay(observability.Component(logger, "alerts"))
	if *scenarioPath != "" {
		sc, err := scenario.LoadFile(*scenarioPath)
		if err != nil {
			logger.Fatal("loading scenario", zap.Error(err))
		}
		sessions, err := sc.Apply(registry, time.Now())
		if err != nil {
			logger.Fatal("applying scenario", zap.Error(err))
		}
		if err := relay.subscribe(registry, sc); err != nil {
			logger.Fatal("subscribing to alerts", zap.Error(err))
		}
		logger.Info("scenario applied",
			zap.String("scenario", sc.Name),
			zap.Int("sessions", len(sessions)),
		)
	}

	clock := gameserver.NewDayClock(sim.StartHour, sim.HourDuration)
	pacing := gameserver.NewPacing(scripts, sim.DifficultyStep)
	ticks := gameserver.NewTickManager(sim.TickInterval, registry, clock, pacing, observability.Component(logger, "ticks"))
	waves := gameserver.NewWaveDirector(sim.WaveInterval, registry, pacing, observability.Component(logger, "waves"))

	hours := newHourLogger(clock, pacing, observability.Component(logger, "clock"))

	defender := &trapDefender{registry: registry, logger: observability.Component(logger, "traps")}
	ticks.OnReport(defender.handle)

	health := server.NewHealthService(cfg.Health.Addr(), observability.Component(logger, "health"))
	lifecycle := server.NewLifecycle(logger)

	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		// Closed after lifecycle.Run returns; the recorder has flushed by then.
		defer pool.Close()
		rec := newRecorder(postgres.NewEncounterRepository(pool.DB()), 256, 5*time.Second, observability.Component(logger, "encounters"))
		ticks.OnReport(rec.handle)
		lifecycle.AddRunner("encounters", rec.Run)
		lifecycle.AddRunner("db-health", watchDatabase(pool, 30*time.Second, observability.Component(logger, "postgres")))
	}

	lifecycle.Add("health", health)
	lifecycle.AddRunner("clock", clock.Run)
	lifecycle.AddRunner("hours", hours.Run)
	lifecycle.AddRunner("alerts", relay.Run)
	lifecycle.AddRunner("waves", waves.Run)
	lifecycle.AddRunner("ticks", func(ctx context.Context) error {
		health.SetServing(true)
		defer health.SetServing(false)
		return ticks.Run(ctx)
	})

	logger.Info("simulation server ready",
		zap.String("health_addr", cfg.Health.Addr()),
		zap.Int("sessions", registry.Count()),
		zap.Stringer("hour", clock.CurrentHour()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
