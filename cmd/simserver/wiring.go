package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/config"
	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
	"github.com/cory-johannsen/henhouse/internal/game/session"
)

// sessionConfig maps the simulation settings onto the per-session tuning.
func sessionConfig(sim config.SimulationConfig) session.Config {
	c := session.DefaultConfig()
	c.Spawn.BaseInterval = sim.BaseSpawnInterval
	c.Spawn.MinInterval = sim.MinSpawnInterval
	c.Spawn.WaveFactor = sim.WaveFactor
	c.Spawn.ApproachTime = sim.ApproachTime
	c.Behavior.ApproachTime = sim.ApproachTime
	c.Behavior.DespawnGrace = sim.DespawnGrace
	c.Protection = sim.ProtectionPeriod
	c.AttackInterval = sim.AttackInterval
	c.RoamingChance = sim.RoamingChance
	return c
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadDir(dir)
}

func newSource(seed uint64, logger *zap.Logger) dice.Source {
	var src dice.Source
	if seed == 0 {
		src = dice.NewCryptoSource()
	} else {
		src = dice.NewSeededSource(seed)
	}
	return dice.NewLoggedSource(src, logger)
}

// trapDefender arms every coop that came under attack: after each tick, the
// attacked players' ready traps roll against their attackers.
type trapDefender struct {
	registry *session.Registry
	logger   *zap.Logger
}

func (d *trapDefender) handle(sessionID string, now time.Time, report session.TickReport) {
	if len(report.Attacks) == 0 {
		return
	}
	sess, ok := d.registry.Get(sessionID)
	if !ok {
		return
	}
	seen := make(map[string]bool)
	for _, a := range report.Attacks {
		if seen[a.PlayerID] {
			continue
		}
		seen[a.PlayerID] = true
		for _, o := range sess.ResolveTraps(a.PlayerID, now) {
			if o.Caught {
				d.logger.Info("trap sprung",
					zap.String("session", sessionID),
					zap.String("player", a.PlayerID),
					zap.String("trap", o.TrapID),
					zap.String("predator", o.PredatorID),
					zap.Float64("probability", o.Probability),
				)
			}
		}
	}
}

type pinger interface {
	Health(ctx context.Context, timeout time.Duration) error
}

// watchDatabase pings db every interval and logs when it stops or starts answering.
func watchDatabase(db pinger, interval time.Duration, logger *zap.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		healthy := true
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				err := db.Health(ctx, interval/2)
				switch {
				case err != nil && healthy:
					logger.Warn("database unreachable", zap.Error(err))
				case err == nil && !healthy:
					logger.Info("database reachable again")
				}
				healthy = err == nil
			}
		}
	}
}
