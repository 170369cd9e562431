package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/henhouse/internal/config"
	"github.com/cory-johannsen/henhouse/internal/game/attack"
	"github.com/cory-johannsen/henhouse/internal/game/behavior"
	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/session"
	"github.com/cory-johannsen/henhouse/internal/game/spawn"
)

// zeroSource always rolls the lowest value, so every trap catches.
type zeroSource struct{}

func (zeroSource) Intn(int) int     { return 0 }
func (zeroSource) Float64() float64 { return 0 }

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func TestSessionConfig_MapsSimulationSettings(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	sim := cfg.Simulation
	sim.BaseSpawnInterval = 45 * time.Second
	sim.MinSpawnInterval = 5 * time.Second
	sim.WaveFactor = 0.25
	sim.ApproachTime = 7 * time.Second
	sim.DespawnGrace = 11 * time.Second
	sim.ProtectionPeriod = 20 * time.Second
	sim.AttackInterval = 2 * time.Second
	sim.RoamingChance = 0.5

	sc := sessionConfig(sim)
	assert.Equal(t, 45*time.Second, sc.Spawn.BaseInterval)
	assert.Equal(t, 5*time.Second, sc.Spawn.MinInterval)
	assert.Equal(t, 0.25, sc.Spawn.WaveFactor)
	assert.Equal(t, 7*time.Second, sc.Spawn.ApproachTime)
	assert.Equal(t, 7*time.Second, sc.Behavior.ApproachTime)
	assert.Equal(t, 11*time.Second, sc.Behavior.DespawnGrace)
	assert.Equal(t, 20*time.Second, sc.Protection)
	assert.Equal(t, 2*time.Second, sc.AttackInterval)
	assert.Equal(t, 0.5, sc.RoamingChance)
	assert.Equal(t, session.DefaultConfig().FeedBuffer, sc.FeedBuffer, "unmapped fields keep their defaults")
}

func TestLoadCatalog_EmptyDirUsesDefault(t *testing.T) {
	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.ElementsMatch(t, catalog.Default().AllTypes(), c.AllTypes())

	_, err = loadCatalog(t.TempDir() + "/missing")
	assert.Error(t, err)
}

func TestTrapDefender_CatchesAttacker(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.RoamingChance = 0
	reg := session.NewRegistry(session.Deps{
		Catalog: catalog.Default(),
		Source:  zeroSource{},
		Logger:  zaptest.NewLogger(t),
		Config:  cfg,
	})
	sess, err := reg.Create("meadow", 1)
	require.NoError(t, err)
	require.NoError(t, sess.AddDefender(attack.NewDefender("alice"), behavior.Vec3{}))
	require.NoError(t, sess.PlaceChicken("alice", attack.PlacedChicken{ID: "c1", MoneyPerSecond: 1, PlacedAt: at(0)}))
	require.NoError(t, sess.AddTrap("alice", &attack.Trap{ID: "alice-trap-0", Type: "BasicTrap"}))

	id := sess.ForceSpawn("Rat", "alice", at(1000)).Predator.ID
	for sec := int64(1001); sec <= 1005; sec++ {
		sess.Tick(at(sec), time.Second, 1)
	}
	require.Equal(t, spawn.StateAttacking, sess.Predators()[0].State)

	core, logs := observer.New(zap.InfoLevel)
	d := &trapDefender{registry: reg, logger: zap.New(core)}
	d.handle("meadow", at(1006), session.TickReport{Attacks: []session.AttackReport{
		{PredatorID: id, PlayerID: "alice"},
		{PredatorID: id, PlayerID: "alice"},
	}})

	assert.Equal(t, spawn.StateCaught, sess.Predators()[0].State)
	sprung := logs.FilterMessage("trap sprung").All()
	require.Len(t, sprung, 1, "each attacked coop resolves once per tick")
	assert.Equal(t, id, sprung[0].ContextMap()["predator"])
}

func TestTrapDefender_IgnoresQuietTicksAndUnknownSessions(t *testing.T) {
	reg := session.NewRegistry(session.Deps{
		Catalog: catalog.Default(),
		Source:  zeroSource{},
		Logger:  zaptest.NewLogger(t),
		Config:  session.DefaultConfig(),
	})
	core, logs := observer.New(zap.DebugLevel)
	d := &trapDefender{registry: reg, logger: zap.New(core)}

	assert.NotPanics(t, func() {
		d.handle("ghost", at(1), session.TickReport{})
		d.handle("ghost", at(1), session.TickReport{Attacks: []session.AttackReport{{PredatorID: "x", PlayerID: "y"}}})
	})
	assert.Zero(t, logs.Len())
}

type flakyDB struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *flakyDB) Health(context.Context, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func TestWatchDatabase_LogsTransitions(t *testing.T) {
	down := errors.New("connection refused")
	db := &flakyDB{errs: []error{down, down, nil}}
	core, logs := observer.New(zap.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchDatabase(db, 5*time.Millisecond, zap.New(core))(ctx) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("database reachable again").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, logs.FilterMessage("database unreachable").Len(), "repeated failures log once")
}
