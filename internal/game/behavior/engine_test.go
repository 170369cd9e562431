package behavior_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/henhouse/internal/game/behavior"
	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

func newEngine(t testing.TB) *behavior.Engine {
	return behavior.NewEngine(catalog.Default(), behavior.DefaultTuning(), dice.NewSeededSource(3), zaptest.NewLogger(t))
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

var coop = behavior.Vec3{X: 50, Z: 0}

func TestRegister_DirectSpawnApproaches(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	pos, ok := e.Position("p1")
	require.True(t, ok)
	assert.Equal(t, behavior.StateApproaching, pos.State)
	assert.Equal(t, coop, pos.CoopCenter)

	err := e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{})
	assert.Error(t, err, "duplicate registration")
}

func TestUpdatePosition_NeverOvershoots(t *testing.T) {
	e := newEngine(t)
	near := behavior.Vec3{X: 1}
	require.NoError(t, e.Register("p1", "Bear", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: near}))
	require.NoError(t, e.UpdatePosition("p1", 10*time.Second))
	pos, _ := e.Position("p1")
	assert.Equal(t, near, pos.Current)
}

func TestUpdatePosition_LinearInterpolation(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	require.NoError(t, e.UpdatePosition("p1", time.Second))
	pos, _ := e.Position("p1")
	assert.InDelta(t, e.Speed("Rat"), pos.Current.X, 1e-9)
	assert.InDelta(t, 0, pos.Current.Z, 1e-9)
	assert.Equal(t, time.Second, pos.TravelTime)
}

func TestHasReachedCoop_AfterApproachTime(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	for i := 0; i < 4; i++ {
		require.NoError(t, e.UpdatePosition("p1", time.Second))
	}
	reached, err := e.HasReachedCoop("p1")
	require.NoError(t, err)
	assert.False(t, reached)

	require.NoError(t, e.UpdatePosition("p1", time.Second))
	reached, err = e.HasReachedCoop("p1")
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestRoamingToAttackingPath(t *testing.T) {
	e := newEngine(t)
	tuning := e.Tuning()
	require.NoError(t, e.Register("p1", "Fox", behavior.Vec3{X: 500}, at(1000), behavior.RegisterOptions{Roaming: true}))
	pos, _ := e.Position("p1")
	assert.Equal(t, behavior.StateRoaming, pos.State)
	assert.True(t, tuning.NeutralZone.Contains(pos.Current), "spawn clamped into neutral zone")

	seek, err := e.ShouldSeekTarget("p1", at(1000))
	require.NoError(t, err)
	assert.False(t, seek)
	seek, err = e.ShouldSeekTarget("p1", at(1000).Add(tuning.RoamDuration))
	require.NoError(t, err)
	assert.True(t, seek)

	// Cannot approach without stalking first.
	assert.True(t, errors.Is(e.StartApproaching("p1", coop), behavior.ErrInvalidState))

	require.NoError(t, e.StartStalking("p1", behavior.Area{PlayerID: "p9", Center: coop}, at(1020)))
	pos, _ = e.Position("p1")
	assert.True(t, pos.IsStalking)
	assert.Equal(t, "p9", pos.TargetArea)

	ready, err := e.ShouldApproach("p1", at(1021))
	require.NoError(t, err)
	assert.False(t, ready)
	ready, err = e.ShouldApproach("p1", at(1020).Add(tuning.StalkDuration))
	require.NoError(t, err)
	assert.True(t, ready)

	require.NoError(t, e.StartApproaching("p1", coop))
	pos, _ = e.Position("p1")
	assert.False(t, pos.IsStalking)
	assert.Equal(t, behavior.StateApproaching, pos.State)
	assert.Zero(t, pos.TravelTime)

	require.NoError(t, e.UpdatePosition("p1", tuning.ApproachTime))
	reached, err := e.HasReachedCoop("p1")
	require.NoError(t, err)
	require.True(t, reached)
	require.NoError(t, e.StartAttacking("p1"))
	pos, _ = e.Position("p1")
	assert.Equal(t, behavior.StateAttacking, pos.State)
}

func TestStalking_StopsAtStalkDistance(t *testing.T) {
	e := newEngine(t)
	tuning := e.Tuning()
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{X: -50}, at(1000), behavior.RegisterOptions{Roaming: true}))
	require.NoError(t, e.StartStalking("p1", behavior.Area{PlayerID: "p9", Center: coop}, at(1000)))
	for i := 0; i < 100; i++ {
		require.NoError(t, e.UpdatePosition("p1", time.Second))
	}
	pos, _ := e.Position("p1")
	assert.InDelta(t, tuning.StalkDistance, pos.Current.Dist(coop), 1e-6)
}

func TestProperty_RoamingStaysInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		e := behavior.NewEngine(catalog.Default(), behavior.DefaultTuning(), dice.NewSeededSource(seed), zaptest.NewLogger(t))
		start := behavior.Vec3{
			X: rapid.Float64Range(-500, 500).Draw(rt, "x"),
			Z: rapid.Float64Range(-500, 500).Draw(rt, "z"),
		}
		species := rapid.SampledFrom(catalog.Default().AllTypes()).Draw(rt, "species")
		require.NoError(rt, e.Register("p", species, start, at(0), behavior.RegisterOptions{Roaming: true}))
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			require.NoError(rt, e.UpdateRoaming("p", at(int64(i)), 500*time.Millisecond))
			pos, _ := e.Position("p")
			require.True(rt, e.Tuning().NeutralZone.Contains(pos.Current), "escaped bounds at %+v", pos.Current)
		}
	})
}

func TestProperty_SpeedStrictlyIncreasesWithTier(t *testing.T) {
	e := newEngine(t)
	c := catalog.Default()
	names := c.AllTypes()
	rapid.Check(t, func(rt *rapid.T) {
		a, _ := c.Get(rapid.SampledFrom(names).Draw(rt, "a"))
		b, _ := c.Get(rapid.SampledFrom(names).Draw(rt, "b"))
		if a.ThreatTier < b.ThreatTier {
			assert.Less(rt, e.Speed(a.Name), e.Speed(b.Name))
		}
	})
}

func TestChickenPresence_DespawnAfterGrace(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))

	// Only meaningful while attacking.
	assert.True(t, errors.Is(e.UpdateChickenPresence("p1", false, at(1000)), behavior.ErrInvalidState))

	require.NoError(t, e.StartAttacking("p1"))
	require.NoError(t, e.UpdateChickenPresence("p1", false, at(1010)))
	require.NoError(t, e.UpdateChickenPresence("p1", false, at(1012)), "later empty ticks keep the first mark")

	d, err := e.ShouldDespawn("p1", at(1017))
	require.NoError(t, err)
	assert.False(t, d)
	d, err = e.ShouldDespawn("p1", at(1018))
	require.NoError(t, err)
	assert.True(t, d)

	require.NoError(t, e.UpdateChickenPresence("p1", true, at(1019)))
	d, err = e.ShouldDespawn("p1", at(1030))
	require.NoError(t, err)
	assert.False(t, d, "chickens returning clears the mark")
}

func TestPatrol_WaypointsOnRing(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	require.NoError(t, e.StartAttacking("p1"))
	for i := 0; i < 5; i++ {
		wp, err := e.NextPatrolWaypoint("p1")
		require.NoError(t, err)
		assert.InDelta(t, e.Tuning().PatrolRadius, wp.Dist(coop), 1e-9)
	}
	before, _ := e.Position("p1")
	require.NoError(t, e.UpdatePatrol("p1", 100*time.Millisecond))
	after, _ := e.Position("p1")
	assert.NotEqual(t, before.Current, after.Current, "patrolling predators keep moving")
}

func TestStep_DispatchesByState(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	require.NoError(t, e.Step("p1", at(1001), time.Second))
	pos, _ := e.Position("p1")
	assert.Equal(t, time.Second, pos.TravelTime)

	assert.True(t, errors.Is(e.Step("missing", at(1001), time.Second), behavior.ErrNotFound))
}

func TestRemove(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Register("p1", "Rat", behavior.Vec3{}, at(1000), behavior.RegisterOptions{Target: coop}))
	e.Remove("p1")
	e.Remove("p1")
	assert.Equal(t, 0, e.Count())
	_, err := e.HasReachedCoop("p1")
	assert.True(t, errors.Is(err, behavior.ErrNotFound))
}
