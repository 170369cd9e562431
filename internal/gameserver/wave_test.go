package gameserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/henhouse/internal/gameserver"
)

func TestNewWaveDirector_PanicsOnZeroInterval(t *testing.T) {
	assert.Panics(t, func() {
		gameserver.NewWaveDirector(0, newRegistry(t), gameserver.NewPacing(nil, 0), zaptest.NewLogger(t))
	})
}

func TestWaveDirector_SkipsSessionsBeforeFirstSpawn(t *testing.T) {
	reg := newRegistry(t)
	sess := sessionWithCoop(t, reg, "a")
	d := gameserver.NewWaveDirector(time.Minute, reg, gameserver.NewPacing(nil, 0.1), zaptest.NewLogger(t))

	assert.Equal(t, 0, d.AdvanceAll())
	assert.Equal(t, 0, sess.Wave())
	assert.Equal(t, 1.0, sess.Difficulty())
}

func TestWaveDirector_AdvancesStartedSessions(t *testing.T) {
	reg := newRegistry(t)
	started := sessionWithCoop(t, reg, "a")
	idle := sessionWithCoop(t, reg, "b")
	started.Tick(at(1000), time.Second, 1)
	require.Equal(t, 1, started.Wave())

	core, logs := observer.New(zap.InfoLevel)
	d := gameserver.NewWaveDirector(time.Minute, reg, gameserver.NewPacing(nil, 0.1), zap.New(core))

	assert.Equal(t, 1, d.AdvanceAll())
	assert.Equal(t, 2, started.Wave())
	assert.InDelta(t, 1.1, started.Difficulty(), 1e-9)
	assert.Equal(t, 0, idle.Wave())

	entries := logs.FilterMessage("wave started").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ContextMap()["session"])
}

func TestWaveDirector_UsesScriptedStep(t *testing.T) {
	reg := newRegistry(t)
	sess := sessionWithCoop(t, reg, "a")
	sess.Tick(at(1000), time.Second, 1)

	mgr := scriptsWith(t, `function difficulty_step(wave, level) return wave end`)
	d := gameserver.NewWaveDirector(time.Minute, reg, gameserver.NewPacing(mgr, 0.1), zaptest.NewLogger(t))

	d.AdvanceAll()
	assert.InDelta(t, 3.0, sess.Difficulty(), 1e-9, "wave 2 adds 2")
}

func TestProperty_WaveDirector_DifficultyNeverFalls(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := newRegistry(t)
		sess := sessionWithCoop(t, reg, "a")
		sess.Tick(at(1000), time.Second, 1)
		step := rapid.Float64Range(0, 2).Draw(rt, "step")
		d := gameserver.NewWaveDirector(time.Minute, reg, gameserver.NewPacing(nil, step), zap.NewNop())

		rounds := rapid.IntRange(1, 10).Draw(rt, "rounds")
		prev := sess.Difficulty()
		for i := 0; i < rounds; i++ {
			d.AdvanceAll()
			if sess.Difficulty() < prev {
				rt.Fatalf("difficulty fell from %v to %v", prev, sess.Difficulty())
			}
			prev = sess.Difficulty()
		}
		if sess.Wave() != rounds+1 {
			rt.Fatalf("wave = %d, want %d", sess.Wave(), rounds+1)
		}
	})
}

func TestWaveDirector_RunStopsOnCancel(t *testing.T) {
	reg := newRegistry(t)
	sess := sessionWithCoop(t, reg, "a")
	sess.Tick(at(1000), time.Second, 1)
	d := gameserver.NewWaveDirector(10*time.Millisecond, reg, gameserver.NewPacing(nil, 0.1), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return sess.Wave() > 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}
