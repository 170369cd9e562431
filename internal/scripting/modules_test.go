package scripting_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
	"github.com/cory-johannsen/henhouse/internal/scripting"
)

func TestEngineLog_AllLevels(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "log.lua", `
		function shout()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`)
	require.NoError(t, mgr.Load("log", dir, 0))
	_, err := mgr.CallHook("log", "shout")
	require.NoError(t, err)

	for _, msg := range []string{"d", "i", "w", "e"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, "message %q", msg)
		assert.Equal(t, "lua", entries[0].ContextMap()["source"])
	}
	assert.Equal(t, zap.DebugLevel, logs.FilterMessage("d").All()[0].Level)
	assert.Equal(t, zap.ErrorLevel, logs.FilterMessage("e").All()[0].Level)
}

func TestEngineRandom_Float_InUnitRange(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "rand.lua", `function roll() return engine.random.float() end`)
	require.NoError(t, mgr.Load("rand", dir, 0))
	for i := 0; i < 50; i++ {
		v, ok := mgr.CallNumber("rand", "roll")
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestEngineRandom_Int_BadArgument_Fails(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "rand.lua", `function roll() return engine.random.int(0) end`)
	require.NoError(t, mgr.Load("rand", dir, 0))
	_, ok := mgr.CallNumber("rand", "roll")
	assert.False(t, ok)
	assert.NotEmpty(t, logs.FilterMessage("scripting: Lua runtime error").All())
}

func TestProperty_EngineRandomInt_InRange(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		n := rapid.IntRange(1, 100).Draw(rt, "n")
		mgr := scripting.NewManager(dice.NewSeededSource(seed), zap.New(core))
		defer mgr.Close()
		require.NoError(rt, mgr.Load("rand", writeTempLua(t, "rand.lua", `function roll(n) return engine.random.int(n) end`), 0))
		v, ok := mgr.CallNumber("rand", "roll", lua.LNumber(n))
		if !ok {
			rt.Fatalf("roll(%d) failed", n)
		}
		if v < 1 || v > float64(n) {
			rt.Fatalf("roll(%d) = %v out of range", n, v)
		}
	})
}

func TestEngineCatalogTier(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "cat.lua", `
		function tier_of(name)
			local t = engine.catalog.tier(name)
			if t == nil then return -1 end
			return t
		end
	`)
	require.NoError(t, mgr.Load("cat", dir, 0))

	v, ok := mgr.CallNumber("cat", "tier_of", lua.LString("Bear"))
	require.True(t, ok)
	assert.Equal(t, -1.0, v, "no lookup injected")

	c := catalog.Default()
	mgr.SpeciesTier = func(species string) (int, bool) {
		sp, found := c.Get(species)
		if !found {
			return 0, false
		}
		return int(sp.ThreatTier), true
	}

	bear, _ := c.Get("Bear")
	v, ok = mgr.CallNumber("cat", "tier_of", lua.LString("Bear"))
	require.True(t, ok)
	assert.Equal(t, float64(bear.ThreatTier), v)

	v, ok = mgr.CallNumber("cat", "tier_of", lua.LString("Dragon"))
	require.True(t, ok)
	assert.Equal(t, -1.0, v)
}

func TestPacingScript(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Load("pacing", filepath.Join("..", "..", "content", "scripts"), 0))

	step, ok := mgr.CallNumber("pacing", "difficulty_step", lua.LNumber(2), lua.LNumber(5))
	require.True(t, ok)
	assert.InDelta(t, 0.2, step, 1e-9)

	surge, ok := mgr.CallNumber("pacing", "difficulty_step", lua.LNumber(5), lua.LNumber(5))
	require.True(t, ok)
	assert.InDelta(t, 0.4, surge, 1e-9)

	cases := map[int]float64{0: 0.5, 5: 0.5, 6: 1.0, 7: 1.0, 8: 2.0, 12: 2.0, 17: 2.0, 18: 1.0, 19: 1.0, 20: 0.5, 23: 0.5}
	for hour, want := range cases {
		got, ok := mgr.CallNumber("pacing", "time_of_day_multiplier", lua.LNumber(hour))
		require.True(t, ok, "hour %d", hour)
		assert.Equal(t, want, got, "hour %d", hour)
	}
}
