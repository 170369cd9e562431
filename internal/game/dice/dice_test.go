package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

// fixedSource replays a fixed list of floats and ints.
type fixedSource struct {
	floats []float64
	ints   []int
}

func (f *fixedSource) Float64() float64 {
	v := f.floats[0]
	f.floats = f.floats[1:]
	return v
}

func (f *fixedSource) Intn(n int) int {
	v := f.ints[0] % n
	f.ints = f.ints[1:]
	return v
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
}

func TestCryptoSource_Float64_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestCryptoSource_Intn_PanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	a := dice.NewSeededSource(42)
	b := dice.NewSeededSource(42)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Intn(100), b.Intn(100))
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestWeightedIndex_PicksByCumulativeWeight(t *testing.T) {
	weights := []float64{1, 0, 3}
	// total 4: [0,1) -> 0, [1,4) -> 2
	assert.Equal(t, 0, dice.WeightedIndex(&fixedSource{floats: []float64{0.1}}, weights))
	assert.Equal(t, 2, dice.WeightedIndex(&fixedSource{floats: []float64{0.3}}, weights))
	assert.Equal(t, 2, dice.WeightedIndex(&fixedSource{floats: []float64{0.999}}, weights))
}

func TestWeightedIndex_ZeroTotal(t *testing.T) {
	assert.Equal(t, -1, dice.WeightedIndex(dice.NewSeededSource(1), []float64{0, 0}))
	assert.Equal(t, -1, dice.WeightedIndex(dice.NewSeededSource(1), nil))
}

func TestProperty_WeightedIndex_NeverPicksZeroWeight(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		weights := rapid.SliceOfN(rapid.Float64Range(0, 10), 1, 12).Draw(rt, "weights")
		seed := rapid.Uint64().Draw(rt, "seed")
		idx := dice.WeightedIndex(dice.NewSeededSource(seed), weights)
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total == 0 {
			assert.Equal(rt, -1, idx)
			return
		}
		require.GreaterOrEqual(rt, idx, 0)
		assert.Greater(rt, weights[idx], 0.0)
	})
}

func TestProperty_SampleWithoutReplacement_Unique(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		k := rapid.IntRange(0, 40).Draw(rt, "k")
		seed := rapid.Uint64().Draw(rt, "seed")
		got := dice.SampleWithoutReplacement(dice.NewSeededSource(seed), n, k)
		want := k
		if want > n {
			want = n
		}
		require.Len(rt, got, want)
		seen := make(map[int]bool)
		for _, i := range got {
			assert.GreaterOrEqual(rt, i, 0)
			assert.Less(rt, i, n)
			assert.False(rt, seen[i], "duplicate index %d", i)
			seen[i] = true
		}
	})
}

func TestLoggedSource_LogsDraws(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := dice.NewLoggedSource(dice.NewSeededSource(7), zap.New(core))
	_ = src.Intn(10)
	_ = src.Float64()
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "random draw", logs.All()[0].Message)
}
