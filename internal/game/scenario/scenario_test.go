package scenario_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
	"github.com/cory-johannsen/henhouse/internal/game/scenario"
	"github.com/cory-johannsen/henhouse/internal/game/session"
	"github.com/cory-johannsen/henhouse/internal/game/threat"
)

const validScenarioYAML = `
name: test
sessions:
  - id: farm
    player_level: 2
    defenders:
      - player_id: alice
        center: {x: 10, z: -5}
        resistance: 0.2
        weapon: {name: Bat, damage: 2}
        traps: [BasicTrap]
        chickens:
          - {species: Leghorn, count: 3, money_per_second: 1}
      - player_id: bob
        chickens:
          - {species: Silkie, count: 1, money_per_second: 2}
  - id: ""
`

func newRegistry(t *testing.T) *session.Registry {
	return session.NewRegistry(session.Deps{
		Catalog: catalog.Default(),
		Source:  dice.NewSeededSource(1),
		Sink:    threat.NewMemorySink(0),
		Logger:  zaptest.NewLogger(t),
		Config:  session.DefaultConfig(),
	})
}

func TestLoadFromBytes_Valid(t *testing.T) {
	sc, err := scenario.LoadFromBytes([]byte(validScenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "test", sc.Name)
	require.Len(t, sc.Sessions, 2)

	farm := sc.Sessions[0]
	assert.Equal(t, 2, farm.PlayerLevel)
	require.Len(t, farm.Defenders, 2)
	alice := farm.Defenders[0]
	assert.Equal(t, scenario.Point{X: 10, Z: -5}, alice.Center)
	assert.Equal(t, 2, alice.Weapon.Damage)
	assert.Equal(t, []string{"BasicTrap"}, alice.Traps)
	assert.Equal(t, 1, sc.Sessions[1].PlayerLevel, "player level defaults to 1")
}

func TestLoadFromBytes_Invalid(t *testing.T) {
	cases := map[string]string{
		"no sessions":       `name: empty`,
		"duplicate session": "sessions:\n  - id: a\n  - id: a\n",
		"negative level":    "sessions:\n  - id: a\n    player_level: -1\n",
		"empty player":      "sessions:\n  - id: a\n    defenders:\n      - player_id: \"\"\n",
		"duplicate player":  "sessions:\n  - id: a\n    defenders:\n      - player_id: p\n      - player_id: p\n",
		"resistance":        "sessions:\n  - id: a\n    defenders:\n      - player_id: p\n        resistance: 1.5\n",
		"weapon damage":     "sessions:\n  - id: a\n    defenders:\n      - player_id: p\n        weapon: {name: Stick, damage: 0}\n",
		"chicken count":     "sessions:\n  - id: a\n    defenders:\n      - player_id: p\n        chickens: [{species: Leghorn, count: 0}]\n",
		"bad yaml":          "sessions: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := scenario.LoadFromBytes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply_StocksCoops(t *testing.T) {
	sc, err := scenario.LoadFromBytes([]byte(validScenarioYAML))
	require.NoError(t, err)
	reg := newRegistry(t)
	now := time.Unix(500, 0)

	created, err := sc.Apply(reg, now)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 2, reg.Count())

	farm, ok := reg.Get("farm")
	require.True(t, ok)
	assert.Equal(t, 2, farm.PlayerLevel())
	chickens := farm.Chickens("alice")
	require.Len(t, chickens, 3)
	assert.Equal(t, "alice-Leghorn-1", chickens[0].ID)
	assert.True(t, chickens[0].PlacedAt.Equal(now))
	assert.Len(t, farm.Chickens("bob"), 1)

	assert.NotEmpty(t, created[1].ID(), "empty id is replaced")
}

func TestApply_UnknownTrapRollsBack(t *testing.T) {
	sc, err := scenario.LoadFromBytes([]byte(`
sessions:
  - id: first
  - id: second
    defenders:
      - player_id: p
        traps: [NoSuchTrap]
`))
	require.NoError(t, err)
	reg := newRegistry(t)

	_, err = sc.Apply(reg, time.Unix(0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchTrap")
	assert.Zero(t, reg.Count())
}

func TestApply_ExistingSessionFails(t *testing.T) {
	sc, err := scenario.LoadFromBytes([]byte("sessions:\n  - id: taken\n"))
	require.NoError(t, err)
	reg := newRegistry(t)
	_, err = reg.Create("taken", 1)
	require.NoError(t, err)

	_, err = sc.Apply(reg, time.Unix(0, 0))
	assert.Error(t, err)
	assert.Equal(t, 1, reg.Count())
}

func TestLoadFile_DemoScenario(t *testing.T) {
	sc, err := scenario.LoadFile(filepath.Join("..", "..", "..", "content", "scenarios", "demo.yaml"))
	require.NoError(t, err)
	_, err = sc.Apply(newRegistry(t), time.Unix(0, 0))
	require.NoError(t, err, "demo scenario must match the built-in catalog")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := scenario.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_WrapsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0644))
	_, err := scenario.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestProperty_ApplyPlacesEveryChicken(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		counts := rapid.SliceOfN(rapid.IntRange(1, 5), 1, 4).Draw(rt, "counts")
		d := scenario.DefenderSpec{PlayerID: "p"}
		want := 0
		for i, n := range counts {
			d.Chickens = append(d.Chickens, scenario.ChickenSpec{Species: string(rune('A' + i)), Count: n, MoneyPerSecond: 1})
			want += n
		}
		sc := &scenario.Scenario{Sessions: []scenario.SessionSpec{{ID: "s", PlayerLevel: 1, Defenders: []scenario.DefenderSpec{d}}}}
		require.NoError(rt, sc.Validate())

		reg := newRegistry(t)
		_, err := sc.Apply(reg, time.Unix(0, 0))
		require.NoError(rt, err)
		sess, _ := reg.Get("s")
		if got := len(sess.Chickens("p")); got != want {
			rt.Fatalf("placed %d chickens, want %d", got, want)
		}
	})
}
