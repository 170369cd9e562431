// Package catalog provides the static threat tables: predator species, trap
// tiers, and the player-level table that gates spawning.
package catalog

import (
	"fmt"
	"sort"
	"time"
)

// ThreatTier is an ordinal severity classification per species.
type ThreatTier int

const (
	TierMinor ThreatTier = iota + 1
	TierModerate
	TierDangerous
	TierSevere
	TierDeadly
	TierCatastrophic
)

// MaxTier is the highest defined threat tier.
const MaxTier = TierCatastrophic

// String returns the tier's display name.
func (t ThreatTier) String() string {
	switch t {
	case TierMinor:
		return "Minor"
	case TierModerate:
		return "Moderate"
	case TierDangerous:
		return "Dangerous"
	case TierSevere:
		return "Severe"
	case TierDeadly:
		return "Deadly"
	case TierCatastrophic:
		return "Catastrophic"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the defined tiers.
func (t ThreatTier) Valid() bool {
	return t >= TierMinor && t <= MaxTier
}

// IsTopThree reports whether t is one of the three most severe tiers.
func (t ThreatTier) IsTopThree() bool {
	return t > MaxTier-3 && t <= MaxTier
}

// Species describes one predator type.
type Species struct {
	Name                 string     `yaml:"name"`
	DisplayName          string     `yaml:"display_name"`
	ThreatTier           ThreatTier `yaml:"threat_tier"`
	BaseHealth           int        `yaml:"base_health"`
	AttacksPerEngagement int        `yaml:"attacks_per_engagement"`
	ChickensPerAttack    int        `yaml:"chickens_per_attack"`
	CatchDifficulty      float64    `yaml:"catch_difficulty"`
	// SpeedFactor is a per-species adjustment kept inside [MinSpeedFactor, MaxSpeedFactor]
	// so that tier always dominates movement speed.
	SpeedFactor float64 `yaml:"speed_factor"`
	SpawnWeight float64 `yaml:"spawn_weight"`
}

// Speed factor bounds. The tier speed ratio in the behavior package must exceed
// MaxSpeedFactor/MinSpeedFactor.
const (
	MinSpeedFactor = 0.9
	MaxSpeedFactor = 1.1
)

// Validate checks that the species satisfies the catalog invariants.
//
// Postcondition: Returns nil iff every numeric attribute is in range.
func (s *Species) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("species: name must not be empty")
	}
	if !s.ThreatTier.Valid() {
		return fmt.Errorf("species %q: threat_tier %d out of range [1, %d]", s.Name, s.ThreatTier, MaxTier)
	}
	if s.BaseHealth < 1 {
		return fmt.Errorf("species %q: base_health must be >= 1", s.Name)
	}
	if s.AttacksPerEngagement < 1 {
		return fmt.Errorf("species %q: attacks_per_engagement must be >= 1", s.Name)
	}
	if s.ChickensPerAttack < 1 {
		return fmt.Errorf("species %q: chickens_per_attack must be >= 1", s.Name)
	}
	if s.CatchDifficulty <= 0 {
		return fmt.Errorf("species %q: catch_difficulty must be > 0", s.Name)
	}
	if s.SpeedFactor < MinSpeedFactor || s.SpeedFactor > MaxSpeedFactor {
		return fmt.Errorf("species %q: speed_factor %.2f out of range [%.1f, %.1f]",
			s.Name, s.SpeedFactor, MinSpeedFactor, MaxSpeedFactor)
	}
	if s.SpawnWeight <= 0 {
		return fmt.Errorf("species %q: spawn_weight must be > 0", s.Name)
	}
	return nil
}

// TrapType describes one trap tier.
type TrapType struct {
	Name        string  `yaml:"name"`
	DisplayName string  `yaml:"display_name"`
	Tier        int     `yaml:"tier"`
	Power       float64 `yaml:"power"`
	// RawCooldown is the duration string (e.g. "30s") a trap stays disarmed after a catch.
	RawCooldown string        `yaml:"cooldown"`
	Cooldown    time.Duration `yaml:"-"`
}

// LevelTier maps a minimum player level to spawn limits.
type LevelTier struct {
	Level         int        `yaml:"level"`
	MaxActive     int        `yaml:"max_active"`
	MaxThreatTier ThreatTier `yaml:"max_threat_tier"`
}

// Catalog is the read-only lookup over species, traps, and levels.
//
// Invariant: never mutated after construction.
type Catalog struct {
	species   map[string]Species
	order     []string
	traps     map[string]TrapType
	trapOrder []string
	levels    []LevelTier
}

// New validates the given tables and builds a Catalog.
//
// Postcondition: Returns a Catalog or an error describing the first violation.
func New(species []Species, traps []TrapType, levels []LevelTier) (*Catalog, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("catalog: at least one species is required")
	}
	c := &Catalog{
		species: make(map[string]Species, len(species)),
		traps:   make(map[string]TrapType, len(traps)),
	}
	for i := range species {
		s := species[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if s.DisplayName == "" {
			s.DisplayName = s.Name
		}
		if _, dup := c.species[s.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate species %q", s.Name)
		}
		c.species[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		a, b := c.species[c.order[i]], c.species[c.order[j]]
		if a.ThreatTier != b.ThreatTier {
			return a.ThreatTier < b.ThreatTier
		}
		return a.Name < b.Name
	})

	for i := range traps {
		t := traps[i]
		if t.Name == "" {
			return nil, fmt.Errorf("catalog: trap name must not be empty")
		}
		if t.Tier < 1 {
			return nil, fmt.Errorf("catalog: trap %q: tier must be >= 1", t.Name)
		}
		if t.Power <= 0 {
			return nil, fmt.Errorf("catalog: trap %q: power must be > 0", t.Name)
		}
		if t.RawCooldown != "" {
			d, err := time.ParseDuration(t.RawCooldown)
			if err != nil {
				return nil, fmt.Errorf("catalog: trap %q: cooldown %q is not a valid duration: %w", t.Name, t.RawCooldown, err)
			}
			t.Cooldown = d
		}
		if t.DisplayName == "" {
			t.DisplayName = t.Name
		}
		if _, dup := c.traps[t.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate trap %q", t.Name)
		}
		c.traps[t.Name] = t
		c.trapOrder = append(c.trapOrder, t.Name)
	}
	sort.SliceStable(c.trapOrder, func(i, j int) bool {
		return c.traps[c.trapOrder[i]].Tier < c.traps[c.trapOrder[j]].Tier
	})
	for i := 1; i < len(c.trapOrder); i++ {
		prev, cur := c.traps[c.trapOrder[i-1]], c.traps[c.trapOrder[i]]
		if cur.Power < prev.Power {
			return nil, fmt.Errorf("catalog: trap %q (tier %d) is weaker than %q (tier %d)",
				cur.Name, cur.Tier, prev.Name, prev.Tier)
		}
	}

	if len(levels) == 0 {
		return nil, fmt.Errorf("catalog: level table must not be empty")
	}
	c.levels = append([]LevelTier(nil), levels...)
	sort.SliceStable(c.levels, func(i, j int) bool { return c.levels[i].Level < c.levels[j].Level })
	for i, lt := range c.levels {
		if lt.MaxActive < 0 {
			return nil, fmt.Errorf("catalog: level %d: max_active must be >= 0", lt.Level)
		}
		if !lt.MaxThreatTier.Valid() {
			return nil, fmt.Errorf("catalog: level %d: max_threat_tier %d out of range", lt.Level, lt.MaxThreatTier)
		}
		if i > 0 {
			prev := c.levels[i-1]
			if lt.Level == prev.Level {
				return nil, fmt.Errorf("catalog: duplicate level %d", lt.Level)
			}
			if lt.MaxActive < prev.MaxActive || lt.MaxThreatTier < prev.MaxThreatTier {
				return nil, fmt.Errorf("catalog: level %d limits must not decrease", lt.Level)
			}
		}
	}
	return c, nil
}

// Get returns the species named name.
func (c *Catalog) Get(name string) (Species, bool) {
	s, ok := c.species[name]
	return s, ok
}

// AllTypes returns every species name ordered by tier, then name.
//
// Postcondition: Returns a fresh slice the caller may modify.
func (c *Catalog) AllTypes() []string {
	return append([]string(nil), c.order...)
}

// Trap returns the trap type named name.
func (c *Catalog) Trap(name string) (TrapType, bool) {
	t, ok := c.traps[name]
	return t, ok
}

// Traps returns all trap types ordered by ascending tier.
func (c *Catalog) Traps() []TrapType {
	out := make([]TrapType, 0, len(c.trapOrder))
	for _, n := range c.trapOrder {
		out = append(out, c.traps[n])
	}
	return out
}

// levelFor returns the highest level-table row whose Level <= level. Levels
// below the first row use the first row.
func (c *Catalog) levelFor(level int) LevelTier {
	row := c.levels[0]
	for _, lt := range c.levels {
		if lt.Level > level {
			break
		}
		row = lt
	}
	return row
}

// MaxActiveForLevel returns the concurrent predator ceiling for a player level.
//
// Postcondition: Returns >= 0 and is non-decreasing in level.
func (c *Catalog) MaxActiveForLevel(level int) int {
	return c.levelFor(level).MaxActive
}

// MaxTierForLevel returns the highest threat tier unlocked at a player level.
func (c *Catalog) MaxTierForLevel(level int) ThreatTier {
	return c.levelFor(level).MaxThreatTier
}
