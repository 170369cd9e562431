// Package attack resolves predator attacks against a defender's coop.
package attack

import "time"

// DefaultProtectionPeriod is how long a freshly placed chicken cannot be taken.
const DefaultProtectionPeriod = 10 * time.Second

// PlacedChicken is one income-producing chicken in a coop.
type PlacedChicken struct {
	ID               string
	Species          string
	MoneyPerSecond   float64
	AccumulatedMoney float64
	PlacedAt         time.Time
}

// Value returns what the defender loses when this chicken is taken.
func (c PlacedChicken) Value() float64 {
	return c.MoneyPerSecond*60 + c.AccumulatedMoney
}

// Trap is a placed trap. CaughtPredator holds the id of the last catch.
type Trap struct {
	ID              string
	Type            string
	CooldownEndTime time.Time
	CaughtPredator  string
}

// Ready reports whether the trap is armed at now.
func (t *Trap) Ready(now time.Time) bool {
	return !now.Before(t.CooldownEndTime)
}

// Weapon is the defender's equipped bat.
type Weapon struct {
	Name   string
	Damage int
}

// Defender is one player's coop: placed chickens, resistance, traps and weapon.
//
// Invariant: Resistance is in [0, 1].
type Defender struct {
	PlayerID   string
	Chickens   []PlacedChicken
	Resistance float64
	Traps      []*Trap
	Weapon     *Weapon
}

// NewDefender returns an empty coop for playerID.
func NewDefender(playerID string) *Defender {
	return &Defender{PlayerID: playerID}
}

// Place adds a chicken to the coop.
func (d *Defender) Place(c PlacedChicken) {
	d.Chickens = append(d.Chickens, c)
}

// HasChickens reports whether any chicken is placed, eligible or not.
func (d *Defender) HasChickens() bool {
	return len(d.Chickens) > 0
}

// EligibleChickens returns the chickens that have been placed for at least protection.
//
// Postcondition: a chicken placed at now is never returned while protection > 0.
func (d *Defender) EligibleChickens(now time.Time, protection time.Duration) []PlacedChicken {
	var out []PlacedChicken
	for _, c := range d.Chickens {
		if now.Sub(c.PlacedAt) >= protection {
			out = append(out, c)
		}
	}
	return out
}

// RemoveChickens deletes every chicken whose id is in ids and returns the removed entries
// in coop order.
func (d *Defender) RemoveChickens(ids []string) []PlacedChicken {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	var removed []PlacedChicken
	kept := d.Chickens[:0]
	for _, c := range d.Chickens {
		if _, ok := drop[c.ID]; ok {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	d.Chickens = kept
	return removed
}

// WeaponDamage returns the equipped weapon's damage, or 1 bare-handed.
func (d *Defender) WeaponDamage() int {
	if d.Weapon == nil || d.Weapon.Damage < 1 {
		return 1
	}
	return d.Weapon.Damage
}
