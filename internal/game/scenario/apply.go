package scenario

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/henhouse/internal/game/attack"
	"github.com/cory-johannsen/henhouse/internal/game/behavior"
	"github.com/cory-johannsen/henhouse/internal/game/session"
)

// Apply creates every session of sc in reg with its coops fully stocked.
// Chickens are placed at now, so they are protected for the configured period.
//
// Postcondition: On error, sessions created by this call are removed again.
func (sc *Scenario) Apply(reg *session.Registry, now time.Time) ([]*session.Session, error) {
	var created []*session.Session
	rollback := func() {
		for _, s := range created {
			_ = reg.Remove(s.ID())
		}
	}
	for _, spec := range sc.Sessions {
		sess, err := reg.Create(spec.ID, spec.PlayerLevel)
		if err != nil {
			rollback()
			return nil, err
		}
		created = append(created, sess)
		for _, d := range spec.Defenders {
			if err := stock(sess, d, now); err != nil {
				rollback()
				return nil, fmt.Errorf("session %q: %w", sess.ID(), err)
			}
		}
	}
	return created, nil
}

func stock(sess *session.Session, d DefenderSpec, now time.Time) error {
	center := behavior.Vec3{X: d.Center.X, Y: d.Center.Y, Z: d.Center.Z}
	if err := sess.AddDefender(attack.NewDefender(d.PlayerID), center); err != nil {
		return err
	}
	if err := sess.SetResistance(d.PlayerID, d.Resistance); err != nil {
		return err
	}
	if d.Weapon != nil {
		if err := sess.EquipWeapon(d.PlayerID, &attack.Weapon{Name: d.Weapon.Name, Damage: d.Weapon.Damage}); err != nil {
			return err
		}
	}
	for i, trapType := range d.Traps {
		trap := &attack.Trap{ID: fmt.Sprintf("%s-trap-%d", d.PlayerID, i+1), Type: trapType}
		if err := sess.AddTrap(d.PlayerID, trap); err != nil {
			return err
		}
	}
	for _, c := range d.Chickens {
		for i := 0; i < c.Count; i++ {
			chicken := attack.PlacedChicken{
				ID:             fmt.Sprintf("%s-%s-%d", d.PlayerID, c.Species, i+1),
				Species:        c.Species,
				MoneyPerSecond: c.MoneyPerSecond,
				PlacedAt:       now,
			}
			if err := sess.PlaceChicken(d.PlayerID, chicken); err != nil {
				return err
			}
		}
	}
	return nil
}
