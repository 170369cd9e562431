// Package threat summarizes the predators menacing a player and builds the
// alerts shown to them.
package threat

import (
	"time"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/spawn"
)

// ThreateningPredators returns the non-terminal predators targeting playerID, in roster order.
func ThreateningPredators(state *spawn.State, playerID string) []*spawn.Predator {
	var out []*spawn.Predator
	for _, p := range state.Active {
		if p.State.IsTerminal() || p.TargetPlayerID != playerID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Summary is the threat picture for one player.
type Summary struct {
	Count       int
	Approaching int
	Attacking   int
	HighestTier catalog.ThreatTier
	// NextAttackIn is the shortest wait until a not-yet-attacking predator may attack.
	// Zero when something is already attacking or nothing is inbound.
	NextAttackIn time.Duration
	// Urgent is true when any threatening predator is attacking or in a top-three tier.
	Urgent bool
}

// Assess builds the Summary for playerID at now.
func Assess(sched *spawn.Scheduler, state *spawn.State, playerID string, now time.Time) Summary {
	var s Summary
	inbound := false
	for _, p := range ThreateningPredators(state, playerID) {
		s.Count++
		if sp, ok := sched.Catalog().Get(p.Species); ok {
			if sp.ThreatTier > s.HighestTier {
				s.HighestTier = sp.ThreatTier
			}
			if sp.ThreatTier.IsTopThree() {
				s.Urgent = true
			}
		}
		switch p.State {
		case spawn.StateAttacking:
			s.Attacking++
			s.Urgent = true
		case spawn.StateSpawning, spawn.StateApproaching:
			if p.State == spawn.StateApproaching {
				s.Approaching++
			}
			wait := sched.TimeUntilAttack(p, now)
			if !inbound || wait < s.NextAttackIn {
				s.NextAttackIn = wait
				inbound = true
			}
		}
	}
	if s.Attacking > 0 {
		s.NextAttackIn = 0
	}
	return s
}
