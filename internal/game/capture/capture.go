// Package capture computes how likely a trap is to catch a predator.
package capture

import (
	"math"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

const (
	// MinProbability is the floor for any valid trap/predator pair.
	MinProbability = 5.0
	// MaxProbability is the ceiling.
	MaxProbability = 100.0
	// powerScale converts trap power / catch difficulty into percent.
	powerScale = 60.0
	// EffectiveRating is the lowest rating considered effective.
	EffectiveRating = 3
)

// CatchProbability returns the percent chance in [5, 100] that trap catches species.
//
// Postcondition: non-decreasing in trap power (and so in tier), non-increasing
// in species catch difficulty.
func CatchProbability(trap catalog.TrapType, species catalog.Species) float64 {
	if trap.Power <= 0 || species.CatchDifficulty <= 0 {
		return MinProbability
	}
	pct := powerScale * trap.Power / species.CatchDifficulty
	return math.Max(MinProbability, math.Min(MaxProbability, pct))
}

// EffectivenessRating discretizes CatchProbability into 0..5 for display.
func EffectivenessRating(trap catalog.TrapType, species catalog.Species) int {
	pct := CatchProbability(trap, species)
	switch {
	case pct >= 90:
		return 5
	case pct >= 70:
		return 4
	case pct >= 50:
		return 3
	case pct >= 30:
		return 2
	case pct >= 15:
		return 1
	default:
		return 0
	}
}

// MinimumTierForPredator returns the lowest-tier trap whose rating reaches
// EffectiveRating against species.
//
// Postcondition: Returns (TrapType{}, false) when no trap qualifies.
func MinimumTierForPredator(c *catalog.Catalog, species catalog.Species) (catalog.TrapType, bool) {
	for _, trap := range c.Traps() {
		if EffectivenessRating(trap, species) >= EffectiveRating {
			return trap, true
		}
	}
	return catalog.TrapType{}, false
}

// AttemptCatch rolls one capture attempt.
//
// Precondition: src must be non-nil.
func AttemptCatch(src dice.Source, trap catalog.TrapType, species catalog.Species) bool {
	return src.Float64()*100 < CatchProbability(trap, species)
}
