package gameserver

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/henhouse/internal/scripting"
)

// PacingScope is the script scope holding the pacing hooks.
const PacingScope = "pacing"

// Lua hook names consulted by Pacing.
const (
	HookDifficultyStep = "difficulty_step"
	HookTimeOfDay      = "time_of_day_multiplier"
)

// Pacing decides how quickly the simulation escalates. Each decision is taken
// from a Lua hook when one is loaded and from built-in rules otherwise.
type Pacing struct {
	scripts     *scripting.Manager
	defaultStep float64
}

// NewPacing returns a Pacing backed by scripts, which may be nil.
//
// Precondition: defaultStep >= 0.
func NewPacing(scripts *scripting.Manager, defaultStep float64) *Pacing {
	return &Pacing{scripts: scripts, defaultStep: defaultStep}
}

// DifficultyStep returns the difficulty increase applied when wave begins for a
// player of level.
//
// Postcondition: Returns a value >= 0.
func (p *Pacing) DifficultyStep(wave, level int) float64 {
	if p.scripts != nil {
		if v, ok := p.scripts.CallNumber(PacingScope, HookDifficultyStep, lua.LNumber(wave), lua.LNumber(level)); ok && v >= 0 {
			return v
		}
	}
	return p.defaultStep
}

// TimeOfDayMultiplier returns the spawn interval multiplier for hour h.
//
// Postcondition: Returns a value > 0.
func (p *Pacing) TimeOfDayMultiplier(h GameHour) float64 {
	if p.scripts != nil {
		if v, ok := p.scripts.CallNumber(PacingScope, HookTimeOfDay, lua.LNumber(int(h))); ok && v > 0 {
			return v
		}
	}
	return TimeOfDayMultiplier(h)
}
