// Package spawn owns the roster of active predators for one game session and
// decides when and what to spawn.
package spawn

import (
	"fmt"
	"time"
)

// CoarseState is the top-level predator lifecycle phase.
type CoarseState int

const (
	StateSpawning CoarseState = iota
	StateApproaching
	StateAttacking
	StateDefeated
	StateEscaped
	StateCaught
)

// String returns the lowercase state name.
func (s CoarseState) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateApproaching:
		return "approaching"
	case StateAttacking:
		return "attacking"
	case StateDefeated:
		return "defeated"
	case StateEscaped:
		return "escaped"
	case StateCaught:
		return "caught"
	default:
		return fmt.Sprintf("CoarseState(%d)", int(s))
	}
}

// ParseCoarseState converts a state name back to a CoarseState.
func ParseCoarseState(name string) (CoarseState, error) {
	for s := StateSpawning; s <= StateCaught; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown predator state %q", name)
}

// IsTerminal reports whether s is defeated, escaped, or caught.
func (s CoarseState) IsTerminal() bool {
	return s == StateDefeated || s == StateEscaped || s == StateCaught
}

// transitions lists every legal next state. Moves are forward-only; skipping
// ahead (spawning -> attacking) is permitted, terminal states have no exits.
var transitions = map[CoarseState][]CoarseState{
	StateSpawning:    {StateApproaching, StateAttacking, StateDefeated, StateEscaped, StateCaught},
	StateApproaching: {StateAttacking, StateDefeated, StateEscaped, StateCaught},
	StateAttacking:   {StateDefeated, StateEscaped, StateCaught},
	StateDefeated:    nil,
	StateEscaped:     nil,
	StateCaught:      nil,
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to CoarseState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Predator is one live predator record.
//
// Invariant: Species is immutable after creation; State only moves forward.
type Predator struct {
	ID      string
	Species string
	State   CoarseState
	// SpawnTime is when the record was created.
	SpawnTime time.Time
	// StateChangedAt is when State last changed.
	StateChangedAt time.Time
	// Health is the remaining hit points; only bat and weapon hits lower it.
	Health int
	// AttacksRemaining is the engagement budget; only attack resolution lowers it.
	AttacksRemaining int
	// TargetPlayerID is the owner of the threatened coop; empty while untargeted.
	TargetPlayerID string
	// TargetChickenID is a victim pinned while stalking; empty when none.
	TargetChickenID string
	// Roaming is true for predators spawned in the neutral zone without a target.
	Roaming bool
}

// State is the per-session spawn container.
type State struct {
	Active           []*Predator
	Wave             int
	PredatorsSpawned int
	LastSpawnTime    time.Time
	NextSpawnTime    time.Time
	// DifficultyMultiplier never decreases within a session.
	DifficultyMultiplier float64
	// PlayerLevel drives the concurrent predator ceiling.
	PlayerLevel int
}

// NewState returns an empty session state for a player of the given level.
//
// Postcondition: Wave == 0; DifficultyMultiplier == 1.
func NewState(playerLevel int) *State {
	return &State{
		DifficultyMultiplier: 1,
		PlayerLevel:          playerLevel,
	}
}

// Failure classifies why an operation did not succeed.
type Failure int

const (
	FailureNone Failure = iota
	FailureNotFound
	FailureInvalidState
	FailureNoResources
	FailureCapacity
	FailureTiming
)

// String returns the failure kind name.
func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureNotFound:
		return "not-found"
	case FailureInvalidState:
		return "invalid-state"
	case FailureNoResources:
		return "resource-exhausted"
	case FailureCapacity:
		return "capacity"
	case FailureTiming:
		return "timing"
	default:
		return fmt.Sprintf("Failure(%d)", int(f))
	}
}

// Result is the common success/failure envelope returned by scheduler operations.
type Result struct {
	Success bool
	Message string
	Failure Failure
}

func ok(msg string) Result { return Result{Success: true, Message: msg} }

func fail(kind Failure, msg string) Result {
	return Result{Success: false, Message: msg, Failure: kind}
}

// SpawnResult reports the outcome of Spawn or ForceSpawn.
type SpawnResult struct {
	Result
	Predator *Predator
}

// BatHitResult reports the outcome of ApplyBatHit.
type BatHitResult struct {
	Result
	RemainingHealth int
	Defeated        bool
}

// AttackBudgetResult reports the outcome of DecreaseAttacks.
type AttackBudgetResult struct {
	Result
	AttacksRemaining int
	ShouldEscape     bool
}
