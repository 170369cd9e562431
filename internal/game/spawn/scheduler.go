package spawn

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

// Tuning holds the spawn pacing constants.
type Tuning struct {
	// BaseInterval is the spawn interval at wave 0, difficulty 1, neutral time of day.
	BaseInterval time.Duration
	// MinInterval is the floor the interval never drops below.
	MinInterval time.Duration
	// ApproachTime is how long a predator approaches before it may attack.
	ApproachTime time.Duration
	// WaveFactor scales interval shrinkage per wave.
	WaveFactor float64
	// TierWaveBias raises the weight of higher tiers as waves progress.
	TierWaveBias float64
}

// DefaultTuning returns the standard pacing.
func DefaultTuning() Tuning {
	return Tuning{
		BaseInterval: 60 * time.Second,
		MinInterval:  10 * time.Second,
		ApproachTime: 5 * time.Second,
		WaveFactor:   0.1,
		TierWaveBias: 0.15,
	}
}

// Scheduler implements spawn timing, species selection, and record lifecycle
// mutators. It holds no session state; every call receives the *State it acts on.
//
// Concurrency: a Scheduler may be shared between sessions; a single *State must
// not be mutated concurrently.
type Scheduler struct {
	catalog *catalog.Catalog
	tuning  Tuning
	src     dice.Source
	logger  *zap.Logger
}

// NewScheduler creates a Scheduler.
//
// Precondition: c, src and logger must be non-nil.
func NewScheduler(c *catalog.Catalog, tuning Tuning, src dice.Source, logger *zap.Logger) *Scheduler {
	return &Scheduler{catalog: c, tuning: tuning, src: src, logger: logger}
}

// Tuning returns the scheduler's pacing constants.
func (s *Scheduler) Tuning() Tuning { return s.tuning }

// Catalog returns the catalog the scheduler draws species from.
func (s *Scheduler) Catalog() *catalog.Catalog { return s.catalog }

// MaxActivePredators returns the concurrent ceiling for the state's player level.
//
// Postcondition: Returns >= 0.
func (s *Scheduler) MaxActivePredators(state *State) int {
	return s.catalog.MaxActiveForLevel(state.PlayerLevel)
}

// ActiveCount returns the number of non-terminal predators.
func ActiveCount(state *State) int {
	n := 0
	for _, p := range state.Active {
		if !p.State.IsTerminal() {
			n++
		}
	}
	return n
}

// Interval returns the current time between natural spawns.
//
// Postcondition: Returns >= MinInterval.
func (s *Scheduler) Interval(state *State, timeOfDay float64) time.Duration {
	difficulty := state.DifficultyMultiplier
	if difficulty <= 0 {
		difficulty = 1
	}
	if timeOfDay <= 0 {
		timeOfDay = 1
	}
	secs := s.tuning.BaseInterval.Seconds() / (1 + s.tuning.WaveFactor*float64(state.Wave)) / difficulty * timeOfDay
	interval := time.Duration(secs * float64(time.Second))
	if interval < s.tuning.MinInterval {
		return s.tuning.MinInterval
	}
	return interval
}

// ShouldSpawn reports whether a natural spawn may happen at now.
func (s *Scheduler) ShouldSpawn(state *State, now time.Time, timeOfDay float64) bool {
	if ActiveCount(state) >= s.MaxActivePredators(state) {
		return false
	}
	return !now.Before(state.LastSpawnTime.Add(s.Interval(state, timeOfDay)))
}

// Spawn creates a naturally scheduled predator.
//
// Postcondition: On success the new predator is appended in StateSpawning,
// LastSpawnTime == now and PredatorsSpawned is incremented. The first spawn of a
// session starts wave 1.
func (s *Scheduler) Spawn(state *State, now time.Time, timeOfDay float64, targetPlayerID, targetChickenID string) SpawnResult {
	if ActiveCount(state) >= s.MaxActivePredators(state) {
		return SpawnResult{Result: fail(FailureCapacity, "Maximum predators reached")}
	}
	if !s.ShouldSpawn(state, now, timeOfDay) {
		return SpawnResult{Result: fail(FailureTiming, "Spawn interval has not elapsed")}
	}
	if state.Wave == 0 {
		state.Wave = 1
	}
	species := s.SelectPredatorForWave(state.Wave, state.PlayerLevel)
	p := s.create(state, species, now, targetPlayerID, targetChickenID)
	state.LastSpawnTime = now
	state.NextSpawnTime = now.Add(s.Interval(state, timeOfDay))

	s.logger.Info("predator spawned",
		zap.String("id", p.ID),
		zap.String("species", p.Species),
		zap.Int("wave", state.Wave),
		zap.String("target_player", targetPlayerID),
	)
	return SpawnResult{Result: ok(fmt.Sprintf("A %s has appeared", species)), Predator: p}
}

// ForceSpawn creates a predator of the given species, bypassing the timing gate.
// The ceiling is still enforced; wave and LastSpawnTime are untouched.
func (s *Scheduler) ForceSpawn(state *State, species string, now time.Time, targetPlayerID string) SpawnResult {
	if _, found := s.catalog.Get(species); !found {
		return SpawnResult{Result: fail(FailureNotFound, "Invalid predator type")}
	}
	if ActiveCount(state) >= s.MaxActivePredators(state) {
		return SpawnResult{Result: fail(FailureCapacity, "Maximum predators reached")}
	}
	p := s.create(state, species, now, targetPlayerID, "")
	s.logger.Info("predator force-spawned",
		zap.String("id", p.ID),
		zap.String("species", p.Species),
		zap.String("target_player", targetPlayerID),
	)
	return SpawnResult{Result: ok(fmt.Sprintf("A %s has appeared", species)), Predator: p}
}

func (s *Scheduler) create(state *State, species string, now time.Time, targetPlayerID, targetChickenID string) *Predator {
	info, _ := s.catalog.Get(species)
	p := &Predator{
		ID:               uuid.NewString(),
		Species:          species,
		State:            StateSpawning,
		SpawnTime:        now,
		StateChangedAt:   now,
		Health:           info.BaseHealth,
		AttacksRemaining: info.AttacksPerEngagement,
		TargetPlayerID:   targetPlayerID,
		TargetChickenID:  targetChickenID,
		Roaming:          targetPlayerID == "",
	}
	state.Active = append(state.Active, p)
	state.PredatorsSpawned++
	return p
}

// SelectPredatorForWave draws a species weighted toward tiers unlocked at level.
// Higher unlocked tiers gain weight as the wave number grows.
//
// Postcondition: Returns a species present in the catalog.
func (s *Scheduler) SelectPredatorForWave(wave, level int) string {
	names := s.catalog.AllTypes()
	maxTier := s.catalog.MaxTierForLevel(level)
	weights := make([]float64, len(names))
	for i, name := range names {
		sp, _ := s.catalog.Get(name)
		if sp.ThreatTier > maxTier {
			continue
		}
		weights[i] = sp.SpawnWeight * (1 + s.tuning.TierWaveBias*float64(wave)*float64(sp.ThreatTier-1))
	}
	idx := dice.WeightedIndex(s.src, weights)
	if idx < 0 {
		return names[0]
	}
	return names[idx]
}

// AdvanceWave moves the session to the next wave and raises difficulty by step.
// Negative steps are ignored so the multiplier never decreases.
func (s *Scheduler) AdvanceWave(state *State, step float64) {
	state.Wave++
	state.DifficultyMultiplier += math.Max(0, step)
	s.logger.Debug("wave advanced",
		zap.Int("wave", state.Wave),
		zap.Float64("difficulty", state.DifficultyMultiplier),
	)
}

// SetPlayerLevel raises the session's player level; lower values are ignored.
func SetPlayerLevel(state *State, level int) {
	if level > state.PlayerLevel {
		state.PlayerLevel = level
	}
}

// FindPredator returns the record with id, terminal or not.
func FindPredator(state *State, id string) (*Predator, bool) {
	for _, p := range state.Active {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// AssignTarget points a roaming predator at playerID's coop, optionally pinning chickenID.
func AssignTarget(state *State, id, playerID, chickenID string) Result {
	p, found := FindPredator(state, id)
	if !found {
		return fail(FailureNotFound, "Predator not found")
	}
	if p.State.IsTerminal() {
		return fail(FailureInvalidState, "Predator is already "+p.State.String())
	}
	p.TargetPlayerID = playerID
	p.TargetChickenID = chickenID
	return ok("Predator is hunting " + playerID)
}

// UpdatePredatorState moves a predator forward to next.
//
// Postcondition: fails with FailureInvalidState on any regression or exit from
// a terminal state.
func (s *Scheduler) UpdatePredatorState(state *State, id string, next CoarseState, now time.Time) Result {
	p, found := FindPredator(state, id)
	if !found {
		return fail(FailureNotFound, "Predator not found")
	}
	if p.State == next {
		return ok("Predator already " + next.String())
	}
	if !CanTransition(p.State, next) {
		return fail(FailureInvalidState, fmt.Sprintf("Cannot move predator from %s to %s", p.State, next))
	}
	s.logger.Debug("predator state change",
		zap.String("id", p.ID),
		zap.Stringer("from", p.State),
		zap.Stringer("to", next),
	)
	p.State = next
	p.StateChangedAt = now
	return ok("Predator is now " + next.String())
}

// ApplyBatHit removes damage hit points (at least one).
//
// Postcondition: Defeated is true exactly when Health reaches 0, at which point
// the predator is StateDefeated.
func (s *Scheduler) ApplyBatHit(state *State, id string, damage int, now time.Time) BatHitResult {
	p, found := FindPredator(state, id)
	if !found {
		return BatHitResult{Result: fail(FailureNotFound, "Predator not found")}
	}
	if p.State.IsTerminal() {
		return BatHitResult{Result: fail(FailureInvalidState, "Predator is already "+p.State.String())}
	}
	if damage < 1 {
		damage = 1
	}
	p.Health -= damage
	if p.Health <= 0 {
		p.Health = 0
		p.State = StateDefeated
		p.StateChangedAt = now
		s.logger.Info("predator defeated", zap.String("id", p.ID), zap.String("species", p.Species))
		return BatHitResult{Result: ok("The " + p.Species + " was defeated"), RemainingHealth: 0, Defeated: true}
	}
	return BatHitResult{
		Result:          ok(fmt.Sprintf("Hit the %s (%d health left)", p.Species, p.Health)),
		RemainingHealth: p.Health,
	}
}

// DecreaseAttacks spends one attack from the engagement budget.
//
// Postcondition: ShouldEscape is true exactly when AttacksRemaining reaches 0,
// at which point the predator is StateEscaped.
func (s *Scheduler) DecreaseAttacks(state *State, id string, now time.Time) AttackBudgetResult {
	p, found := FindPredator(state, id)
	if !found {
		return AttackBudgetResult{Result: fail(FailureNotFound, "Predator not found")}
	}
	if p.State.IsTerminal() {
		return AttackBudgetResult{Result: fail(FailureInvalidState, "Predator is already "+p.State.String())}
	}
	if p.AttacksRemaining > 0 {
		p.AttacksRemaining--
	}
	if p.AttacksRemaining == 0 {
		p.State = StateEscaped
		p.StateChangedAt = now
		return AttackBudgetResult{Result: ok("Predator escaped"), ShouldEscape: true}
	}
	return AttackBudgetResult{Result: ok("Attack recorded"), AttacksRemaining: p.AttacksRemaining}
}

// MarkCaught forces a predator into StateCaught. Already terminal records are left unchanged.
func (s *Scheduler) MarkCaught(state *State, id string, now time.Time) Result {
	return s.markTerminal(state, id, StateCaught, now)
}

// MarkEscaped forces a predator into StateEscaped. Already terminal records are left unchanged.
func (s *Scheduler) MarkEscaped(state *State, id string, now time.Time) Result {
	return s.markTerminal(state, id, StateEscaped, now)
}

func (s *Scheduler) markTerminal(state *State, id string, to CoarseState, now time.Time) Result {
	p, found := FindPredator(state, id)
	if !found {
		return fail(FailureNotFound, "Predator not found")
	}
	if p.State.IsTerminal() {
		return ok("Predator is already " + p.State.String())
	}
	p.State = to
	p.StateChangedAt = now
	s.logger.Info("predator removed",
		zap.String("id", p.ID),
		zap.String("species", p.Species),
		zap.Stringer("outcome", to),
	)
	return ok("Predator " + to.String())
}

// Cleanup removes every terminal record from the roster.
//
// Postcondition: Returns the removed records; state.Active holds only
// non-terminal predators.
func Cleanup(state *State) []*Predator {
	var removed []*Predator
	kept := state.Active[:0]
	for _, p := range state.Active {
		if p.State.IsTerminal() {
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(state.Active); i++ {
		state.Active[i] = nil
	}
	state.Active = kept
	return removed
}

// TimeUntilAttack returns how long until an approaching predator may attack.
// Direct spawns approach from SpawnTime; roamers only start their approach run
// when they leave the stalk, so theirs is measured from StateChangedAt.
//
// Postcondition: Returns 0 once attacking or terminal; the full approach time
// while spawning.
func (s *Scheduler) TimeUntilAttack(p *Predator, now time.Time) time.Duration {
	switch p.State {
	case StateSpawning:
		return s.tuning.ApproachTime
	case StateApproaching:
		from := p.SpawnTime
		if p.Roaming {
			from = p.StateChangedAt
		}
		remaining := s.tuning.ApproachTime - now.Sub(from)
		if remaining < 0 {
			return 0
		}
		return remaining
	default:
		return 0
	}
}

// ReadyToAttack reports whether an approaching predator has approached long enough.
func (s *Scheduler) ReadyToAttack(p *Predator, now time.Time) bool {
	return p.State == StateApproaching && now.Sub(p.SpawnTime) >= s.tuning.ApproachTime
}
