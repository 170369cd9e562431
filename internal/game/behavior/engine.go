// Package behavior owns predator positions and the movement state machine:
// roaming, stalking, approaching, and attacking with patrol waypoints.
package behavior

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
)

var (
	// ErrNotFound is returned when no position is registered for an id.
	ErrNotFound = errors.New("predator position not found")
	// ErrInvalidState is returned when the predator is in the wrong behavior state.
	ErrInvalidState = errors.New("invalid behavior state")
)

// State is the fine-grained movement phase.
type State int

const (
	StateRoaming State = iota
	StateStalking
	StateApproaching
	StateAttacking
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateRoaming:
		return "roaming"
	case StateStalking:
		return "stalking"
	case StateApproaching:
		return "approaching"
	case StateAttacking:
		return "attacking"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tuning holds movement constants.
type Tuning struct {
	// BaseSpeed is the speed in world units per second of a tier-1 predator with speed factor 1.
	BaseSpeed float64
	// TierSpeedRatio multiplies speed once per tier above the first. It must
	// exceed catalog.MaxSpeedFactor/catalog.MinSpeedFactor.
	TierSpeedRatio float64
	ApproachTime   time.Duration
	DespawnGrace   time.Duration
	// RoamDuration is how long a roaming predator wanders before seeking a target.
	RoamDuration time.Duration
	// StalkDuration is how long a predator stalks before approaching.
	StalkDuration time.Duration
	// RoamSpeedFactor and StalkSpeedFactor slow movement outside the approach.
	RoamSpeedFactor  float64
	StalkSpeedFactor float64
	// StalkDistance is how close a stalker creeps to the coop center.
	StalkDistance float64
	// ReachDistance is the tolerance for arriving at a roam target or waypoint.
	ReachDistance float64
	PatrolRadius  float64
	NeutralZone   Bounds
}

// DefaultTuning returns the standard movement constants.
func DefaultTuning() Tuning {
	return Tuning{
		BaseSpeed:        8,
		TierSpeedRatio:   1.3,
		ApproachTime:     5 * time.Second,
		DespawnGrace:     8 * time.Second,
		RoamDuration:     20 * time.Second,
		StalkDuration:    3 * time.Second,
		RoamSpeedFactor:  0.5,
		StalkSpeedFactor: 0.35,
		StalkDistance:    15,
		ReachDistance:    1,
		PatrolRadius:     6,
		NeutralZone: Bounds{
			Min: Vec3{X: -100, Y: 0, Z: -100},
			Max: Vec3{X: 100, Y: 0, Z: 100},
		},
	}
}

// Area identifies a coop a predator can target.
type Area struct {
	PlayerID string
	Center   Vec3
}

// Position is the spatial record for one predator.
type Position struct {
	ID      string
	Species string
	Current Vec3
	Target  Vec3
	Spawn   Vec3
	State   State
	// RoamTarget and RoamEndTime drive the roaming sub-behavior.
	RoamTarget  Vec3
	RoamEndTime time.Time
	IsStalking  bool
	StalkStart  time.Time
	TargetArea  string
	// NoChickensSince is zero while the target coop has chickens.
	NoChickensSince time.Time
	CoopCenter      Vec3
	// TravelTime is the cumulative time spent approaching.
	TravelTime  time.Duration
	Waypoint    Vec3
	HasWaypoint bool
}

// RegisterOptions selects the spawn path.
type RegisterOptions struct {
	// Roaming spawns the predator in the neutral zone without a target.
	Roaming bool
	// Target is the coop center for direct-spawn predators.
	Target Vec3
}

// Engine owns every predator position in one session.
//
// Concurrency: not safe for concurrent use; the owning session serializes access.
type Engine struct {
	catalog   *catalog.Catalog
	tuning    Tuning
	src       dice.Source
	logger    *zap.Logger
	positions map[string]*Position
}

// NewEngine creates an empty Engine.
//
// Precondition: c, src and logger must be non-nil.
func NewEngine(c *catalog.Catalog, tuning Tuning, src dice.Source, logger *zap.Logger) *Engine {
	return &Engine{
		catalog:   c,
		tuning:    tuning,
		src:       src,
		logger:    logger,
		positions: make(map[string]*Position),
	}
}

// Tuning returns the engine's movement constants.
func (e *Engine) Tuning() Tuning { return e.tuning }

// Speed returns the movement speed of species in units per second.
//
// Postcondition: for species a, b with a.ThreatTier < b.ThreatTier, Speed(a) < Speed(b).
func (e *Engine) Speed(species string) float64 {
	sp, ok := e.catalog.Get(species)
	if !ok {
		return e.tuning.BaseSpeed
	}
	return e.tuning.BaseSpeed * sp.SpeedFactor * math.Pow(e.tuning.TierSpeedRatio, float64(sp.ThreatTier-1))
}

// Register creates the position record for a freshly spawned predator.
//
// Postcondition: roaming predators start inside the neutral zone in StateRoaming;
// direct-spawn predators start in StateApproaching toward opts.Target.
func (e *Engine) Register(id, species string, spawnPos Vec3, now time.Time, opts RegisterOptions) error {
	if _, exists := e.positions[id]; exists {
		return fmt.Errorf("behavior.Engine.Register: predator %q already registered", id)
	}
	p := &Position{ID: id, Species: species}
	if opts.Roaming {
		start := e.tuning.NeutralZone.Clamp(spawnPos)
		p.Current, p.Spawn = start, start
		p.State = StateRoaming
		p.RoamTarget = e.tuning.NeutralZone.RandomPoint(e.src)
		p.RoamEndTime = now.Add(e.tuning.RoamDuration)
	} else {
		p.Current, p.Spawn = spawnPos, spawnPos
		p.State = StateApproaching
		p.Target = opts.Target
		p.CoopCenter = opts.Target
	}
	e.positions[id] = p
	return nil
}

// Remove deletes the position for id. Removing an unknown id is a no-op.
func (e *Engine) Remove(id string) {
	delete(e.positions, id)
}

// Position returns a copy of the position for id.
func (e *Engine) Position(id string) (Position, bool) {
	p, ok := e.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Count returns the number of registered positions.
func (e *Engine) Count() int { return len(e.positions) }

func (e *Engine) get(id string, want ...State) (*Position, error) {
	p, ok := e.positions[id]
	if !ok {
		return nil, fmt.Errorf("predator %q: %w", id, ErrNotFound)
	}
	if len(want) == 0 {
		return p, nil
	}
	for _, s := range want {
		if p.State == s {
			return p, nil
		}
	}
	return nil, fmt.Errorf("predator %q is %s: %w", id, p.State, ErrInvalidState)
}

// Step advances id by dt according to its current behavior state.
func (e *Engine) Step(id string, now time.Time, dt time.Duration) error {
	p, err := e.get(id)
	if err != nil {
		return err
	}
	switch p.State {
	case StateRoaming:
		return e.UpdateRoaming(id, now, dt)
	case StateAttacking:
		return e.UpdatePatrol(id, dt)
	default:
		return e.UpdatePosition(id, dt)
	}
}

// UpdatePosition moves a stalking or approaching predator toward its target.
//
// Postcondition: the predator never passes its target; TravelTime grows by dt
// while approaching.
func (e *Engine) UpdatePosition(id string, dt time.Duration) error {
	p, err := e.get(id, StateStalking, StateApproaching)
	if err != nil {
		return err
	}
	speed := e.Speed(p.Species)
	if p.State == StateStalking {
		if p.Current.Dist(p.CoopCenter) <= e.tuning.StalkDistance {
			return nil
		}
		step := speed * e.tuning.StalkSpeedFactor * dt.Seconds()
		// Stop at the stalking ring rather than the coop itself.
		remaining := p.Current.Dist(p.CoopCenter) - e.tuning.StalkDistance
		p.Current = p.Current.MoveToward(p.CoopCenter, math.Min(step, remaining))
		return nil
	}
	p.Current = p.Current.MoveToward(p.Target, speed*dt.Seconds())
	p.TravelTime += dt
	return nil
}

// HasReachedCoop reports whether an approaching predator has travelled for the
// full approach time.
func (e *Engine) HasReachedCoop(id string) (bool, error) {
	p, err := e.get(id)
	if err != nil {
		return false, err
	}
	return p.State == StateApproaching && p.TravelTime >= e.tuning.ApproachTime, nil
}

// UpdateRoaming wanders a roaming predator toward its roam target, picking a
// new target once it arrives.
//
// Postcondition: the position stays inside the neutral zone.
func (e *Engine) UpdateRoaming(id string, now time.Time, dt time.Duration) error {
	p, err := e.get(id, StateRoaming)
	if err != nil {
		return err
	}
	step := e.Speed(p.Species) * e.tuning.RoamSpeedFactor * dt.Seconds()
	p.Current = e.tuning.NeutralZone.Clamp(p.Current.MoveToward(p.RoamTarget, step))
	if p.Current.Dist(p.RoamTarget) <= e.tuning.ReachDistance {
		p.RoamTarget = e.tuning.NeutralZone.RandomPoint(e.src)
	}
	return nil
}

// ShouldSeekTarget reports whether a roaming predator's wander deadline has passed.
func (e *Engine) ShouldSeekTarget(id string, now time.Time) (bool, error) {
	p, err := e.get(id)
	if err != nil {
		return false, err
	}
	return p.State == StateRoaming && !now.Before(p.RoamEndTime), nil
}

// StartStalking moves a roaming predator into StateStalking against area.
func (e *Engine) StartStalking(id string, area Area, now time.Time) error {
	p, err := e.get(id, StateRoaming)
	if err != nil {
		return err
	}
	p.State = StateStalking
	p.IsStalking = true
	p.StalkStart = now
	p.TargetArea = area.PlayerID
	p.CoopCenter = area.Center
	p.Target = area.Center
	e.logger.Debug("predator stalking",
		zap.String("id", id),
		zap.String("area", area.PlayerID),
	)
	return nil
}

// ShouldApproach reports whether a stalker has stalked long enough to approach.
func (e *Engine) ShouldApproach(id string, now time.Time) (bool, error) {
	p, err := e.get(id)
	if err != nil {
		return false, err
	}
	return p.State == StateStalking && now.Sub(p.StalkStart) >= e.tuning.StalkDuration, nil
}

// StartApproaching moves a stalking predator into StateApproaching toward target.
//
// Postcondition: IsStalking is false; TravelTime restarts at zero.
func (e *Engine) StartApproaching(id string, target Vec3) error {
	p, err := e.get(id, StateStalking)
	if err != nil {
		return err
	}
	p.State = StateApproaching
	p.IsStalking = false
	p.Target = target
	p.TravelTime = 0
	return nil
}

// StartAttacking moves an approaching predator into StateAttacking.
func (e *Engine) StartAttacking(id string) error {
	p, err := e.get(id, StateApproaching)
	if err != nil {
		return err
	}
	p.State = StateAttacking
	p.HasWaypoint = false
	return nil
}

// UpdateChickenPresence records whether the attacked coop still has chickens.
//
// Postcondition: NoChickensSince is set on the first empty observation and
// cleared whenever chickens are present.
func (e *Engine) UpdateChickenPresence(id string, hasChickens bool, now time.Time) error {
	p, err := e.get(id, StateAttacking)
	if err != nil {
		return err
	}
	switch {
	case hasChickens:
		p.NoChickensSince = time.Time{}
	case p.NoChickensSince.IsZero():
		p.NoChickensSince = now
	}
	return nil
}

// ShouldDespawn reports whether the coop has been empty for the despawn grace.
func (e *Engine) ShouldDespawn(id string, now time.Time) (bool, error) {
	p, err := e.get(id)
	if err != nil {
		return false, err
	}
	if p.State != StateAttacking || p.NoChickensSince.IsZero() {
		return false, nil
	}
	return now.Sub(p.NoChickensSince) >= e.tuning.DespawnGrace, nil
}

// NextPatrolWaypoint picks a new waypoint on the patrol ring around the coop.
//
// Postcondition: the waypoint lies PatrolRadius from CoopCenter on the XZ plane.
func (e *Engine) NextPatrolWaypoint(id string) (Vec3, error) {
	p, err := e.get(id, StateAttacking)
	if err != nil {
		return Vec3{}, err
	}
	angle := e.src.Float64() * 2 * math.Pi
	p.Waypoint = p.CoopCenter.Add(Vec3{
		X: math.Cos(angle) * e.tuning.PatrolRadius,
		Z: math.Sin(angle) * e.tuning.PatrolRadius,
	})
	p.HasWaypoint = true
	return p.Waypoint, nil
}

// UpdatePatrol moves an attacking predator between waypoints around the coop.
func (e *Engine) UpdatePatrol(id string, dt time.Duration) error {
	p, err := e.get(id, StateAttacking)
	if err != nil {
		return err
	}
	if !p.HasWaypoint {
		if _, err := e.NextPatrolWaypoint(id); err != nil {
			return err
		}
	}
	p.Current = p.Current.MoveToward(p.Waypoint, e.Speed(p.Species)*dt.Seconds())
	if p.Current.Dist(p.Waypoint) <= e.tuning.ReachDistance {
		p.HasWaypoint = false
	}
	return nil
}
