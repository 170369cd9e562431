// Package session runs the predator simulation for one game session. A Session
// owns the spawn roster, predator positions, and every participating player's
// coop; a Registry tracks the live sessions.
package session

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/attack"
	"github.com/cory-johannsen/henhouse/internal/game/behavior"
	"github.com/cory-johannsen/henhouse/internal/game/capture"
	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
	"github.com/cory-johannsen/henhouse/internal/game/spawn"
	"github.com/cory-johannsen/henhouse/internal/game/threat"
)

// Config holds the per-session simulation settings.
type Config struct {
	Spawn    spawn.Tuning
	Behavior behavior.Tuning
	// Protection is how long a freshly placed chicken cannot be taken.
	Protection time.Duration
	// AttackInterval is the minimum time between two attacks by one predator.
	AttackInterval time.Duration
	// SpawnRadius is how far from the coop center a direct spawn appears.
	SpawnRadius float64
	// RoamingChance is the probability that a natural spawn roams even when a coop is available.
	RoamingChance float64
	FeedBuffer    int
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		Spawn:          spawn.DefaultTuning(),
		Behavior:       behavior.DefaultTuning(),
		Protection:     attack.DefaultProtectionPeriod,
		AttackInterval: 3 * time.Second,
		SpawnRadius:    40,
		RoamingChance:  0.3,
		FeedBuffer:     64,
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Catalog *catalog.Catalog
	Source  dice.Source
	// Sink receives every alert; nil logs alerts through Logger.
	Sink   threat.Sink
	Logger *zap.Logger
	Config Config
}

// Encounter is a finished predator lifecycle, reported once when the record is
// cleaned up.
type Encounter struct {
	SessionID  string
	PredatorID string
	Species    string
	PlayerID   string
	Outcome    spawn.CoarseState
	SpawnedAt  time.Time
	EndedAt    time.Time
}

// AttackReport is one attack attempted during a tick.
type AttackReport struct {
	PredatorID string
	PlayerID   string
	Result     attack.Result
}

// TickReport summarizes one Tick.
type TickReport struct {
	Spawned []spawn.Predator
	Attacks []AttackReport
	Ended   []Encounter
}

// TrapOutcome is one trap roll from ResolveTraps.
type TrapOutcome struct {
	TrapID      string
	PredatorID  string
	Probability float64
	Caught      bool
}

type coop struct {
	defender *attack.Defender
	center   behavior.Vec3
}

// Session is the simulation context for one game session.
//
// Concurrency: every exported method is safe for concurrent use; calls are
// serialized by the session's own mutex.
type Session struct {
	mu sync.Mutex

	id         string
	cfg        Config
	catalog    *catalog.Catalog
	src        dice.Source
	sink       threat.Sink
	logger     *zap.Logger
	scheduler  *spawn.Scheduler
	engine     *behavior.Engine
	resolver   *attack.Resolver
	state      *spawn.State
	coops      map[string]*coop
	order      []string
	next       int
	lastAttack map[string]time.Time
	feeds      map[string]*Feed
}

// New creates an empty Session for a player of playerLevel.
//
// Precondition: deps.Catalog, deps.Source and deps.Logger must be non-nil.
func New(id string, playerLevel int, deps Deps) *Session {
	logger := deps.Logger.With(zap.String("session", id))
	sink := deps.Sink
	if sink == nil {
		sink = threat.LogSink{Logger: logger}
	}
	feeds := make(map[string]*Feed)
	sched := spawn.NewScheduler(deps.Catalog, deps.Config.Spawn, deps.Source, logger)
	return &Session{
		id:         id,
		cfg:        deps.Config,
		catalog:    deps.Catalog,
		src:        deps.Source,
		sink:       threat.Multi{sink, feedSink{feeds: feeds, logger: logger}},
		logger:     logger,
		scheduler:  sched,
		engine:     behavior.NewEngine(deps.Catalog, deps.Config.Behavior, deps.Source, logger),
		resolver:   attack.NewResolver(deps.Catalog, sched, deps.Source, deps.Config.Protection, logger),
		state:      spawn.NewState(playerLevel),
		coops:      make(map[string]*coop),
		lastAttack: make(map[string]time.Time),
		feeds:      feeds,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AddDefender registers a player's coop centered at center.
//
// Postcondition: Returns an error if the player already has a coop in this session.
func (s *Session) AddDefender(d *attack.Defender, center behavior.Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.coops[d.PlayerID]; exists {
		return fmt.Errorf("player %q already defending", d.PlayerID)
	}
	s.coops[d.PlayerID] = &coop{defender: d, center: center}
	s.order = append(s.order, d.PlayerID)
	return nil
}

// RemoveDefender drops a player's coop and closes their feed. Predators hunting
// that coop escape on the next tick.
func (s *Session) RemoveDefender(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.coops[playerID]; !exists {
		return fmt.Errorf("player %q not found", playerID)
	}
	delete(s.coops, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if len(s.order) == 0 || s.next >= len(s.order) {
		s.next = 0
	}
	if f, ok := s.feeds[playerID]; ok {
		_ = f.Close()
		delete(s.feeds, playerID)
	}
	return nil
}

func (s *Session) coopFor(playerID string) (*coop, error) {
	c, ok := s.coops[playerID]
	if !ok {
		return nil, fmt.Errorf("player %q not found", playerID)
	}
	return c, nil
}

// PlaceChicken adds a chicken to playerID's coop.
func (s *Session) PlaceChicken(playerID string, chicken attack.PlacedChicken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.coopFor(playerID)
	if err != nil {
		return err
	}
	c.defender.Place(chicken)
	return nil
}

// AddTrap places a trap in playerID's coop.
//
// Precondition: trap.Type must name a catalog trap.
func (s *Session) AddTrap(playerID string, trap *attack.Trap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.coopFor(playerID)
	if err != nil {
		return err
	}
	if _, ok := s.catalog.Trap(trap.Type); !ok {
		return fmt.Errorf("unknown trap type %q", trap.Type)
	}
	c.defender.Traps = append(c.defender.Traps, trap)
	return nil
}

// EquipWeapon sets playerID's bat. A nil weapon means bare-handed.
func (s *Session) EquipWeapon(playerID string, w *attack.Weapon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.coopFor(playerID)
	if err != nil {
		return err
	}
	c.defender.Weapon = w
	return nil
}

// SetResistance sets the chance in [0, 1] that an attack on playerID is blocked.
func (s *Session) SetResistance(playerID string, resistance float64) error {
	if resistance < 0 || resistance > 1 {
		return fmt.Errorf("resistance %.2f out of range [0, 1]", resistance)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.coopFor(playerID)
	if err != nil {
		return err
	}
	c.defender.Resistance = resistance
	return nil
}

// Chickens returns a copy of playerID's placed chickens.
func (s *Session) Chickens(playerID string) []attack.PlacedChicken {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coops[playerID]
	if !ok {
		return nil
	}
	out := make([]attack.PlacedChicken, len(c.defender.Chickens))
	copy(out, c.defender.Chickens)
	return out
}

// Subscribe opens an alert feed for playerID, replacing any previous one.
func (s *Session) Subscribe(playerID string) (*Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.coopFor(playerID); err != nil {
		return nil, err
	}
	if old, ok := s.feeds[playerID]; ok {
		_ = old.Close()
	}
	f := NewFeed(playerID, s.cfg.FeedBuffer)
	s.feeds[playerID] = f
	return f, nil
}

// Tick advances the simulation to now. dt is the time since the previous tick and
// timeOfDay the clock's spawn interval multiplier.
//
// Postcondition: the pipeline runs in order cleanup, spawn, movement,
// promotions, attacks. Report.Ended lists every record removed by cleanup.
func (s *Session) Tick(now time.Time, dt time.Duration, timeOfDay float64) TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report TickReport
	s.cleanup(&report)
	s.spawnNatural(now, timeOfDay, &report)
	s.move(now, dt)
	s.promote(now)
	s.attack(now, &report)
	return report
}

func (s *Session) cleanup(report *TickReport) {
	for _, p := range spawn.Cleanup(s.state) {
		s.engine.Remove(p.ID)
		delete(s.lastAttack, p.ID)
		report.Ended = append(report.Ended, Encounter{
			SessionID:  s.id,
			PredatorID: p.ID,
			Species:    p.Species,
			PlayerID:   p.TargetPlayerID,
			Outcome:    p.State,
			SpawnedAt:  p.SpawnTime,
			EndedAt:    p.StateChangedAt,
		})
	}
}

func (s *Session) spawnNatural(now time.Time, timeOfDay float64, report *TickReport) {
	if !s.scheduler.ShouldSpawn(s.state, now, timeOfDay) {
		return
	}
	target, found := s.nextTarget()
	roam := !found || s.src.Float64() < s.cfg.RoamingChance
	playerID := ""
	if !roam {
		playerID = target.defender.PlayerID
	}
	res := s.scheduler.Spawn(s.state, now, timeOfDay, playerID, "")
	if !res.Success {
		s.logger.Debug("natural spawn skipped", zap.String("reason", res.Message))
		return
	}
	if roam {
		target = nil
	}
	if err := s.place(res.Predator, target, now); err != nil {
		s.logger.Error("placing predator", zap.String("id", res.Predator.ID), zap.Error(err))
		s.scheduler.MarkEscaped(s.state, res.Predator.ID, now)
		return
	}
	report.Spawned = append(report.Spawned, *res.Predator)
}

// place registers the position for a new record. A nil target roams.
func (s *Session) place(p *spawn.Predator, target *coop, now time.Time) error {
	tuning := s.engine.Tuning()
	if target == nil {
		return s.engine.Register(p.ID, p.Species, tuning.NeutralZone.RandomPoint(s.src), now,
			behavior.RegisterOptions{Roaming: true})
	}
	angle := s.src.Float64() * 2 * math.Pi
	from := target.center.Add(behavior.Vec3{
		X: math.Cos(angle) * s.cfg.SpawnRadius,
		Z: math.Sin(angle) * s.cfg.SpawnRadius,
	})
	if err := s.engine.Register(p.ID, p.Species, from, now, behavior.RegisterOptions{Target: target.center}); err != nil {
		return err
	}
	s.scheduler.UpdatePredatorState(s.state, p.ID, spawn.StateApproaching, now)
	s.emit(threat.AlertApproaching, p)
	return nil
}

// nextTarget picks the next coop with chickens, round-robin in join order.
func (s *Session) nextTarget() (*coop, bool) {
	n := len(s.order)
	for i := 0; i < n; i++ {
		idx := (s.next + i) % n
		c := s.coops[s.order[idx]]
		if c.defender.HasChickens() {
			s.next = (idx + 1) % n
			return c, true
		}
	}
	return nil, false
}

func (s *Session) move(now time.Time, dt time.Duration) {
	for _, p := range s.state.Active {
		// Predators placed during this tick start moving on the next one.
		if p.State.IsTerminal() || p.SpawnTime.Equal(now) {
			continue
		}
		if err := s.engine.Step(p.ID, now, dt); err != nil {
			s.logger.Debug("predator step", zap.String("id", p.ID), zap.Error(err))
		}
	}
}

func (s *Session) promote(now time.Time) {
	for _, p := range s.state.Active {
		if p.State.IsTerminal() {
			continue
		}
		pos, ok := s.engine.Position(p.ID)
		if !ok {
			continue
		}
		switch pos.State {
		case behavior.StateRoaming:
			s.seek(p, now)
		case behavior.StateStalking:
			ready, _ := s.engine.ShouldApproach(p.ID, now)
			if !ready {
				continue
			}
			c, found := s.coops[p.TargetPlayerID]
			if !found {
				s.forceEscape(p, now)
				continue
			}
			if err := s.engine.StartApproaching(p.ID, c.center); err != nil {
				s.logger.Debug("start approaching", zap.String("id", p.ID), zap.Error(err))
				continue
			}
			s.scheduler.UpdatePredatorState(s.state, p.ID, spawn.StateApproaching, now)
			s.emit(threat.AlertApproaching, p)
		case behavior.StateApproaching:
			reached, _ := s.engine.HasReachedCoop(p.ID)
			if !reached && (p.Roaming || !s.scheduler.ReadyToAttack(p, now)) {
				continue
			}
			if err := s.engine.StartAttacking(p.ID); err != nil {
				s.logger.Debug("start attacking", zap.String("id", p.ID), zap.Error(err))
				continue
			}
			s.scheduler.UpdatePredatorState(s.state, p.ID, spawn.StateAttacking, now)
			s.emit(threat.AlertAttacking, p)
		case behavior.StateAttacking:
			c, found := s.coops[p.TargetPlayerID]
			if !found {
				s.forceEscape(p, now)
				continue
			}
			_ = s.engine.UpdateChickenPresence(p.ID, c.defender.HasChickens(), now)
			if gone, _ := s.engine.ShouldDespawn(p.ID, now); gone {
				s.forceEscape(p, now)
			}
		}
	}
}

func (s *Session) seek(p *spawn.Predator, now time.Time) {
	ready, _ := s.engine.ShouldSeekTarget(p.ID, now)
	if !ready {
		return
	}
	c, found := s.nextTarget()
	if !found {
		// Nothing to hunt: give up once the grace after the roam has passed.
		if pos, ok := s.engine.Position(p.ID); ok && now.Sub(pos.RoamEndTime) >= s.engine.Tuning().DespawnGrace {
			s.forceEscape(p, now)
		}
		return
	}
	area := behavior.Area{PlayerID: c.defender.PlayerID, Center: c.center}
	if err := s.engine.StartStalking(p.ID, area, now); err != nil {
		s.logger.Debug("start stalking", zap.String("id", p.ID), zap.Error(err))
		return
	}
	pinned := ""
	if victims := c.defender.EligibleChickens(now, s.resolver.Protection()); len(victims) > 0 {
		pinned = victims[s.src.Intn(len(victims))].ID
	}
	spawn.AssignTarget(s.state, p.ID, area.PlayerID, pinned)
}

func (s *Session) attack(now time.Time, report *TickReport) {
	for _, p := range s.state.Active {
		if p.State != spawn.StateAttacking {
			continue
		}
		if last, ok := s.lastAttack[p.ID]; ok && now.Sub(last) < s.cfg.AttackInterval {
			continue
		}
		c, found := s.coops[p.TargetPlayerID]
		if !found {
			continue
		}
		res := s.resolver.ExecuteAttack(c.defender, s.state, p.ID, now)
		s.lastAttack[p.ID] = now
		report.Attacks = append(report.Attacks, AttackReport{
			PredatorID: p.ID,
			PlayerID:   c.defender.PlayerID,
			Result:     res,
		})
		if res.PredatorEscaped {
			s.emit(threat.AlertEscaped, p)
		}
	}
}

func (s *Session) forceEscape(p *spawn.Predator, now time.Time) {
	if p.State.IsTerminal() {
		return
	}
	if res := s.scheduler.MarkEscaped(s.state, p.ID, now); res.Success {
		s.emit(threat.AlertEscaped, p)
	}
}

func (s *Session) emit(t threat.AlertType, p *spawn.Predator) {
	a := threat.NewAlert(t, p.Species, s.catalog)
	a.PlayerID = p.TargetPlayerID
	a.PredatorID = p.ID
	s.sink.Emit(a)
}

// SwingBat hits predatorID with playerID's weapon.
//
// Postcondition: fails unless the predator is hunting playerID's coop; emits a
// defeated alert when the hit defeats it.
func (s *Session) SwingBat(playerID, predatorID string, now time.Time) spawn.BatHitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.coops[playerID]
	if !found {
		return spawn.BatHitResult{Result: spawn.Result{Message: "Player not found", Failure: spawn.FailureNotFound}}
	}
	p, found := spawn.FindPredator(s.state, predatorID)
	if !found {
		return spawn.BatHitResult{Result: spawn.Result{Message: "Predator not found", Failure: spawn.FailureNotFound}}
	}
	if p.TargetPlayerID != playerID {
		return spawn.BatHitResult{Result: spawn.Result{Message: "Predator is not at your coop", Failure: spawn.FailureInvalidState}}
	}
	res := s.scheduler.ApplyBatHit(s.state, predatorID, c.defender.WeaponDamage(), now)
	if res.Defeated {
		s.emit(threat.AlertDefeated, p)
	}
	return res
}

// ResolveTraps rolls every armed trap in playerID's coop against the first
// attacking predator it can reach.
//
// Postcondition: a trap that catches is disarmed until now + its cooldown and
// remembers the predator; a miss leaves it armed.
func (s *Session) ResolveTraps(playerID string, now time.Time) []TrapOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.coops[playerID]
	if !found {
		return nil
	}
	var outcomes []TrapOutcome
	for _, tr := range c.defender.Traps {
		if !tr.Ready(now) {
			continue
		}
		tt, ok := s.catalog.Trap(tr.Type)
		if !ok {
			s.logger.Warn("unknown trap type", zap.String("trap", tr.ID), zap.String("type", tr.Type))
			continue
		}
		for _, p := range s.state.Active {
			if p.State != spawn.StateAttacking || p.TargetPlayerID != playerID {
				continue
			}
			sp, ok := s.catalog.Get(p.Species)
			if !ok {
				continue
			}
			out := TrapOutcome{TrapID: tr.ID, PredatorID: p.ID, Probability: capture.CatchProbability(tt, sp)}
			if capture.AttemptCatch(s.src, tt, sp) {
				s.scheduler.MarkCaught(s.state, p.ID, now)
				tr.CaughtPredator = p.ID
				tr.CooldownEndTime = now.Add(tt.Cooldown)
				out.Caught = true
				s.emit(threat.AlertCaught, p)
			}
			outcomes = append(outcomes, out)
			break
		}
	}
	return outcomes
}

// ForceSpawn creates species outside the spawn timer. An empty playerID roams.
func (s *Session) ForceSpawn(species, playerID string, now time.Time) spawn.SpawnResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var target *coop
	if playerID != "" {
		c, found := s.coops[playerID]
		if !found {
			return spawn.SpawnResult{Result: spawn.Result{Message: "Player not found", Failure: spawn.FailureNotFound}}
		}
		target = c
	}
	res := s.scheduler.ForceSpawn(s.state, species, now, playerID)
	if !res.Success {
		return res
	}
	if err := s.place(res.Predator, target, now); err != nil {
		s.logger.Error("placing predator", zap.String("id", res.Predator.ID), zap.Error(err))
		s.scheduler.MarkEscaped(s.state, res.Predator.ID, now)
		return spawn.SpawnResult{Result: spawn.Result{Message: err.Error(), Failure: spawn.FailureInvalidState}}
	}
	return res
}

// ForceEscape cancels a predator by moving it to escaped.
func (s *Session) ForceEscape(predatorID string, now time.Time) spawn.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := spawn.FindPredator(s.state, predatorID)
	if !found {
		return spawn.Result{Message: "Predator not found", Failure: spawn.FailureNotFound}
	}
	wasTerminal := p.State.IsTerminal()
	res := s.scheduler.MarkEscaped(s.state, predatorID, now)
	if res.Success && !wasTerminal {
		s.emit(threat.AlertEscaped, p)
	}
	return res
}

// AdvanceWave starts the next wave and raises difficulty by step.
func (s *Session) AdvanceWave(step float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler.AdvanceWave(s.state, step)
}

// Wave returns the current wave; 0 until the first natural spawn.
func (s *Session) Wave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Wave
}

// PlayerLevel returns the level driving spawn limits.
func (s *Session) PlayerLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PlayerLevel
}

// Difficulty returns the current difficulty multiplier.
func (s *Session) Difficulty() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DifficultyMultiplier
}

// SetPlayerLevel raises the player level; lower values are ignored.
func (s *Session) SetPlayerLevel(level int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spawn.SetPlayerLevel(s.state, level)
}

// Summary returns the threat picture for playerID.
func (s *Session) Summary(playerID string, now time.Time) threat.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return threat.Assess(s.scheduler, s.state, playerID, now)
}

// Predators returns copies of every record on the roster, terminal ones included
// until the next cleanup.
func (s *Session) Predators() []spawn.Predator {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]spawn.Predator, 0, len(s.state.Active))
	for _, p := range s.state.Active {
		out = append(out, *p)
	}
	return out
}

// Position returns the position of predatorID.
func (s *Session) Position(predatorID string) (behavior.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Position(predatorID)
}
