package attack

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
	"github.com/cory-johannsen/henhouse/internal/game/dice"
	"github.com/cory-johannsen/henhouse/internal/game/spawn"
)

// Result is the outcome of one attack resolution.
type Result struct {
	spawn.Result
	ChickensLost    int
	ChickenIDs      []string
	TotalValueLost  float64
	PredatorEscaped bool
	Blocked         bool
}

func failed(kind spawn.Failure, msg string) Result {
	return Result{Result: spawn.Result{Message: msg, Failure: kind}}
}

// Resolver executes attacks by attacking predators on a defender's coop.
//
// Concurrency: holds no mutable state; the caller must serialize access to the
// *spawn.State and *Defender passed to ExecuteAttack.
type Resolver struct {
	catalog    *catalog.Catalog
	scheduler  *spawn.Scheduler
	src        dice.Source
	protection time.Duration
	logger     *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: c, scheduler, src and logger must be non-nil; protection > 0.
func NewResolver(c *catalog.Catalog, scheduler *spawn.Scheduler, src dice.Source, protection time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		catalog:    c,
		scheduler:  scheduler,
		src:        src,
		protection: protection,
		logger:     logger,
	}
}

// Protection returns the placement grace period.
func (r *Resolver) Protection() time.Duration { return r.protection }

// ExecuteAttack resolves one attack by predator id against defender.
//
// Postcondition: only defender.Chickens and the predator's AttacksRemaining and
// State are modified. A blocked attack succeeds with zero losses and spends no
// engagement budget.
func (r *Resolver) ExecuteAttack(defender *Defender, state *spawn.State, id string, now time.Time) Result {
	p, found := spawn.FindPredator(state, id)
	if !found {
		return failed(spawn.FailureNotFound, "Predator not found")
	}
	if p.State != spawn.StateAttacking {
		return failed(spawn.FailureInvalidState, "Predator is not attacking")
	}
	eligible := defender.EligibleChickens(now, r.protection)
	if len(eligible) == 0 {
		return failed(spawn.FailureNoResources, "No chickens in coop to attack")
	}
	species, ok := r.catalog.Get(p.Species)
	if !ok {
		return failed(spawn.FailureNotFound, "Invalid predator type")
	}

	name := species.DisplayName
	if name == "" {
		name = species.Name
	}

	if r.src.Float64() < defender.Resistance {
		r.logger.Debug("attack blocked",
			zap.String("predator", p.ID),
			zap.String("player", defender.PlayerID),
		)
		return Result{
			Result:  spawn.Result{Success: true, Message: fmt.Sprintf("The %s's attack was blocked.", name)},
			Blocked: true,
		}
	}

	victims := r.selectVictims(eligible, p.TargetChickenID, species.ChickensPerAttack)
	removed := defender.RemoveChickens(victims)

	res := Result{Result: spawn.Result{Success: true}}
	for _, c := range removed {
		res.ChickenIDs = append(res.ChickenIDs, c.ID)
		res.TotalValueLost += c.Value()
	}
	res.ChickensLost = len(removed)

	budget := r.scheduler.DecreaseAttacks(state, p.ID, now)
	res.PredatorEscaped = budget.ShouldEscape

	noun := "chickens"
	if res.ChickensLost == 1 {
		noun = "chicken"
	}
	res.Message = fmt.Sprintf("The %s stole %d %s!", name, res.ChickensLost, noun)
	if res.PredatorEscaped {
		res.Message += fmt.Sprintf(" The %s escaped.", name)
	}

	r.logger.Info("attack resolved",
		zap.String("predator", p.ID),
		zap.String("species", p.Species),
		zap.String("player", defender.PlayerID),
		zap.Int("lost", res.ChickensLost),
		zap.Float64("value_lost", res.TotalValueLost),
		zap.Bool("escaped", res.PredatorEscaped),
	)
	return res
}

// selectVictims returns up to n chicken ids: pinned first when it is still
// eligible, the rest drawn uniformly without replacement.
func (r *Resolver) selectVictims(eligible []PlacedChicken, pinned string, n int) []string {
	ids := make([]string, 0, n)
	rest := eligible
	if pinned != "" {
		for i, c := range eligible {
			if c.ID == pinned {
				ids = append(ids, c.ID)
				rest = make([]PlacedChicken, 0, len(eligible)-1)
				rest = append(rest, eligible[:i]...)
				rest = append(rest, eligible[i+1:]...)
				break
			}
		}
	}
	for _, idx := range dice.SampleWithoutReplacement(r.src, len(rest), n-len(ids)) {
		ids = append(ids, rest[idx].ID)
	}
	return ids
}
