package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/session"
)

// WaveDirector starts a new wave on every session that has begun spawning,
// once per interval.
type WaveDirector struct {
	interval time.Duration
	registry *session.Registry
	pacing   *Pacing
	logger   *zap.Logger
}

// NewWaveDirector creates a WaveDirector.
//
// Precondition: interval must be > 0; registry, pacing and logger must be non-nil.
func NewWaveDirector(interval time.Duration, registry *session.Registry, pacing *Pacing, logger *zap.Logger) *WaveDirector {
	if interval <= 0 {
		panic("gameserver.NewWaveDirector: interval must be > 0")
	}
	return &WaveDirector{
		interval: interval,
		registry: registry,
		pacing:   pacing,
		logger:   logger,
	}
}

// AdvanceAll starts the next wave on each session whose first wave has begun.
// Sessions still at wave 0 are left alone.
//
// Postcondition: Returns the number of sessions advanced.
func (d *WaveDirector) AdvanceAll() int {
	advanced := 0
	for _, sess := range d.registry.Sessions() {
		wave := sess.Wave()
		if wave == 0 {
			continue
		}
		step := d.pacing.DifficultyStep(wave+1, sess.PlayerLevel())
		sess.AdvanceWave(step)
		advanced++
		d.logger.Info("wave started",
			zap.String("session", sess.ID()),
			zap.Int("wave", wave+1),
			zap.Float64("step", step),
			zap.Float64("difficulty", sess.Difficulty()),
		)
	}
	return advanced
}

// Run calls AdvanceAll every interval until ctx is cancelled.
//
// Postcondition: Returns nil once ctx is done.
func (d *WaveDirector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.AdvanceAll()
		}
	}
}
