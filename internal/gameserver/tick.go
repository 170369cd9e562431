package gameserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/session"
)

// ReportHandler receives the report of every session tick at now.
type ReportHandler func(sessionID string, now time.Time, report session.TickReport)

// TickManager advances every live session at a fixed cadence. Sessions are
// ticked sequentially in id order within the manager's goroutine.
//
// Invariant: each session is ticked at most once per interval.
type TickManager struct {
	interval time.Duration
	registry *session.Registry
	clock    *DayClock
	pacing   *Pacing
	logger   *zap.Logger

	mu       sync.Mutex
	handlers []ReportHandler
	last     time.Time
	ticks    atomic.Int64
}

// NewTickManager returns a manager that ticks registry every interval, taking
// the time-of-day multiplier from clock through pacing.
//
// Precondition: interval must be > 0; registry, clock, pacing and logger must be non-nil.
func NewTickManager(interval time.Duration, registry *session.Registry, clock *DayClock, pacing *Pacing, logger *zap.Logger) *TickManager {
	if interval <= 0 {
		panic("gameserver.NewTickManager: interval must be > 0")
	}
	return &TickManager{
		interval: interval,
		registry: registry,
		clock:    clock,
		pacing:   pacing,
		logger:   logger,
	}
}

// OnReport registers h to receive every tick report.
func (m *TickManager) OnReport(h ReportHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Ticks returns how many ticks have run.
func (m *TickManager) Ticks() int64 {
	return m.ticks.Load()
}

// TickOnce ticks every session at now. dt is measured from the previous
// TickOnce, or one interval for the first.
//
// Postcondition: every handler has seen the report of every session.
func (m *TickManager) TickOnce(now time.Time) {
	m.mu.Lock()
	dt := m.interval
	if !m.last.IsZero() && now.After(m.last) {
		dt = now.Sub(m.last)
	}
	m.last = now
	handlers := make([]ReportHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	hour := m.clock.CurrentHour()
	multiplier := m.pacing.TimeOfDayMultiplier(hour)
	for _, sess := range m.registry.Sessions() {
		report := sess.Tick(now, dt, multiplier)
		if len(report.Spawned) > 0 || len(report.Ended) > 0 {
			m.logger.Debug("session ticked",
				zap.String("session", sess.ID()),
				zap.Stringer("hour", hour),
				zap.Int("spawned", len(report.Spawned)),
				zap.Int("attacks", len(report.Attacks)),
				zap.Int("ended", len(report.Ended)),
			)
		}
		for _, h := range handlers {
			h(sess.ID(), now, report)
		}
	}
	m.ticks.Add(1)
}

// Run ticks until ctx is cancelled.
//
// Postcondition: Returns nil once ctx is done.
func (m *TickManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.TickOnce(now)
		}
	}
}
