package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/scenario"
	"github.com/cory-johannsen/henhouse/internal/game/session"
	"github.com/cory-johannsen/henhouse/internal/game/threat"
	"github.com/cory-johannsen/henhouse/internal/gameserver"
)

type watchedFeed struct {
	sessionID string
	feed      *session.Feed
}

// alertRelay drains player alert feeds. Every alert is logged at debug under
// its player; urgent ones at warn. Per-player totals are logged when a feed
// closes or the relay stops.
type alertRelay struct {
	logger *zap.Logger
	feeds  []watchedFeed
}

func newAlertRelay(logger *zap.Logger) *alertRelay {
	return &alertRelay{logger: logger}
}

// subscribe opens a feed for every defender sc placed in reg.
//
// Precondition: sc has been applied to reg.
func (r *alertRelay) subscribe(reg *session.Registry, sc *scenario.Scenario) error {
	for _, ss := range sc.Sessions {
		sess, ok := reg.Get(ss.ID)
		if !ok {
			return fmt.Errorf("session %q not found", ss.ID)
		}
		for _, d := range ss.Defenders {
			f, err := sess.Subscribe(d.PlayerID)
			if err != nil {
				return fmt.Errorf("subscribing %s/%s: %w", ss.ID, d.PlayerID, err)
			}
			r.feeds = append(r.feeds, watchedFeed{sessionID: ss.ID, feed: f})
		}
	}
	return nil
}

// Run drains every feed until ctx is cancelled.
func (r *alertRelay) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range r.feeds {
		wg.Add(1)
		go func(w watchedFeed) {
			defer wg.Done()
			r.drain(ctx, w)
		}(w)
	}
	wg.Wait()
	return nil
}

func (r *alertRelay) drain(ctx context.Context, w watchedFeed) {
	logger := r.logger.With(zap.String("session", w.sessionID), zap.String("player", w.feed.PlayerID()))
	totals := make(map[threat.AlertType]int)
	defer func() {
		fields := make([]zap.Field, 0, len(totals))
		for t, n := range totals {
			fields = append(fields, zap.Int(string(t), n))
		}
		logger.Info("alert totals", fields...)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-w.feed.Alerts():
			if !ok {
				return
			}
			totals[a.Type]++
			fields := []zap.Field{
				zap.String("type", string(a.Type)),
				zap.String("species", a.Species),
				zap.String("predator", a.PredatorID),
			}
			if a.Urgent {
				logger.Warn(a.Message, fields...)
				continue
			}
			logger.Debug(a.Message, fields...)
		}
	}
}

// hourLogger reports every hour the clock strikes and each change of period.
type hourLogger struct {
	clock  *gameserver.DayClock
	pacing *gameserver.Pacing
	logger *zap.Logger
	ch     chan gameserver.GameHour
}

// newHourLogger subscribes to clock immediately so no hour struck before Run is missed.
func newHourLogger(clock *gameserver.DayClock, pacing *gameserver.Pacing, logger *zap.Logger) *hourLogger {
	h := &hourLogger{clock: clock, pacing: pacing, logger: logger, ch: make(chan gameserver.GameHour, 4)}
	clock.Subscribe(h.ch)
	return h
}

// Run logs hours until ctx is cancelled, then unsubscribes.
func (h *hourLogger) Run(ctx context.Context) error {
	defer h.clock.Unsubscribe(h.ch)
	period := h.clock.CurrentHour().Period()
	for {
		select {
		case <-ctx.Done():
			return nil
		case hour := <-h.ch:
			multiplier := h.pacing.TimeOfDayMultiplier(hour)
			h.logger.Debug("hour struck", zap.Stringer("hour", hour), zap.Float64("spawn_multiplier", multiplier))
			if p := hour.Period(); p != period {
				h.logger.Info("period changed",
					zap.String("from", string(period)),
					zap.String("to", string(p)),
					zap.Float64("spawn_multiplier", multiplier),
				)
				period = p
			}
		}
	}
}
