package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/threat"
)

// Feed delivers one player's alerts over a buffered channel.
type Feed struct {
	playerID string
	alerts   chan threat.Alert
	mu       sync.Mutex
	closed   bool
}

// NewFeed creates a Feed for playerID.
//
// Postcondition: Returns a Feed with an open channel of at least one slot.
func NewFeed(playerID string, bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Feed{
		playerID: playerID,
		alerts:   make(chan threat.Alert, bufferSize),
	}
}

// PlayerID returns the subscribing player.
func (f *Feed) PlayerID() string {
	return f.playerID
}

// Push enqueues a without blocking.
//
// Postcondition: Returns an error if the feed is closed or its buffer is full.
func (f *Feed) Push(a threat.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("feed %s is closed", f.playerID)
	}
	select {
	case f.alerts <- a:
		return nil
	default:
		return fmt.Errorf("feed %s alert buffer full", f.playerID)
	}
}

// Alerts returns the receive side of the feed.
func (f *Feed) Alerts() <-chan threat.Alert {
	return f.alerts
}

// Close closes the channel. Safe to call more than once.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.alerts)
	}
	return nil
}

// feedSink routes each alert to the Feed of the player it concerns. Alerts for
// players without a feed, or for a full feed, are dropped.
//
// Concurrency: the owning Session's mutex guards feeds.
type feedSink struct {
	feeds  map[string]*Feed
	logger *zap.Logger
}

func (fs feedSink) Emit(a threat.Alert) {
	f, ok := fs.feeds[a.PlayerID]
	if !ok {
		return
	}
	if err := f.Push(a); err != nil {
		fs.logger.Debug("alert dropped", zap.String("player", a.PlayerID), zap.Error(err))
	}
}
