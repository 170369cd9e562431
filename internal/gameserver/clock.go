package gameserver

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimePeriod is a named phase of the game day.
type TimePeriod string

const (
	PeriodNight TimePeriod = "Night"
	PeriodDawn  TimePeriod = "Dawn"
	PeriodDay   TimePeriod = "Day"
	PeriodDusk  TimePeriod = "Dusk"
)

// Spawn interval multipliers per period. Below 1 spawns faster.
const (
	NightMultiplier      = 0.5
	DayMultiplier        = 2.0
	TransitionMultiplier = 1.0
)

// GameHour is a game-clock hour in [0, 23].
type GameHour int32

// Period returns the named time period for this hour.
//
// Precondition: h is in [0, 23].
// Postcondition: Returns one of the four TimePeriod constants.
func (h GameHour) Period() TimePeriod {
	switch {
	case h >= 20 || h < 6:
		return PeriodNight
	case h < 8:
		return PeriodDawn
	case h < 18:
		return PeriodDay
	default: // 18-19
		return PeriodDusk
	}
}

// String returns the hour in "HH:00" format.
func (h GameHour) String() string {
	return fmt.Sprintf("%02d:00", int(h))
}

// TimeOfDayMultiplier returns the spawn interval multiplier for h: predators
// come faster at night and slower by day.
//
// Postcondition: Returns NightMultiplier, DayMultiplier or TransitionMultiplier.
func TimeOfDayMultiplier(h GameHour) float64 {
	switch h.Period() {
	case PeriodNight:
		return NightMultiplier
	case PeriodDay:
		return DayMultiplier
	default:
		return TransitionMultiplier
	}
}

// DayClock advances the game hour and broadcasts each new hour to subscribers.
type DayClock struct {
	hour         int32
	tickInterval time.Duration
	mu           sync.Mutex
	subscribers  map[chan<- GameHour]struct{}
}

// NewDayClock creates a stopped DayClock starting at startHour.
//
// Precondition: tickInterval > 0.
// Postcondition: Returns a non-nil *DayClock with hour startHour mod 24.
func NewDayClock(startHour int32, tickInterval time.Duration) *DayClock {
	if tickInterval <= 0 {
		panic("gameserver.NewDayClock: tickInterval must be > 0")
	}
	h := startHour % 24
	if h < 0 {
		h += 24
	}
	return &DayClock{
		hour:         h,
		tickInterval: tickInterval,
		subscribers:  make(map[chan<- GameHour]struct{}),
	}
}

// CurrentHour returns the current game hour.
func (c *DayClock) CurrentHour() GameHour {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GameHour(c.hour)
}

// Subscribe registers ch to receive the new GameHour after every advance.
// A full channel drops the hour for that subscriber.
//
// Precondition: ch must not be nil.
func (c *DayClock) Subscribe(ch chan<- GameHour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (c *DayClock) Unsubscribe(ch chan<- GameHour) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, ch)
}

// Advance moves the clock forward one hour and notifies subscribers.
//
// Postcondition: Returns the new hour.
func (c *DayClock) Advance() GameHour {
	c.mu.Lock()
	c.hour = (c.hour + 1) % 24
	h := GameHour(c.hour)
	subs := make([]chan<- GameHour, 0, len(c.subscribers))
	for ch := range c.subscribers {
		subs = append(subs, ch)
	}
	c.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- h:
		default:
		}
	}
	return h
}

// Run advances the clock once per tick interval until ctx is cancelled.
//
// Postcondition: Returns nil once ctx is done.
func (c *DayClock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Advance()
		}
	}
}
