package threat

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/catalog"
)

// AlertType is what happened to the predator.
type AlertType string

const (
	AlertApproaching AlertType = "approaching"
	AlertAttacking   AlertType = "attacking"
	AlertEscaped     AlertType = "escaped"
	AlertDefeated    AlertType = "defeated"
	AlertCaught      AlertType = "caught"
)

// Alert is a presentation record for one predator event.
type Alert struct {
	Type       AlertType
	PlayerID   string
	PredatorID string
	Species    string
	ThreatTier catalog.ThreatTier
	Message    string
	Urgent     bool
}

// IsUrgent applies the urgency rule: approaching and attacking alerts are always
// urgent, and so is any alert about a top-three tier species.
func IsUrgent(t AlertType, tier catalog.ThreatTier) bool {
	return t == AlertApproaching || t == AlertAttacking || tier.IsTopThree()
}

// NewAlert builds the alert for species. Unknown species get tier 0 and their raw name.
func NewAlert(t AlertType, species string, c *catalog.Catalog) Alert {
	name := species
	var tier catalog.ThreatTier
	if sp, ok := c.Get(species); ok {
		tier = sp.ThreatTier
		if sp.DisplayName != "" {
			name = sp.DisplayName
		}
	}
	return Alert{
		Type:       t,
		Species:    species,
		ThreatTier: tier,
		Message:    message(t, name),
		Urgent:     IsUrgent(t, tier),
	}
}

func message(t AlertType, name string) string {
	switch t {
	case AlertApproaching:
		return fmt.Sprintf("A %s is approaching your coop!", name)
	case AlertAttacking:
		return fmt.Sprintf("A %s is attacking your coop!", name)
	case AlertEscaped:
		return fmt.Sprintf("The %s got away.", name)
	case AlertDefeated:
		return fmt.Sprintf("You drove off the %s.", name)
	case AlertCaught:
		return fmt.Sprintf("Your trap caught the %s!", name)
	default:
		return name
	}
}

// Sink receives alerts.
type Sink interface {
	Emit(Alert)
}

// LogSink writes alerts to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

// Emit logs a at info, or warn when urgent.
func (s LogSink) Emit(a Alert) {
	fields := []zap.Field{
		zap.String("type", string(a.Type)),
		zap.String("player", a.PlayerID),
		zap.String("predator", a.PredatorID),
		zap.String("species", a.Species),
		zap.Int("tier", int(a.ThreatTier)),
	}
	if a.Urgent {
		s.Logger.Warn(a.Message, fields...)
		return
	}
	s.Logger.Info(a.Message, fields...)
}

// MemorySink keeps the most recent alerts in memory.
//
// Concurrency: safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	limit  int
	alerts []Alert
}

// NewMemorySink returns a sink retaining at most limit alerts; limit <= 0 means unbounded.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{limit: limit}
}

// Emit appends a, dropping the oldest alert when full.
func (m *MemorySink) Emit(a Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	if m.limit > 0 && len(m.alerts) > m.limit {
		m.alerts = append(m.alerts[:0:0], m.alerts[len(m.alerts)-m.limit:]...)
	}
}

// Alerts returns a copy of the retained alerts, oldest first.
func (m *MemorySink) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Multi fans alerts out to several sinks.
type Multi []Sink

// Emit forwards a to every sink.
func (ms Multi) Emit(a Alert) {
	for _, s := range ms {
		s.Emit(a)
	}
}
