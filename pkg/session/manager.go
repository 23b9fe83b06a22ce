// Package session keeps the journal of the current trip.
package session

import (
	"sync"
	"time"

	"tripsync/pkg/logging"
	"tripsync/pkg/model"
)

// Manager records the events of the current trip. The navigator resets it
// when a trip starts. Nothing is persisted beyond the event log file.
type Manager struct {
	mu     sync.RWMutex
	events []model.TripEvent
	limit  int
}

// NewManager creates a journal keeping at most limit events (0 means 500).
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = 500
	}
	return &Manager{limit: limit}
}

// AddEvent appends an event and mirrors it to the event log.
func (m *Manager) AddEvent(event *model.TripEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	m.events = append(m.events, *event)
	if len(m.events) > m.limit {
		m.events = m.events[len(m.events)-m.limit:]
	}

	logging.LogEvent(event)
}

// Events returns a copy of the journal, oldest first.
func (m *Manager) Events() []model.TripEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.TripEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Since returns the events recorded strictly after t.
func (m *Manager) Since(t time.Time) []model.TripEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.TripEvent
	for i := range m.events {
		if m.events[i].Timestamp.After(t) {
			out = append(out, m.events[i])
		}
	}
	return out
}

// Count returns how many events of the given type were recorded.
func (m *Manager) Count(typ model.TripEventType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for i := range m.events {
		if m.events[i].Type == typ {
			n++
		}
	}
	return n
}

// Reset clears the journal. Events already mirrored to the log stay there.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
