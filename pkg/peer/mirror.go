package peer

import (
	"log/slog"
	"sync"
	"time"
)

const seenCapacity = 256

// MirrorState is the peer's last known view of each domain.
type MirrorState struct {
	Navigation      *NavigationUpdate   `json:"navigation,omitempty"`
	Recommendations *RecommendationPush `json:"recommendations,omitempty"`
	LastCollection  *CollectionNotice   `json:"last_collection,omitempty"`
	Collected       []int               `json:"collected"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Mirror applies incoming messages on the peer device.
type Mirror struct {
	mu       sync.RWMutex
	state    MirrorState
	seen     map[string]struct{}
	seenRing []string
	onChange func(MirrorState)
	logger   *slog.Logger
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		seen:   make(map[string]struct{}, seenCapacity),
		logger: slog.With("component", "peer_mirror"),
	}
}

// OnChange registers a callback invoked after every applied message.
func (m *Mirror) OnChange(fn func(MirrorState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// HandleEnvelope decodes and applies raw envelope bytes. Whatever arrives
// last wins, even when it was sent earlier; repeated ids are ignored.
func (m *Mirror) HandleEnvelope(data []byte) error {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}
	return m.ApplyEnvelope(env)
}

// ApplyEnvelope applies an already decoded envelope.
func (m *Mirror) ApplyEnvelope(env Envelope) error {
	msg, err := env.Message()
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, dup := m.seen[env.ID]; dup {
		m.mu.Unlock()
		m.logger.Debug("Ignoring duplicate envelope", "id", env.ID)
		return nil
	}
	m.remember(env.ID)
	m.commit(msg)
	return nil
}

// Apply overwrites the domain's state with msg.
func (m *Mirror) Apply(msg Message) {
	m.mu.Lock()
	m.commit(msg)
}

// commit must be called with mu held and releases it.
func (m *Mirror) commit(msg Message) {
	switch v := msg.(type) {
	case NavigationUpdate:
		m.state.Navigation = &v
	case RecommendationPush:
		m.state.Recommendations = &v
	case CollectionNotice:
		m.state.LastCollection = &v
		m.addCollected(v.CollectibleID)
	default:
		m.mu.Unlock()
		return
	}
	m.state.UpdatedAt = time.Now()
	snapshot := m.copyState()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// State returns a snapshot of the mirror.
func (m *Mirror) State() MirrorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyState()
}

func (m *Mirror) copyState() MirrorState {
	s := m.state
	s.Collected = append([]int(nil), m.state.Collected...)
	return s
}

func (m *Mirror) addCollected(id int) {
	for _, c := range m.state.Collected {
		if c == id {
			return
		}
	}
	m.state.Collected = append(m.state.Collected, id)
}

func (m *Mirror) remember(id string) {
	if len(m.seenRing) >= seenCapacity {
		delete(m.seen, m.seenRing[0])
		m.seenRing = m.seenRing[1:]
	}
	m.seen[id] = struct{}{}
	m.seenRing = append(m.seenRing, id)
}
