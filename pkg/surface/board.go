package surface

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Card is the board's view of one status card.
type Card struct {
	Handle    Handle    `json:"handle"`
	Snapshot  Snapshot  `json:"snapshot"`
	Active    bool      `json:"active"`
	OpenedAt  time.Time `json:"opened_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Updates   int       `json:"updates"`
}

// Board is an in-process Surface holding at most one card. The HTTP API
// serves it to whatever renders the card.
type Board struct {
	mu      sync.RWMutex
	enabled bool
	card    *Card
}

// NewBoard creates a board. A disabled board refuses Open.
func NewBoard(enabled bool) *Board {
	return &Board{enabled: enabled}
}

func (b *Board) Open(ctx context.Context, s Snapshot) (Handle, error) {
	if !b.enabled {
		return "", ErrDisabled
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.card = &Card{
		Handle:    Handle(uuid.NewString()),
		Snapshot:  s,
		Active:    true,
		OpenedAt:  now,
		UpdatedAt: now,
	}
	return b.card.Handle, nil
}

func (b *Board) Update(ctx context.Context, h Handle, s Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.card == nil || !b.card.Active || b.card.Handle != h {
		return ErrUnknownHandle
	}
	b.card.Snapshot = s
	b.card.UpdatedAt = time.Now()
	b.card.Updates++
	return nil
}

func (b *Board) End(ctx context.Context, h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.card == nil || !b.card.Active || b.card.Handle != h {
		return ErrUnknownHandle
	}
	b.card.Active = false
	b.card.UpdatedAt = time.Now()
	return nil
}

func (b *Board) Active(ctx context.Context) (Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.card == nil || !b.card.Active {
		return "", false
	}
	return b.card.Handle, true
}

// Current returns a copy of the latest card, ended or not.
func (b *Board) Current() (Card, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.card == nil {
		return Card{}, false
	}
	return *b.card, true
}
