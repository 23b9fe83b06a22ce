package peer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotReachable is returned by SendImmediate while the peer is away.
var ErrNotReachable = errors.New("peer: not reachable")

// Link is the transport to the companion device.
type Link interface {
	// IsReachable reports whether SendImmediate can currently succeed.
	IsReachable() bool
	// SendImmediate delivers now or fails.
	SendImmediate(ctx context.Context, env Envelope) error
	// EnqueueDurable hands the envelope to a queue that delivers it
	// eventually, even across restarts.
	EnqueueDurable(ctx context.Context, env Envelope) error
}

// MemoryLink is an in-process Link. Envelopes delivered immediately are
// passed to the receive callback; durable ones wait until Flush.
type MemoryLink struct {
	reachable atomic.Bool
	receive   func(Envelope)

	mu      sync.Mutex
	sent    []Envelope
	queued  []Envelope
	sendErr error
}

// NewMemoryLink creates a link delivering to receive (which may be nil).
func NewMemoryLink(reachable bool, receive func(Envelope)) *MemoryLink {
	l := &MemoryLink{receive: receive}
	l.reachable.Store(reachable)
	return l
}

// SetReachable flips reachability.
func (l *MemoryLink) SetReachable(v bool) { l.reachable.Store(v) }

// FailSends makes every SendImmediate return err until called with nil.
func (l *MemoryLink) FailSends(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

func (l *MemoryLink) IsReachable() bool { return l.reachable.Load() }

func (l *MemoryLink) SendImmediate(ctx context.Context, env Envelope) error {
	if !l.reachable.Load() {
		return ErrNotReachable
	}
	l.mu.Lock()
	if l.sendErr != nil {
		err := l.sendErr
		l.mu.Unlock()
		return err
	}
	l.sent = append(l.sent, env)
	l.mu.Unlock()

	if l.receive != nil {
		l.receive(env)
	}
	return nil
}

func (l *MemoryLink) EnqueueDurable(ctx context.Context, env Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queued = append(l.queued, env)
	return nil
}

// Flush delivers every queued envelope, oldest first, and returns how many.
func (l *MemoryLink) Flush() int {
	l.mu.Lock()
	queued := l.queued
	l.queued = nil
	l.mu.Unlock()

	if l.receive != nil {
		for _, env := range queued {
			l.receive(env)
		}
	}
	return len(queued)
}

// Sent returns a copy of the immediately delivered envelopes.
func (l *MemoryLink) Sent() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Envelope(nil), l.sent...)
}

// Queued returns a copy of the envelopes waiting for Flush.
func (l *MemoryLink) Queued() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Envelope(nil), l.queued...)
}
