// Package location fans position fixes out to independent subscribers.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"tripsync/pkg/geo"
)

const fixTopic = "location.fix"

// ErrClosed is returned after the hub has been closed.
var ErrClosed = errors.New("location: hub closed")

// Fix is a single timestamped position reading.
type Fix struct {
	Coord     geo.Point `json:"coord"`
	Timestamp time.Time `json:"timestamp"`
	Heading   *float64  `json:"heading,omitempty"`
}

// Source produces fixes until ctx is done.
type Source interface {
	Run(ctx context.Context, emit func(Fix)) error
}

// Hub distributes fixes from one Source to every started Feed. The source
// only runs while at least one feed wants fixes.
type Hub struct {
	pubsub *gochannel.GoChannel
	source Source
	track  *geo.Track
	logger *slog.Logger
	last   atomic.Pointer[Fix]

	mu     sync.Mutex
	demand int
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewHub creates a hub. A nil source means fixes only arrive through Publish.
func NewHub(src Source) *Hub {
	return &Hub{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
		source: src,
		track:  geo.NewTrack(5),
		logger: slog.With("component", "location_hub"),
	}
}

// Publish delivers a fix to every started feed. Missing headings are filled
// from the recent ground track. It returns ErrClosed once Close has begun.
func (h *Hub) Publish(f Fix) error {
	if h.isClosed() {
		return ErrClosed
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	if f.Heading == nil {
		if hdg := h.track.Push(f.Coord, f.Timestamp, -1); hdg >= 0 {
			f.Heading = &hdg
		}
	} else {
		h.track.Push(f.Coord, f.Timestamp, *f.Heading)
	}
	h.last.Store(&f)

	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := h.pubsub.Publish(fixTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		if h.isClosed() {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Last returns the most recent fix seen by the hub.
func (h *Hub) Last() (Fix, bool) {
	f := h.last.Load()
	if f == nil {
		return Fix{}, false
	}
	return *f, true
}

// Subscribe registers a callback. Delivery begins with StartContinuousFixes.
func (h *Hub) Subscribe(name string, cb func(Fix)) *Feed {
	return &Feed{hub: h, name: name, cb: cb}
}

func (h *Hub) acquire() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.demand++
	if h.demand > 1 || h.source == nil || h.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	go func() {
		defer close(done)
		if err := h.source.Run(ctx, func(f Fix) {
			if err := h.Publish(f); err != nil {
				h.logger.Warn("Failed to publish fix", "error", err)
			}
		}); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Error("Location source stopped", "error", err)
		}
	}()
	h.logger.Info("Location source started")
}

func (h *Hub) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.demand == 0 {
		return
	}
	h.demand--
	if h.demand == 0 && h.cancel != nil {
		h.cancel()
		h.cancel = nil
		h.logger.Info("Location source stopped, no subscribers")
	}
}

// Close stops the source and the pub/sub.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	done := h.done
	h.mu.Unlock()

	if done != nil {
		<-done
	}
	return h.pubsub.Close()
}

// Feed is one subscriber's view of the fix stream.
type Feed struct {
	hub  *Hub
	name string
	cb   func(Fix)

	mu     sync.Mutex
	gen    atomic.Uint64
	cancel context.CancelFunc
}

// StartContinuousFixes begins delivering fixes to the callback. Calling it
// on a started feed is a no-op.
func (f *Feed) StartContinuousFixes(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	msgs, err := f.hub.pubsub.Subscribe(subCtx, fixTopic)
	if err != nil {
		cancel()
		return err
	}

	gen := f.gen.Add(1)
	f.cancel = cancel
	f.hub.acquire()

	go f.deliver(gen, msgs)
	return nil
}

// StopContinuousFixes stops delivery. Safe to call from inside the callback;
// fixes already in flight are discarded.
func (f *Feed) StopContinuousFixes() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel == nil {
		return
	}
	f.gen.Add(1)
	f.cancel()
	f.cancel = nil
	f.hub.release()
}

// Active reports whether the feed is started.
func (f *Feed) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

func (f *Feed) deliver(gen uint64, msgs <-chan *message.Message) {
	for msg := range msgs {
		var fix Fix
		if err := json.Unmarshal(msg.Payload, &fix); err != nil {
			f.hub.logger.Warn("Dropping malformed fix", "feed", f.name, "error", err)
			msg.Ack()
			continue
		}
		if f.gen.Load() == gen {
			f.cb(fix)
		}
		msg.Ack()
	}
}
