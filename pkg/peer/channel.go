package peer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tripsync/pkg/tracker"
)

// ChannelOptions tunes the sender.
type ChannelOptions struct {
	SendTimeout time.Duration
	Backlog     int // per domain
	Now         func() time.Time
}

// Channel pushes messages to the peer without blocking the caller. Each
// domain has its own worker, so a slow navigation send never delays a
// recommendation push.
type Channel struct {
	link    Link
	tracker *tracker.Tracker
	opts    ChannelOptions
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queues map[Domain]chan Envelope
	wg     sync.WaitGroup
}

// NewChannel starts one worker per domain. tr may be nil.
func NewChannel(link Link, tr *tracker.Tracker, opts ChannelOptions) *Channel {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Backlog <= 0 {
		opts.Backlog = 32
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if tr == nil {
		tr = tracker.New()
	}

	c := &Channel{
		link:    link,
		tracker: tr,
		opts:    opts,
		logger:  slog.With("component", "peer_channel"),
		queues:  make(map[Domain]chan Envelope, len(Domains)),
	}
	for _, d := range Domains {
		q := make(chan Envelope, opts.Backlog)
		c.queues[d] = q
		c.wg.Add(1)
		go c.worker(d, q)
	}
	return c
}

// Publish queues msg for delivery and returns immediately. Messages are
// dropped when the domain's backlog is full or the channel is closed.
func (c *Channel) Publish(msg Message) {
	env, err := Wrap(msg, c.opts.Now())
	if err != nil {
		c.logger.Error("Failed to encode sync message", "error", err)
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	domain := string(env.Type)
	if c.closed {
		c.tracker.TrackDropped(domain)
		return
	}
	q, ok := c.queues[env.Type]
	if !ok {
		c.logger.Warn("No worker for domain", "domain", domain)
		c.tracker.TrackDropped(domain)
		return
	}

	select {
	case q <- env:
	default:
		c.logger.Warn("Sync backlog full, dropping message", "domain", domain, "id", env.ID)
		c.tracker.TrackDropped(domain)
	}
}

// Close stops accepting messages, drains what is queued and waits for the
// workers.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, q := range c.queues {
		close(q)
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// Stats returns delivery counters per domain.
func (c *Channel) Stats() map[string]tracker.Stats {
	return c.tracker.Snapshot()
}

func (c *Channel) worker(domain Domain, q <-chan Envelope) {
	defer c.wg.Done()
	for env := range q {
		c.deliver(domain, env)
	}
}

func (c *Channel) deliver(domain Domain, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.SendTimeout)
	defer cancel()

	name := string(domain)
	if c.link.IsReachable() {
		env.Via = ViaImmediate
		if err := c.link.SendImmediate(ctx, env); err != nil {
			// No retry: the next message of the domain supersedes this one.
			c.logger.Warn("Immediate sync failed, dropping", "domain", name, "id", env.ID, "error", err)
			c.tracker.TrackFailure(name)
			return
		}
		c.tracker.TrackSuccess(name)
		return
	}

	env.Via = ViaDurable
	if err := c.link.EnqueueDurable(ctx, env); err != nil {
		c.logger.Error("Failed to queue sync message", "domain", name, "id", env.ID, "error", err)
		c.tracker.TrackFailure(name)
		return
	}
	c.tracker.TrackQueued(name)
}
