// Package natslink carries peer envelopes over NATS. Immediate delivery is
// a core NATS request answered by the peer; durable delivery goes through a
// JetStream stream the peer consumes with a durable consumer.
package natslink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"tripsync/pkg/peer"
)

// Options names the subjects, stream and consumer.
type Options struct {
	URL              string
	SubjectPrefix    string
	Stream           string
	Consumer         string
	PresenceInterval time.Duration
}

func (o *Options) defaults() {
	if o.SubjectPrefix == "" {
		o.SubjectPrefix = "tripsync.peer"
	}
	if o.Stream == "" {
		o.Stream = "TRIPSYNC_PEER"
	}
	if o.Consumer == "" {
		o.Consumer = "tripsync-peer"
	}
	if o.PresenceInterval <= 0 {
		o.PresenceInterval = 5 * time.Second
	}
}

func (o Options) liveSubject(d peer.Domain) string {
	return fmt.Sprintf("%s.live.%s", o.SubjectPrefix, d)
}
func (o Options) queuedSubject(d peer.Domain) string {
	return fmt.Sprintf("%s.queued.%s", o.SubjectPrefix, d)
}
func (o Options) presenceSubject() string { return o.SubjectPrefix + ".presence" }

func connect(url, name string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return nc, js, nil
}

// Link is the phone side peer.Link.
type Link struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	opts     Options
	presence *nats.Subscription
	lastSeen atomic.Int64 // unix nanos of the last peer heartbeat
	logger   *slog.Logger
}

// Dial connects and makes sure the durable stream exists.
func Dial(ctx context.Context, opts Options) (*Link, error) {
	opts.defaults()
	nc, js, err := connect(opts.URL, "tripsync-phone")
	if err != nil {
		return nil, err
	}

	l := &Link{nc: nc, js: js, opts: opts, logger: slog.With("component", "natslink")}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      opts.Stream,
		Subjects:  []string{opts.SubjectPrefix + ".queued.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		l.logger.Warn("Failed to ensure stream", "stream", opts.Stream, "error", err)
	}

	l.presence, err = nc.Subscribe(opts.presenceSubject(), func(*nats.Msg) {
		l.lastSeen.Store(time.Now().UnixNano())
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to presence: %w", err)
	}
	return l, nil
}

// IsReachable reports whether the peer sent a heartbeat recently.
func (l *Link) IsReachable() bool {
	if !l.nc.IsConnected() {
		return false
	}
	seen := l.lastSeen.Load()
	if seen == 0 {
		return false
	}
	return time.Since(time.Unix(0, seen)) < 3*l.opts.PresenceInterval
}

// SendImmediate publishes the envelope and waits for the peer's reply.
func (l *Link) SendImmediate(ctx context.Context, env peer.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	reply, err := l.nc.RequestWithContext(ctx, l.opts.liveSubject(env.Type), data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return peer.ErrNotReachable
		}
		return err
	}
	if len(reply.Data) > 0 && string(reply.Data) != ackOK {
		return fmt.Errorf("peer rejected %s: %s", env.ID, reply.Data)
	}
	return nil
}

// EnqueueDurable stores the envelope in the stream, deduplicated by id.
func (l *Link) EnqueueDurable(ctx context.Context, env peer.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	if _, err := l.js.Publish(ctx, l.opts.queuedSubject(env.Type), data, jetstream.WithMsgID(env.ID)); err != nil {
		return fmt.Errorf("failed to queue %s: %w", env.ID, err)
	}
	return nil
}

// PingContext checks the server connection.
func (l *Link) PingContext(ctx context.Context) error {
	if !l.nc.IsConnected() {
		return nats.ErrConnectionClosed
	}
	return l.nc.FlushWithContext(ctx)
}

// Close drains the connection.
func (l *Link) Close() error {
	if l.presence != nil {
		_ = l.presence.Unsubscribe()
	}
	return l.nc.Drain()
}
