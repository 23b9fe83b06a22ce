package natslink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"tripsync/pkg/peer"
)

const ackOK = "ok"

// Handler applies raw envelope bytes on the peer side.
type Handler func(data []byte) error

// Receiver is the peer side: it answers live requests, consumes the durable
// stream and announces presence.
type Receiver struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	opts    Options
	handler Handler
	logger  *slog.Logger

	live    *nats.Subscription
	consume jetstream.ConsumeContext
	stop    context.CancelFunc
	done    chan struct{}
}

// Listen connects and starts receiving into handler.
func Listen(ctx context.Context, opts Options, handler Handler) (*Receiver, error) {
	opts.defaults()
	nc, js, err := connect(opts.URL, "tripsync-peer")
	if err != nil {
		return nil, err
	}
	r := &Receiver{nc: nc, js: js, opts: opts, handler: handler, logger: slog.With("component", "natslink_receiver")}

	r.live, err = nc.Subscribe(opts.SubjectPrefix+".live.>", r.onLive)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe live subject: %w", err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, opts.Stream, jetstream.ConsumerConfig{
		Durable:       opts.Consumer,
		FilterSubject: opts.SubjectPrefix + ".queued.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		r.logger.Warn("Durable queue unavailable, live delivery only", "stream", opts.Stream, "error", err)
	} else {
		r.consume, err = consumer.Consume(r.onQueued)
		if err != nil {
			r.logger.Warn("Failed to start consuming durable queue", "error", err)
		}
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	r.done = make(chan struct{})
	go r.heartbeat(hbCtx)

	r.logger.Info("Listening for peer messages", "prefix", opts.SubjectPrefix)
	return r, nil
}

func (r *Receiver) onLive(msg *nats.Msg) {
	reply := []byte(ackOK)
	if err := r.handler(msg.Data); err != nil {
		r.logger.Warn("Rejected live envelope", "subject", msg.Subject, "error", err)
		reply = []byte(err.Error())
	}
	if msg.Reply != "" {
		if err := msg.Respond(reply); err != nil {
			r.logger.Debug("Failed to answer live request", "error", err)
		}
	}
}

func (r *Receiver) onQueued(msg jetstream.Msg) {
	err := r.handler(msg.Data())
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, peer.ErrMalformed), errors.Is(err, peer.ErrUnknownType):
		r.logger.Warn("Dropping undecodable queued envelope", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
	default:
		r.logger.Warn("Queued envelope failed, will redeliver", "subject", msg.Subject(), "error", err)
		_ = msg.Nak()
	}
}

func (r *Receiver) heartbeat(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.PresenceInterval)
	defer ticker.Stop()

	subject := r.opts.presenceSubject()
	_ = r.nc.Publish(subject, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.nc.Publish(subject, nil); err != nil {
				r.logger.Debug("Presence heartbeat failed", "error", err)
			}
		}
	}
}

// Close stops receiving and drains the connection.
func (r *Receiver) Close() error {
	r.stop()
	<-r.done
	if r.consume != nil {
		r.consume.Stop()
	}
	if r.live != nil {
		_ = r.live.Unsubscribe()
	}
	return r.nc.Drain()
}
