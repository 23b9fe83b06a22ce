package wslink

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives raw envelope bytes on the peer side.
type Handler func(data []byte) error

// Client dials the phone and feeds every received envelope to a handler,
// reconnecting until its context ends.
type Client struct {
	url     string
	header  http.Header
	handler Handler
	dialer  *websocket.Dialer
	minWait time.Duration
	maxWait time.Duration
	logger  *slog.Logger
}

// NewClient creates a client for the phone's /ws/peer endpoint.
func NewClient(url string, handler Handler) *Client {
	return &Client{
		url:     url,
		handler: handler,
		dialer:  websocket.DefaultDialer,
		minWait: 500 * time.Millisecond,
		maxWait: 30 * time.Second,
		logger:  slog.With("component", "wslink_client"),
	}
}

// Run keeps a connection open until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	wait := c.minWait
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			wait = c.minWait
		}
		c.logger.Warn("Peer connection lost, retrying", "error", err, "wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > c.maxWait {
			wait = c.maxWait
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, err
	}
	defer conn.Close()
	c.logger.Info("Connected to phone", "url", c.url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := c.handler(data); err != nil {
			c.logger.Warn("Rejected envelope", "error", err)
		}
	}
}
