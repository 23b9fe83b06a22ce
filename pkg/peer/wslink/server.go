// Package wslink connects the phone and the peer over a websocket. The
// phone side queues envelopes in the sqlite outbox while no peer is
// attached and drains them when one connects.
package wslink

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tripsync/pkg/peer"
	"tripsync/pkg/store"
)

// Options tunes the server side.
type Options struct {
	PingInterval time.Duration
	DrainBatch   int
}

// Server is a peer.Link backed by at most one attached websocket.
type Server struct {
	outbox   store.OutboxStore
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex // guards conn
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes writes on conn
}

// NewServer creates a link that queues into outbox while no peer is attached.
func NewServer(outbox store.OutboxStore, opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	if opts.DrainBatch <= 0 {
		opts.DrainBatch = 50
	}
	return &Server{
		outbox: outbox,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: slog.With("component", "wslink"),
	}
}

// ServeHTTP upgrades the request and keeps the peer attached until the
// connection drops. A newer connection replaces an older one.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Peer upgrade failed", "error", err)
		return
	}

	s.attach(conn)
	s.logger.Info("Peer attached", "remote", r.RemoteAddr)

	go s.drain(r.Context())

	done := make(chan struct{})
	go s.keepAlive(conn, done)
	s.readLoop(conn)
	close(done)

	s.detach(conn)
	s.logger.Info("Peer detached", "remote", r.RemoteAddr)
}

// IsReachable reports whether a peer is attached.
func (s *Server) IsReachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// SendImmediate writes the envelope to the attached peer.
func (s *Server) SendImmediate(ctx context.Context, env peer.Envelope) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return peer.ErrNotReachable
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}
	if err := s.write(ctx, conn, data); err != nil {
		s.detach(conn)
		return err
	}
	return nil
}

// EnqueueDurable stores the envelope in the outbox.
func (s *Server) EnqueueDurable(ctx context.Context, env peer.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, store.OutboxRecord{
		MessageID: env.ID,
		Domain:    string(env.Type),
		Payload:   data,
	})
}

// Pending returns the outbox length.
func (s *Server) Pending(ctx context.Context) (int, error) {
	return s.outbox.Pending(ctx)
}

// Close drops the attached peer, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Server) attach(conn *websocket.Conn) {
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (s *Server) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// drain delivers queued envelopes, oldest first, acking each one after a
// successful write. It stops at the first failure; the rest waits for the
// next attach.
func (s *Server) drain(ctx context.Context) {
	total := 0
	for {
		recs, err := s.outbox.Peek(ctx, s.opts.DrainBatch)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to read outbox", "error", err)
			}
			return
		}
		if len(recs) == 0 {
			if total > 0 {
				s.logger.Info("Outbox drained", "delivered", total)
			}
			return
		}

		for _, rec := range recs {
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				return
			}

			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := s.write(wctx, conn, rec.Payload)
			cancel()
			if err != nil {
				s.logger.Warn("Outbox delivery interrupted", "id", rec.MessageID, "error", err)
				return
			}
			if err := s.outbox.Ack(ctx, rec.Seq); err != nil {
				s.logger.Error("Failed to ack outbox record", "seq", rec.Seq, "error", err)
				return
			}
			total++
		}
	}
}

func (s *Server) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(conn *websocket.Conn) {
	wait := 3 * s.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		// The peer does not send data frames; reading services control frames.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wait))
	}
}
