package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"tripsync/pkg/db"
)

// Store composes every sub-store backed by the same database.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	StateStore
	LedgerStore
	OutboxStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Ledger ---

// HasCollected reports whether the collectible is in the ledger.
func (s *SQLiteStore) HasCollected(ctx context.Context, id int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM collected WHERE collectible_id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkCollected adds the collectible to the ledger. Marking twice keeps the first timestamp.
func (s *SQLiteStore) MarkCollected(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collected (collectible_id, collected_at) VALUES (?, ?)",
		id, time.Now().UTC())
	return err
}

// Collected lists every collected id in ascending order.
func (s *SQLiteStore) Collected(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT collectible_id FROM collected ORDER BY collectible_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Outbox ---

// Enqueue appends a message to the durable queue. A message id already queued is ignored.
func (s *SQLiteStore) Enqueue(ctx context.Context, rec OutboxRecord) error {
	if rec.EnqueuedAt.IsZero() {
		rec.EnqueuedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO peer_outbox (message_id, domain, payload, enqueued_at) VALUES (?, ?, ?, ?)",
		rec.MessageID, rec.Domain, rec.Payload, rec.EnqueuedAt.UTC())
	return err
}

// Peek returns up to limit queued messages, oldest first, without removing them.
func (s *SQLiteStore) Peek(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, message_id, domain, payload, enqueued_at FROM peer_outbox ORDER BY seq LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var r OutboxRecord
		if err := rows.Scan(&r.Seq, &r.MessageID, &r.Domain, &r.Payload, &r.EnqueuedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ack removes a delivered message from the queue.
func (s *SQLiteStore) Ack(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM peer_outbox WHERE seq = ?", seq)
	return err
}

// Pending returns the queue length.
func (s *SQLiteStore) Pending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM peer_outbox").Scan(&n)
	return n, err
}

// --- State ---

// GetState returns a persisted value.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("Failed to read state", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

// SetState persists a value.
func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO persistent_state (key, value, updated_at) VALUES (?, ?, ?)",
		key, val, time.Now().UTC())
	return err
}

// DeleteState removes a value.
func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
