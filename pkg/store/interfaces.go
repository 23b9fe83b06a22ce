package store

import (
	"context"
	"time"
)

// StateStore handles persistent key/value application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// LedgerStore records which collectibles have been collected.
type LedgerStore interface {
	HasCollected(ctx context.Context, id int) (bool, error)
	MarkCollected(ctx context.Context, id int) error
	Collected(ctx context.Context) ([]int, error)
}

// OutboxRecord is one message waiting in the durable peer queue.
type OutboxRecord struct {
	Seq        int64
	MessageID  string
	Domain     string
	Payload    []byte
	EnqueuedAt time.Time
}

// OutboxStore is the durable peer queue.
type OutboxStore interface {
	Enqueue(ctx context.Context, rec OutboxRecord) error
	Peek(ctx context.Context, limit int) ([]OutboxRecord, error)
	Ack(ctx context.Context, seq int64) error
	Pending(ctx context.Context) (int, error)
}
