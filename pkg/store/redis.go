package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps the collection ledger in a redis set, so several devices
// of the same user can share it.
type RedisLedger struct {
	client *redis.Client
	key    string
}

// NewRedisLedger creates a ledger stored under key.
func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	return &RedisLedger{client: client, key: key}
}

// HasCollected reports set membership.
func (l *RedisLedger) HasCollected(ctx context.Context, id int) (bool, error) {
	return l.client.SIsMember(ctx, l.key, id).Result()
}

// MarkCollected adds id to the set. SADD makes repeats a no-op.
func (l *RedisLedger) MarkCollected(ctx context.Context, id int) error {
	return l.client.SAdd(ctx, l.key, id).Err()
}

// Collected returns the set members in ascending order.
func (l *RedisLedger) Collected(ctx context.Context) ([]int, error) {
	members, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("redis ledger: bad member %q: %w", m, err)
		}
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// PingContext checks the connection.
func (l *RedisLedger) PingContext(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the client.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
