// Package cache provides the response cache used by the HTTP request client.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// MemoryCache implements Cacher with an expiring in-process map.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

// GetCache returns a cached value.
func (m *MemoryCache) GetCache(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// SetCache stores a value with the default expiration.
func (m *MemoryCache) SetCache(_ context.Context, key string, val []byte) error {
	m.c.SetDefault(key, val)
	return nil
}

// Len returns the number of live entries.
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}
