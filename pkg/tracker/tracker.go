// Package tracker counts outcomes per named channel (routing providers, peer domains).
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per channel name.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*counters
}

type counters struct {
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	success     atomic.Int64
	failures    atomic.Int64
	empty       atomic.Int64
	queued      atomic.Int64
	dropped     atomic.Int64
}

// Stats is a point-in-time copy of one channel's counters.
type Stats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Success     int64 `json:"success"`
	Failures    int64 `json:"failures"`
	Empty       int64 `json:"empty"`
	Queued      int64 `json:"queued"`
	Dropped     int64 `json:"dropped"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{stats: make(map[string]*counters)}
}

func (t *Tracker) get(name string) *counters {
	t.mu.RLock()
	c, ok := t.stats[name]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.stats[name]; ok {
		return c
	}
	c = &counters{}
	t.stats[name] = c
	return c
}

// TrackCacheHit counts a response served from cache.
func (t *Tracker) TrackCacheHit(name string) { t.get(name).cacheHits.Add(1) }

// TrackCacheMiss counts a cache miss.
func (t *Tracker) TrackCacheMiss(name string) { t.get(name).cacheMisses.Add(1) }

// TrackSuccess counts a successful call or delivery.
func (t *Tracker) TrackSuccess(name string) { t.get(name).success.Add(1) }

// TrackFailure counts a failed call or delivery.
func (t *Tracker) TrackFailure(name string) { t.get(name).failures.Add(1) }

// TrackEmpty counts a successful call with no usable result.
func (t *Tracker) TrackEmpty(name string) { t.get(name).empty.Add(1) }

// TrackQueued counts a message handed to a durable queue.
func (t *Tracker) TrackQueued(name string) { t.get(name).queued.Add(1) }

// TrackDropped counts a message discarded without delivery.
func (t *Tracker) TrackDropped(name string) { t.get(name).dropped.Add(1) }

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Stats, len(t.stats))
	for k, c := range t.stats {
		out[k] = Stats{
			CacheHits:   c.cacheHits.Load(),
			CacheMisses: c.cacheMisses.Load(),
			Success:     c.success.Load(),
			Failures:    c.failures.Load(),
			Empty:       c.empty.Load(),
			Queued:      c.queued.Load(),
			Dropped:     c.dropped.Load(),
		}
	}
	return out
}
