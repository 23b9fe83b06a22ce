package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sync"

	"tripsync/pkg/tracker"
)

// PendingCounter reports how many durable peer messages await delivery.
type PendingCounter interface {
	Pending(ctx context.Context) (int, error)
}

// StatsHandler reports per-channel counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	pending PendingCounter

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. pending may be nil.
func NewStatsHandler(t *tracker.Tracker, pending PendingCounter) *StatsHandler {
	return &StatsHandler{tracker: t, pending: pending}
}

// ChannelStatsDTO is one tracker channel with a derived cache hit rate.
type ChannelStatsDTO struct {
	tracker.Stats
	HitRate int64 `json:"hit_rate"`
}

// Diagnostics describes the running process.
type Diagnostics struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

// StatsResponse is the /api/stats body.
type StatsResponse struct {
	Diagnostics Diagnostics                `json:"diagnostics"`
	Channels    map[string]ChannelStatsDTO `json:"channels"`
	PeerPending int                        `json:"peer_pending"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Diagnostics: h.gatherDiagnostics(),
		Channels:    make(map[string]ChannelStatsDTO),
	}

	for name, stats := range h.tracker.Snapshot() {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Channels[name] = ChannelStatsDTO{Stats: stats, HitRate: hitRate}
	}

	if h.pending != nil {
		n, err := h.pending.Pending(r.Context())
		if err != nil {
			slog.Warn("Failed to count pending peer messages", "error", err)
		}
		resp.PeerPending = n
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() Diagnostics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
