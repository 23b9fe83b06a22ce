package geo

import (
	"sync"
	"time"
)

type trackSample struct {
	p  Point
	at time.Time
}

// Track keeps a rolling window of timestamped positions and derives the
// ground track from the oldest and newest sample.
type Track struct {
	mu         sync.Mutex
	samples    []trackSample
	windowSize int
}

// NewTrack creates a track with the given sample window (minimum 2).
func NewTrack(windowSize int) *Track {
	if windowSize < 2 {
		windowSize = 2
	}
	return &Track{windowSize: windowSize}
}

// Push records a position and returns the current ground track in degrees.
// With fewer than two samples, or no movement, fallback is returned.
func (t *Track) Push(p Point, at time.Time, fallback float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, trackSample{p: p, at: at})
	if len(t.samples) > t.windowSize {
		t.samples = t.samples[1:]
	}

	if len(t.samples) < 2 {
		return fallback
	}
	first, last := t.samples[0], t.samples[len(t.samples)-1]
	if Distance(first.p, last.p) < 1 {
		return fallback
	}
	return Bearing(first.p, last.p)
}
