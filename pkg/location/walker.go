package location

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
)

// WalkerConfig holds the simulated walker parameters.
type WalkerConfig struct {
	Start    geo.Point
	Speed    float64       // m/s
	Interval time.Duration // between fixes
	Jitter   float64       // max position noise in meters
}

// Walker is a simulated Source that moves along an assigned path at a fixed
// speed and parks at the end of it.
type Walker struct {
	mu     sync.Mutex
	cfg    WalkerConfig
	pos    geo.Point
	path   orb.LineString
	walked float64
	rng    *rand.Rand
}

// NewWalker creates a walker parked at cfg.Start.
func NewWalker(cfg WalkerConfig) *Walker {
	if cfg.Speed <= 0 {
		cfg.Speed = 1.4
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Walker{
		cfg: cfg,
		pos: cfg.Start,
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7269)),
	}
}

// SetPath makes the walker follow ls from its first vertex. A nil path parks
// the walker where it stands.
func (w *Walker) SetPath(ls orb.LineString) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.path = ls
	w.walked = 0
	if len(ls) > 0 {
		w.pos = geo.FromOrb(ls[0])
	}
}

// Position returns the walker's true (noise free) position.
func (w *Walker) Position() geo.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// Run emits one fix per interval until ctx is done.
func (w *Walker) Run(ctx context.Context, emit func(Fix)) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	emit(w.step(0, time.Now()))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			emit(w.step(w.cfg.Interval.Seconds(), now))
		}
	}
}

func (w *Walker) step(dt float64, now time.Time) Fix {
	w.mu.Lock()
	defer w.mu.Unlock()

	var heading *float64
	if len(w.path) >= 2 {
		w.walked += w.cfg.Speed * dt
		if p, brg, ok := geo.PointAlong(w.path, w.walked); ok {
			w.pos = p
			heading = &brg
		} else {
			w.pos = geo.FromOrb(w.path[len(w.path)-1])
			w.path = nil
		}
	}

	reported := w.pos
	if w.cfg.Jitter > 0 {
		reported = geo.DestinationPoint(reported, w.rng.Float64()*w.cfg.Jitter, w.rng.Float64()*360)
	}
	return Fix{Coord: reported, Timestamp: now, Heading: heading}
}
