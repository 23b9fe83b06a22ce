// Package proximity classifies points of interest around the user and runs
// collection against a ledger.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tripsync/pkg/geo"
	"tripsync/pkg/location"
	"tripsync/pkg/model"
)

var (
	// ErrNotCollectable is returned by CollectFocus when the focus is out of
	// collection range or there is no focus.
	ErrNotCollectable = errors.New("proximity: nothing collectable")
	// ErrUnknownPOI is returned for an id missing from the catalog.
	ErrUnknownPOI = errors.New("proximity: unknown point of interest")
)

// Catalog is the read-only POI list the engine scans.
type Catalog interface {
	Within(p geo.Point, radius float64) []model.NearbyPOI
	Get(id string) (*model.PointOfInterest, int, bool)
}

// Options holds the engine radii in meters.
type Options struct {
	ScanRadius    float64
	CollectRadius float64
	Now           func() time.Time
}

// CollectResult describes one collection attempt.
type CollectResult struct {
	POI              *model.PointOfInterest `json:"poi"`
	CollectibleID    int                    `json:"collectible_id"`
	AlreadyCollected bool                   `json:"already_collected"`
	CollectedAt      time.Time              `json:"collected_at"`
}

// Engine recomputes the proximity state on every fix.
type Engine struct {
	catalog Catalog
	ledger  Ledger
	opts    Options
	logger  *slog.Logger

	state atomic.Pointer[model.ProximityState]

	// collectMu makes the ledger check and mark one step.
	collectMu sync.Mutex

	mu        sync.Mutex
	onChange  func(prev, next model.ProximityState)
	onCollect func(CollectResult)
}

// NewEngine creates an engine. Zero radii take the defaults (500 m, 100 m).
func NewEngine(c Catalog, ledger Ledger, opts Options) *Engine {
	if opts.ScanRadius <= 0 {
		opts.ScanRadius = 500
	}
	if opts.CollectRadius <= 0 {
		opts.CollectRadius = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		catalog: c,
		ledger:  ledger,
		opts:    opts,
		logger:  slog.With("component", "proximity"),
	}
	e.state.Store(&model.ProximityState{})
	return e
}

// OnChange registers a callback fired when the focus or collectability
// changes between evaluations.
func (e *Engine) OnChange(fn func(prev, next model.ProximityState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// OnCollect registers a callback fired after a new collectible is marked.
func (e *Engine) OnCollect(fn func(CollectResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCollect = fn
}

// Evaluate classifies the catalog around coord without storing the result.
func (e *Engine) Evaluate(coord geo.Point) model.ProximityState {
	nearby := e.catalog.Within(coord, e.opts.ScanRadius)
	st := model.ProximityState{Nearby: nearby, EvaluatedAt: e.opts.Now()}

	// Strict less-than keeps the earlier catalog entry on ties.
	for i := range nearby {
		if st.Focus == nil || nearby[i].Distance < st.Focus.Distance {
			st.Focus = &nearby[i]
		}
	}
	if st.Focus != nil {
		st.Collectable = st.Focus.Distance <= e.opts.CollectRadius
	}
	return st
}

// OnFix evaluates the fix, stores the result and notifies on change.
func (e *Engine) OnFix(f location.Fix) {
	next := e.Evaluate(f.Coord)
	prev := e.state.Swap(&next)

	if prev != nil && sameFocus(*prev, next) {
		return
	}

	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()

	var before model.ProximityState
	if prev != nil {
		before = *prev
	}
	if next.Focus != nil {
		e.logger.Debug("Focus changed", "poi", next.Focus.POI.ID, "distance", next.Focus.Distance, "collectable", next.Collectable)
	}
	if fn != nil {
		fn(before, next)
	}
}

// State returns the latest stored evaluation.
func (e *Engine) State() model.ProximityState {
	return *e.state.Load()
}

// Collect marks the POI's collectible in the ledger. Collecting twice is a
// no-op reported through AlreadyCollected.
func (e *Engine) Collect(ctx context.Context, poiID string) (CollectResult, error) {
	poi, _, ok := e.catalog.Get(poiID)
	if !ok {
		return CollectResult{}, fmt.Errorf("%w: %q", ErrUnknownPOI, poiID)
	}

	res := CollectResult{POI: poi, CollectibleID: poi.CollectibleID}
	e.collectMu.Lock()
	has, err := e.ledger.HasCollected(ctx, poi.CollectibleID)
	if err != nil {
		e.collectMu.Unlock()
		return CollectResult{}, fmt.Errorf("ledger lookup: %w", err)
	}
	if has {
		e.collectMu.Unlock()
		res.AlreadyCollected = true
		return res, nil
	}
	if err := e.ledger.MarkCollected(ctx, poi.CollectibleID); err != nil {
		e.collectMu.Unlock()
		return CollectResult{}, fmt.Errorf("ledger mark: %w", err)
	}
	e.collectMu.Unlock()

	res.CollectedAt = e.opts.Now()
	e.logger.Info("Collected", "poi", poi.ID, "collectible_id", poi.CollectibleID)

	e.mu.Lock()
	fn := e.onCollect
	e.mu.Unlock()
	if fn != nil {
		fn(res)
	}
	return res, nil
}

// CollectFocus collects the current focus if it is collectable.
func (e *Engine) CollectFocus(ctx context.Context) (CollectResult, error) {
	st := e.State()
	if st.Focus == nil || !st.Collectable {
		return CollectResult{}, ErrNotCollectable
	}
	return e.Collect(ctx, st.Focus.POI.ID)
}

// Collected returns the ledger contents.
func (e *Engine) Collected(ctx context.Context) ([]int, error) {
	return e.ledger.Collected(ctx)
}

func sameFocus(a, b model.ProximityState) bool {
	if a.Collectable != b.Collectable {
		return false
	}
	if a.Focus == nil || b.Focus == nil {
		return a.Focus == nil && b.Focus == nil
	}
	return a.Focus.POI.ID == b.Focus.POI.ID
}
