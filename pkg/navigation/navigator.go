// Package navigation runs the trip state machine: it turns location fixes
// into trip progress and pushes that progress to the status surface and
// the peer device.
package navigation

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
	"tripsync/pkg/peer"
	"tripsync/pkg/surface"
)

const (
	// ArrivalThreshold ends the trip when the user is strictly closer than
	// this to the destination, in meters.
	ArrivalThreshold = 50.0
	// StepAdvanceThreshold moves to the next step when the user is strictly
	// closer than this to the current step coordinate, in meters.
	StepAdvanceThreshold = 30.0
	// FallbackSpeed is used for time estimates when the route has no usable
	// average speed, in m/s.
	FallbackSpeed = 10.0
)

// ErrEmptyRoute is returned by Start for a route without steps.
var ErrEmptyRoute = errors.New("navigation: route has no steps")

// Phase is the coarse navigator state.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseActive Phase = "active"
)

// FeedSource hands out fix subscriptions. *location.Hub implements it.
type FeedSource interface {
	Subscribe(name string, cb func(location.Fix)) *location.Feed
}

// RecalcCanceler cancels route resolutions still in flight.
type RecalcCanceler interface {
	CancelPending()
}

// Journal records the events of the current trip. Start clears it.
type Journal interface {
	AddEvent(event *model.TripEvent)
	Reset()
}

// Options wires the navigator's collaborators. Only Fixes is required.
type Options struct {
	Fixes     FeedSource
	Surface   *surface.Session
	Publisher peer.Publisher
	Recalc    RecalcCanceler
	Journal   Journal
	Now       func() time.Time
}

// Navigator is the single writer of the trip state. Readers get immutable
// snapshots through State.
type Navigator struct {
	feed      *location.Feed
	surface   *surface.Session
	publisher peer.Publisher
	recalc    RecalcCanceler
	journal   Journal
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	lastFix time.Time
	state   atomic.Pointer[model.TripState]
}

// New creates an idle navigator subscribed to opts.Fixes.
func New(opts Options) *Navigator {
	n := &Navigator{
		surface:   opts.Surface,
		publisher: opts.Publisher,
		recalc:    opts.Recalc,
		journal:   opts.Journal,
		now:       opts.Now,
		logger:    slog.With("component", "navigator"),
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.surface == nil {
		n.surface = surface.NewSession(nil)
	}
	n.feed = opts.Fixes.Subscribe("navigation", n.OnFix)
	n.state.Store(&model.TripState{})
	return n
}

// Start begins a trip along route. A trip already running is replaced.
func (n *Navigator) Start(route model.RouteCandidate, destination geo.Point, destinationName string) error {
	if len(route.Steps) == 0 {
		return ErrEmptyRoute
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state.Load().IsActive {
		n.logger.Info("Replacing active trip", "destination", destinationName)
	}
	if n.recalc != nil {
		n.recalc.CancelPending()
	}

	r := route.Clone()
	st := &model.TripState{
		Route:             &r,
		Destination:       destination,
		DestinationName:   destinationName,
		CurrentStep:       0,
		DistanceRemaining: r.Distance,
		TimeRemaining:     r.Duration,
		IsActive:          true,
		HasArrived:        false,
		UpdatedAt:         n.now(),
	}
	n.state.Store(st)
	n.lastFix = time.Time{}

	if err := n.feed.StartContinuousFixes(context.Background()); err != nil {
		n.logger.Error("Failed to start location fixes", "error", err)
	}
	n.surface.Begin(context.Background(), snapshotOf(st))
	n.publish(st)

	if n.journal != nil {
		n.journal.Reset()
	}
	n.record(model.EventTripStarted, destinationName, fmt.Sprintf("%s route, %.0f m, %.0f s", r.Mode, r.Distance, r.Duration))
	n.logger.Info("Trip started", "destination", destinationName, "mode", r.Mode, "steps", len(r.Steps))
	return nil
}

// OnFix advances the trip with a new position. Fixes are ignored while idle
// and when older than the last processed one.
func (n *Navigator) OnFix(f location.Fix) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.state.Load()
	if !cur.IsActive || cur.Route == nil || len(cur.Route.Steps) == 0 {
		return
	}
	if !f.Timestamp.IsZero() {
		if f.Timestamp.Before(n.lastFix) {
			return
		}
		n.lastFix = f.Timestamp
	}

	next := *cur
	coord := f.Coord
	next.UserCoord = &coord
	next.DistanceRemaining = geo.Distance(coord, cur.Destination)
	next.TimeRemaining = next.DistanceRemaining / cur.Route.AverageSpeed(FallbackSpeed)
	next.UpdatedAt = n.now()

	if next.DistanceRemaining < ArrivalThreshold {
		next.IsActive = false
		next.HasArrived = true
		n.state.Store(&next)
		n.record(model.EventArrived, cur.DestinationName, fmt.Sprintf("%.0f m from destination", next.DistanceRemaining))
		n.logger.Info("Arrived", "destination", cur.DestinationName, "distance", next.DistanceRemaining)
		n.teardown(&next)
		return
	}

	if step, ok := cur.Route.StepAt(cur.CurrentStep); ok && cur.CurrentStep+1 < len(cur.Route.Steps) {
		if geo.Distance(coord, step.Coordinate) < StepAdvanceThreshold {
			next.CurrentStep = cur.CurrentStep + 1
			n.record(model.EventStepAdvanced, next.CurrentInstruction(), fmt.Sprintf("step %d of %d", next.CurrentStep+1, len(cur.Route.Steps)))
		}
	}

	n.state.Store(&next)
	n.surface.Refresh(context.Background(), snapshotOf(&next))
	n.publish(&next)
}

// Stop ends the trip. Calling it while idle does nothing.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.state.Load()
	if !cur.IsActive {
		return
	}

	next := *cur
	next.IsActive = false
	next.UpdatedAt = n.now()
	n.state.Store(&next)

	n.record(model.EventTripStopped, cur.DestinationName, "")
	n.logger.Info("Trip stopped", "destination", cur.DestinationName)
	n.teardown(&next)
}

// State returns the current trip snapshot.
func (n *Navigator) State() model.TripState {
	return *n.state.Load()
}

// Phase reports whether a trip is running.
func (n *Navigator) Phase() Phase {
	if n.state.Load().IsActive {
		return PhaseActive
	}
	return PhaseIdle
}

// teardown runs the side effects shared by stop and arrival. Caller holds mu.
func (n *Navigator) teardown(st *model.TripState) {
	n.feed.StopContinuousFixes()
	n.surface.Finish(context.Background())
	n.publish(st)
}

func (n *Navigator) publish(st *model.TripState) {
	if n.publisher == nil {
		return
	}
	dest := st.Destination
	n.publisher.Publish(peer.NavigationUpdate{
		IsActive:          st.IsActive,
		UserCoord:         st.UserCoord,
		DestCoord:         &dest,
		DestName:          st.DestinationName,
		DistanceRemaining: st.DistanceRemaining,
		Instruction:       st.CurrentInstruction(),
	})
}

func (n *Navigator) record(typ model.TripEventType, title, summary string) {
	if n.journal == nil {
		return
	}
	n.journal.AddEvent(&model.TripEvent{
		Type:      typ,
		Title:     title,
		Summary:   summary,
		Timestamp: n.now(),
	})
}

func snapshotOf(st *model.TripState) surface.Snapshot {
	return surface.Snapshot{
		Instruction:       st.CurrentInstruction(),
		DistanceRemaining: st.DistanceRemaining,
		TimeRemaining:     st.TimeRemaining,
		DestinationName:   st.DestinationName,
	}
}
