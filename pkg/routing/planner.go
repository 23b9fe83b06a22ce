package routing

import (
	"context"
	"sync"
	"time"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

// Plan is a completed resolution.
type Plan struct {
	Origin      geo.Point `json:"origin"`
	Destination geo.Point `json:"destination"`
	Routes      RouteSet  `json:"routes"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Planner wraps a Resolver with last-start-wins semantics: starting a new
// resolution, or a new trip, cancels the one in flight.
type Planner struct {
	resolver *Resolver

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	last   *Plan
}

// NewPlanner creates a planner.
func NewPlanner(r *Resolver) *Planner {
	return &Planner{resolver: r}
}

// Plan resolves routes, cancelling any resolution still in flight. A call
// overtaken by a newer Plan or CancelPending returns ErrSuperseded.
func (p *Planner) Plan(ctx context.Context, origin, destination geo.Point, modes []model.TransportMode) (*Plan, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()

	set, err := p.resolver.Resolve(ctx, origin, destination, modes)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return nil, ErrSuperseded
	}
	p.cancel = nil
	if err != nil {
		return nil, err
	}

	p.last = &Plan{Origin: origin, Destination: destination, Routes: set, ResolvedAt: time.Now()}
	return p.last, nil
}

// CancelPending cancels the resolution in flight, if any.
func (p *Planner) CancelPending() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Last returns the most recent completed plan.
func (p *Planner) Last() (*Plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.last != nil
}
