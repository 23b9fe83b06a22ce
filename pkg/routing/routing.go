// Package routing resolves candidate routes for several transport modes at once.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

var (
	// ErrNoRoutes is returned by engines that answered without any candidate.
	ErrNoRoutes = errors.New("routing: no routes returned")
	// ErrUnsupportedMode is returned by engines for modes they cannot plan.
	ErrUnsupportedMode = errors.New("routing: unsupported mode")
	// ErrSuperseded is returned by Planner when a newer request replaced this one.
	ErrSuperseded = errors.New("routing: superseded by a newer request")
	// ErrRouteNotFound is returned by SelectRoute for a missing mode or index.
	ErrRouteNotFound = errors.New("routing: route not found")
)

// Engine is an external routing service.
type Engine interface {
	// PlanRoute returns candidates best-first. allowAlternates lets the
	// engine return more than one.
	PlanRoute(ctx context.Context, origin, destination geo.Point, mode model.TransportMode, allowAlternates bool) ([]model.RouteCandidate, error)
}

// ModeSupporter is implemented by engines that can only plan some modes.
type ModeSupporter interface {
	SupportsMode(mode model.TransportMode) bool
}

// RouteSet maps each resolved mode to its ranked candidates.
type RouteSet map[model.TransportMode][]model.RouteCandidate

// Fastest returns the first candidate for mode.
func (s RouteSet) Fastest(mode model.TransportMode) (model.RouteCandidate, bool) {
	c := s[mode]
	if len(c) == 0 {
		return model.RouteCandidate{}, false
	}
	return c[0], true
}

// Modes returns the resolved modes in display order.
func (s RouteSet) Modes() []model.TransportMode {
	var out []model.TransportMode
	for _, m := range model.AllModes {
		if _, ok := s[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// SelectRoute returns the candidate at index for mode.
func SelectRoute(s RouteSet, mode model.TransportMode, index int) (model.RouteCandidate, error) {
	c, ok := s[mode]
	if !ok {
		return model.RouteCandidate{}, fmt.Errorf("%w: mode %s not resolved", ErrRouteNotFound, mode)
	}
	if index < 0 || index >= len(c) {
		return model.RouteCandidate{}, fmt.Errorf("%w: %s has %d candidates, index %d out of range", ErrRouteNotFound, mode, len(c), index)
	}
	return c[index].Clone(), nil
}

// derivation estimates a mode from another mode's fastest route.
type derivation struct {
	from   model.TransportMode
	factor float64
}

// Options configures a Resolver.
type Options struct {
	CyclingFactor float64 // bicycle duration relative to walking, < 1
	TransitFactor float64 // transit duration relative to driving, > 1
}

// Resolver queries an Engine for several modes concurrently.
type Resolver struct {
	engine      Engine
	derivations map[model.TransportMode]derivation
	logger      *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(engine Engine, opts Options) *Resolver {
	if opts.CyclingFactor == 0 {
		opts.CyclingFactor = 0.4
	}
	if opts.TransitFactor == 0 {
		opts.TransitFactor = 1.5
	}
	return &Resolver{
		engine: engine,
		derivations: map[model.TransportMode]derivation{
			model.ModeBicycle: {from: model.ModePedestrian, factor: opts.CyclingFactor},
			model.ModeTransit: {from: model.ModeAutomobile, factor: opts.TransitFactor},
		},
		logger: slog.With("component", "route_resolver"),
	}
}

type modeResult struct {
	mode       model.TransportMode
	candidates []model.RouteCandidate
	err        error
}

// Resolve plans every requested mode in parallel and waits for all of them.
// Modes that fail, fallback included, are absent from the result. The only
// error is ctx's.
func (r *Resolver) Resolve(ctx context.Context, origin, destination geo.Point, modes []model.TransportMode) (RouteSet, error) {
	if len(modes) == 0 {
		modes = model.AllModes
	}

	seen := make(map[model.TransportMode]bool, len(modes))
	results := make(chan modeResult, len(modes))
	var wg sync.WaitGroup

	for _, mode := range modes {
		if seen[mode] {
			continue
		}
		seen[mode] = true

		wg.Add(1)
		go func(mode model.TransportMode) {
			defer wg.Done()
			c, err := r.resolveMode(ctx, origin, destination, mode)
			results <- modeResult{mode: mode, candidates: c, err: err}
		}(mode)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	set := make(RouteSet, len(seen))
	for res := range results {
		if res.err != nil {
			r.logger.Warn("Mode unavailable", "mode", res.mode, "error", res.err)
			continue
		}
		set[res.mode] = res.candidates
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

func (r *Resolver) supports(mode model.TransportMode) bool {
	if s, ok := r.engine.(ModeSupporter); ok {
		return s.SupportsMode(mode)
	}
	return mode != model.ModeBicycle
}

// resolveMode requests mode directly when the engine supports it and falls
// back to a derived estimate when it does not or when the request fails.
func (r *Resolver) resolveMode(ctx context.Context, origin, destination geo.Point, mode model.TransportMode) ([]model.RouteCandidate, error) {
	var directErr error
	if r.supports(mode) {
		c, err := r.plan(ctx, origin, destination, mode, true)
		if err == nil {
			return c, nil
		}
		directErr = err
	} else {
		directErr = ErrUnsupportedMode
	}

	d, ok := r.derivations[mode]
	if !ok || ctx.Err() != nil {
		return nil, directErr
	}

	base, err := r.plan(ctx, origin, destination, d.from, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w; fallback %s: %w", mode, directErr, d.from, err)
	}
	r.logger.Debug("Derived route estimate", "mode", mode, "from", d.from, "factor", d.factor)
	return []model.RouteCandidate{base[0].Synthesize(mode, d.factor)}, nil
}

// plan calls the engine and normalizes the result: mode set, index 0 tagged fastest.
func (r *Resolver) plan(ctx context.Context, origin, destination geo.Point, mode model.TransportMode, alternates bool) ([]model.RouteCandidate, error) {
	raw, err := r.engine.PlanRoute(ctx, origin, destination, mode, alternates)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoRoutes
	}

	out := make([]model.RouteCandidate, len(raw))
	for i := range raw {
		c := raw[i].Clone()
		c.Mode = mode
		c.IsFastest = i == 0
		c.Synthetic = false
		out[i] = c
	}
	return out, nil
}
