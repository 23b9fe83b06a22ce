// Package straight is an offline routing engine that draws direct lines.
// It backs demos and tests when no routing service is configured.
package straight

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/routing"
)

// Speeds in m/s for the modes this engine can plan.
var speeds = map[model.TransportMode]float64{
	model.ModeAutomobile: 8.3,
	model.ModePedestrian: 1.4,
}

// Engine implements routing.Engine.
type Engine struct {
	StepLength float64 // meters between generated steps
}

// New creates an engine that emits a step every stepLength meters.
func New(stepLength float64) *Engine {
	if stepLength <= 0 {
		stepLength = 400
	}
	return &Engine{StepLength: stepLength}
}

// SupportsMode implements routing.ModeSupporter.
func (e *Engine) SupportsMode(mode model.TransportMode) bool {
	_, ok := speeds[mode]
	return ok
}

// PlanRoute returns the direct line, plus a dog-leg alternate when allowed.
func (e *Engine) PlanRoute(ctx context.Context, origin, destination geo.Point, mode model.TransportMode, allowAlternates bool) ([]model.RouteCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	speed, ok := speeds[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", routing.ErrUnsupportedMode, mode)
	}
	if geo.Distance(origin, destination) < 1 {
		return nil, routing.ErrNoRoutes
	}

	out := []model.RouteCandidate{e.build([]geo.Point{origin, destination}, speed)}
	if allowAlternates {
		d := geo.Distance(origin, destination)
		mid := geo.DestinationPoint(geo.Interpolate(origin, destination, 0.5), d*0.2, geo.Bearing(origin, destination)+90)
		out = append(out, e.build([]geo.Point{origin, mid, destination}, speed))
	}
	return out, nil
}

func (e *Engine) build(corners []geo.Point, speed float64) model.RouteCandidate {
	var c model.RouteCandidate
	path := orb.LineString{corners[0].Orb()}

	for i := 1; i < len(corners); i++ {
		from, to := corners[i-1], corners[i]
		legLen := geo.Distance(from, to)
		heading := geo.Bearing(from, to)
		n := int(math.Ceil(legLen / e.StepLength))

		for k := 1; k <= n; k++ {
			p := geo.Interpolate(from, to, float64(k)/float64(n))
			path = append(path, p.Orb())
			instr := fmt.Sprintf("Continue %s", cardinal(heading))
			if k == 1 && i > 1 {
				instr = fmt.Sprintf("Turn toward %s", cardinal(heading))
			}
			c.Steps = append(c.Steps, model.Step{Coordinate: p, Instruction: instr, Distance: legLen / float64(n)})
		}
		c.Distance += legLen
	}

	c.Steps[len(c.Steps)-1].Instruction = "Arrive at destination"
	c.Path = path
	c.Duration = c.Distance / speed
	return c
}

var cardinals = []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

func cardinal(bearing float64) string {
	return cardinals[int(math.Round(geo.NormalizeHeading(bearing)/45))%8]
}
