package routing

import (
	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

// Arrow marks the travel direction at a point along a route.
type Arrow struct {
	Coordinate        geo.Point `json:"coordinate"`
	Bearing           float64   `json:"bearing"`
	DistanceFromStart float64   `json:"distance_from_start"`
}

// ArrowOptions controls arrow placement, in meters.
type ArrowOptions struct {
	Interval     float64
	First        float64
	EndClearance float64
}

// DefaultArrowOptions places an arrow every 300 m from 100 m, none in the last 200 m.
var DefaultArrowOptions = ArrowOptions{Interval: 300, First: 100, EndClearance: 200}

// DirectionalArrows spaces arrows along the route path. Without a full path
// the step coordinates are used as the polyline.
func DirectionalArrows(c model.RouteCandidate, opts ArrowOptions) []Arrow {
	path := c.Path
	if len(path) < 2 {
		path = make(orb.LineString, 0, len(c.Steps))
		for _, s := range c.Steps {
			path = append(path, s.Coordinate.Orb())
		}
	}
	if len(path) < 2 || opts.Interval <= 0 {
		return nil
	}

	total := c.Distance
	if total <= 0 {
		total = geo.PathLength(path)
	}

	var arrows []Arrow
	for d := opts.First; d < total-opts.EndClearance; d += opts.Interval {
		p, bearing, ok := geo.PointAlong(path, d)
		if !ok {
			break
		}
		arrows = append(arrows, Arrow{Coordinate: p, Bearing: bearing, DistanceFromStart: d})
	}
	return arrows
}
