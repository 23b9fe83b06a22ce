// Package ors plans routes with the OpenRouteService directions API.
package ors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/routing"
)

var profiles = map[model.TransportMode]string{
	model.ModeAutomobile: "driving-car",
	model.ModePedestrian: "foot-walking",
	model.ModeBicycle:    "cycling-regular",
}

// Poster is the subset of the request client the engine needs.
type Poster interface {
	PostJSON(ctx context.Context, u string, body []byte, headers map[string]string, cacheKey string) ([]byte, error)
}

// Engine implements routing.Engine.
type Engine struct {
	client       Poster
	baseURL      string
	key          string
	alternatives int
}

// New creates an engine. alternatives is the target number of routes when
// alternates are allowed.
func New(client Poster, baseURL, key string, alternatives int) *Engine {
	if alternatives < 1 {
		alternatives = 1
	}
	return &Engine{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		key:          key,
		alternatives: alternatives,
	}
}

// SupportsMode reports whether ORS has a profile for mode. Transit has none.
func (e *Engine) SupportsMode(mode model.TransportMode) bool {
	_, ok := profiles[mode]
	return ok
}

type alternativeRoutes struct {
	TargetCount  int     `json:"target_count"`
	ShareFactor  float64 `json:"share_factor"`
	WeightFactor float64 `json:"weight_factor"`
}

type directionsRequest struct {
	Coordinates  [][2]float64       `json:"coordinates"`
	Instructions bool               `json:"instructions"`
	Alternatives *alternativeRoutes `json:"alternative_routes,omitempty"`
}

type orsStep struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Instruction string  `json:"instruction"`
	WayPoints   []int   `json:"way_points"`
}

type orsProperties struct {
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Segments []struct {
		Steps []orsStep `json:"steps"`
	} `json:"segments"`
}

type orsFeature struct {
	Geometry   geojson.Geometry `json:"geometry"`
	Properties orsProperties    `json:"properties"`
}

type directionsResponse struct {
	Features []orsFeature `json:"features"`
}

// PlanRoute implements routing.Engine.
func (e *Engine) PlanRoute(ctx context.Context, origin, destination geo.Point, mode model.TransportMode, allowAlternates bool) ([]model.RouteCandidate, error) {
	profile, ok := profiles[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", routing.ErrUnsupportedMode, mode)
	}

	req := directionsRequest{
		Coordinates:  [][2]float64{{origin.Lon, origin.Lat}, {destination.Lon, destination.Lat}},
		Instructions: true,
	}
	if allowAlternates && e.alternatives > 1 {
		req.Alternatives = &alternativeRoutes{TargetCount: e.alternatives, ShareFactor: 0.6, WeightFactor: 1.4}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v2/directions/%s/geojson", e.baseURL, profile)
	cacheKey := fmt.Sprintf("ors:%s:%.5f,%.5f:%.5f,%.5f:%t", profile, origin.Lat, origin.Lon, destination.Lat, destination.Lon, req.Alternatives != nil)
	headers := map[string]string{"Authorization": e.key, "Accept": "application/geo+json"}

	data, err := e.client.PostJSON(ctx, u, body, headers, cacheKey)
	if err != nil {
		return nil, fmt.Errorf("ors %s: %w", profile, err)
	}
	return parseDirections(data, mode)
}

func parseDirections(data []byte, mode model.TransportMode) ([]model.RouteCandidate, error) {
	var resp directionsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("ors: decode response: %w", err)
	}

	out := make([]model.RouteCandidate, 0, len(resp.Features))
	for _, f := range resp.Features {
		ls, ok := f.Geometry.Geometry().(orb.LineString)
		if !ok || len(ls) == 0 {
			continue
		}

		c := model.RouteCandidate{
			Mode:     mode,
			Duration: f.Properties.Summary.Duration,
			Distance: f.Properties.Summary.Distance,
			Path:     ls,
		}
		for _, seg := range f.Properties.Segments {
			for _, s := range seg.Steps {
				c.Steps = append(c.Steps, model.Step{
					Coordinate:  stepEnd(ls, s.WayPoints),
					Instruction: s.Instruction,
					Distance:    s.Distance,
				})
			}
		}
		// A route without instructions still needs a step to navigate by
		if len(c.Steps) == 0 {
			c.Steps = []model.Step{{Coordinate: geo.FromOrb(ls[len(ls)-1]), Distance: c.Distance}}
		}
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil, routing.ErrNoRoutes
	}
	return out, nil
}

// stepEnd returns the path vertex where a step ends.
func stepEnd(ls orb.LineString, wayPoints []int) geo.Point {
	i := len(ls) - 1
	if len(wayPoints) == 2 && wayPoints[1] >= 0 && wayPoints[1] < len(ls) {
		i = wayPoints[1]
	}
	return geo.FromOrb(ls[i])
}
