package routing

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

func TestDirectionalArrows(t *testing.T) {
	start := geo.Point{Lat: 0, Lon: 0}
	end := geo.DestinationPoint(start, 1000, 90)
	c := model.RouteCandidate{
		Distance: 1000,
		Path:     orb.LineString{start.Orb(), end.Orb()},
	}

	arrows := DirectionalArrows(c, DefaultArrowOptions)

	// Last allowed position is below 1000 - 200
	want := []float64{100, 400, 700}
	if len(arrows) != len(want) {
		t.Fatalf("got %d arrows, want %d: %+v", len(arrows), len(want), arrows)
	}
	for i, a := range arrows {
		if a.DistanceFromStart != want[i] {
			t.Errorf("arrow %d at %v, want %v", i, a.DistanceFromStart, want[i])
		}
		if math.Abs(a.Bearing-90) > 0.5 {
			t.Errorf("arrow %d bearing %v, want 90", i, a.Bearing)
		}
		if d := geo.Distance(start, a.Coordinate); math.Abs(d-want[i]) > 1 {
			t.Errorf("arrow %d is %v m from start", i, d)
		}
	}
}

func TestDirectionalArrows_StepsFallbackAndShortRoutes(t *testing.T) {
	a := geo.Point{Lat: 19.43, Lon: -99.13}
	b := geo.DestinationPoint(a, 250, 0)

	short := model.RouteCandidate{Distance: 250, Steps: []model.Step{{Coordinate: a}, {Coordinate: b}}}
	if got := DirectionalArrows(short, DefaultArrowOptions); len(got) != 0 {
		t.Errorf("short route got %d arrows", len(got))
	}

	c := geo.DestinationPoint(b, 750, 0)
	long := model.RouteCandidate{Steps: []model.Step{{Coordinate: a}, {Coordinate: b}, {Coordinate: c}}}
	got := DirectionalArrows(long, DefaultArrowOptions)
	if len(got) != 3 {
		t.Fatalf("got %d arrows, want 3", len(got))
	}

	if got := DirectionalArrows(model.RouteCandidate{Steps: []model.Step{{Coordinate: a}}}, DefaultArrowOptions); got != nil {
		t.Errorf("single point got %v", got)
	}
}
