package straight

import (
	"context"
	"errors"
	"math"
	"testing"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/routing"
)

func TestPlanRoute(t *testing.T) {
	e := New(400)
	origin := geo.Point{Lat: 19.4326, Lon: -99.1332}
	dest := geo.Point{Lat: 19.4420, Lon: -99.1270}

	routes, err := e.PlanRoute(context.Background(), origin, dest, model.ModePedestrian, true)
	if err != nil {
		t.Fatalf("PlanRoute() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(routes))
	}

	direct := routes[0]
	want := geo.Distance(origin, dest)
	if math.Abs(direct.Distance-want) > 1 {
		t.Errorf("Distance = %v, want %v", direct.Distance, want)
	}
	if math.Abs(direct.Duration-direct.Distance/1.4) > 1e-6 {
		t.Errorf("Duration = %v", direct.Duration)
	}
	if len(direct.Steps) != 4 { // 1230 m / 400 m
		t.Errorf("got %d steps, want 4", len(direct.Steps))
	}
	last := direct.Steps[len(direct.Steps)-1]
	if geo.Distance(last.Coordinate, dest) > 0.01 || last.Instruction != "Arrive at destination" {
		t.Errorf("last step = %+v", last)
	}
	if routes[1].Distance <= direct.Distance {
		t.Errorf("alternate (%v) should be longer than direct (%v)", routes[1].Distance, direct.Distance)
	}
}

func TestPlanRoute_Errors(t *testing.T) {
	e := New(0)
	p := geo.Point{Lat: 1, Lon: 1}

	if _, err := e.PlanRoute(context.Background(), p, geo.Point{Lat: 2, Lon: 2}, model.ModeTransit, false); !errors.Is(err, routing.ErrUnsupportedMode) {
		t.Errorf("transit error = %v", err)
	}
	if _, err := e.PlanRoute(context.Background(), p, p, model.ModeAutomobile, false); !errors.Is(err, routing.ErrNoRoutes) {
		t.Errorf("same point error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.PlanRoute(ctx, p, geo.Point{Lat: 2}, model.ModeAutomobile, false); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v", err)
	}
}

func TestResolverWithStraightEngine(t *testing.T) {
	r := routing.NewResolver(New(400), routing.Options{CyclingFactor: 0.4, TransitFactor: 1.5})
	origin := geo.Point{Lat: 19.4326, Lon: -99.1332}
	dest := geo.Point{Lat: 19.4420, Lon: -99.1270}

	set, err := r.Resolve(context.Background(), origin, dest, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Modes()) != 4 {
		t.Fatalf("resolved %v", set.Modes())
	}

	car, _ := set.Fastest(model.ModeAutomobile)
	transit, _ := set.Fastest(model.ModeTransit)
	if math.Abs(transit.Duration-car.Duration*1.5) > 1e-6 || !transit.Synthetic {
		t.Errorf("transit = %+v, car duration %v", transit, car.Duration)
	}

	walk, _ := set.Fastest(model.ModePedestrian)
	bike, _ := set.Fastest(model.ModeBicycle)
	if math.Abs(bike.Duration-walk.Duration*0.4) > 1e-6 {
		t.Errorf("bike duration %v, walk %v", bike.Duration, walk.Duration)
	}
}

func TestCardinal(t *testing.T) {
	tests := map[float64]string{0: "north", 44: "northeast", 90: "east", 200: "south", 350: "north", -90: "west"}
	for in, want := range tests {
		if got := cardinal(in); got != want {
			t.Errorf("cardinal(%v) = %q, want %q", in, got, want)
		}
	}
}
