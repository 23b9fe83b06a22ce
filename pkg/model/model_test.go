package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tripsync/pkg/geo"
)

func TestRouteCandidate_Synthesize(t *testing.T) {
	walk := RouteCandidate{
		Mode:     ModePedestrian,
		Duration: 1000,
		Distance: 1200,
		Steps:    []Step{{Coordinate: geo.Point{Lat: 1, Lon: 2}, Instruction: "Head north", Distance: 1200}},
	}

	bike := walk.Synthesize(ModeBicycle, 0.4)

	assert.Equal(t, ModeBicycle, bike.Mode)
	assert.InDelta(t, 400, bike.Duration, 1e-9)
	assert.Equal(t, walk.Distance, bike.Distance)
	assert.True(t, bike.IsFastest)
	assert.True(t, bike.Synthetic)

	// Derived candidates never alias the source geometry
	bike.Steps[0].Instruction = "changed"
	assert.Equal(t, "Head north", walk.Steps[0].Instruction)
	assert.Equal(t, ModePedestrian, walk.Mode)
}

func TestRouteCandidate_AverageSpeed(t *testing.T) {
	assert.InDelta(t, 5.0, RouteCandidate{Distance: 3000, Duration: 600}.AverageSpeed(10), 1e-9)
	assert.InDelta(t, 10.0, RouteCandidate{Distance: 3000}.AverageSpeed(10), 1e-9)
}

func TestTripState_CurrentInstruction(t *testing.T) {
	var nilState *TripState
	assert.Equal(t, "", nilState.CurrentInstruction())

	s := &TripState{Route: &RouteCandidate{Steps: []Step{{Instruction: "Turn left"}}}}
	assert.Equal(t, "Turn left", s.CurrentInstruction())

	s.CurrentStep = 3
	assert.Equal(t, "", s.CurrentInstruction())
}

func TestPointOfInterest_NextEvent(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	p := PointOfInterest{Events: []Event{
		{Title: "past", StartsAt: now.Add(-time.Hour)},
		{Title: "later", StartsAt: now.Add(48 * time.Hour)},
		{Title: "soon", StartsAt: now.Add(2 * time.Hour)},
	}}

	e, ok := p.NextEvent(now)
	assert.True(t, ok)
	assert.Equal(t, "soon", e.Title)

	_, ok = (&PointOfInterest{}).NextEvent(now)
	assert.False(t, ok)
}

func TestTransportMode_Valid(t *testing.T) {
	for _, m := range AllModes {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, TransportMode("rideshare").Valid())
}
