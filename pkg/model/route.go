package model

import (
	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
)

// TransportMode identifies how a route is traveled.
type TransportMode string

// Supported transport modes.
const (
	ModeAutomobile TransportMode = "automobile"
	ModePedestrian TransportMode = "pedestrian"
	ModeTransit    TransportMode = "transit"
	ModeBicycle    TransportMode = "bicycle"
)

// AllModes lists every mode in display order.
var AllModes = []TransportMode{ModeAutomobile, ModePedestrian, ModeTransit, ModeBicycle}

// Valid reports whether m is a known mode.
func (m TransportMode) Valid() bool {
	switch m {
	case ModeAutomobile, ModePedestrian, ModeTransit, ModeBicycle:
		return true
	}
	return false
}

// Step is one geometry step of a route.
type Step struct {
	Coordinate  geo.Point `json:"coordinate"`
	Instruction string    `json:"instruction"`
	Distance    float64   `json:"distance"` // meters
}

// RouteCandidate is one candidate route for a transport mode.
// Values are treated as immutable once produced; derive variants with Clone or Synthesize.
type RouteCandidate struct {
	Mode      TransportMode  `json:"mode"`
	Duration  float64        `json:"duration"` // seconds
	Distance  float64        `json:"distance"` // meters
	Steps     []Step         `json:"steps"`
	Path      orb.LineString `json:"path,omitempty"`
	IsFastest bool           `json:"is_fastest"`
	Synthetic bool           `json:"synthetic,omitempty"`
}

// Clone returns a deep copy, so a derived candidate never shares slices with its source.
func (r RouteCandidate) Clone() RouteCandidate {
	out := r
	if r.Steps != nil {
		out.Steps = make([]Step, len(r.Steps))
		copy(out.Steps, r.Steps)
	}
	if r.Path != nil {
		out.Path = r.Path.Clone()
	}
	return out
}

// Synthesize derives a single estimated candidate for another mode by scaling the duration.
func (r RouteCandidate) Synthesize(mode TransportMode, durationFactor float64) RouteCandidate {
	out := r.Clone()
	out.Mode = mode
	out.Duration = r.Duration * durationFactor
	out.IsFastest = true
	out.Synthetic = true
	return out
}

// AverageSpeed returns distance/duration in m/s, or fallback when either is unknown.
func (r RouteCandidate) AverageSpeed(fallback float64) float64 {
	if r.Duration > 0 && r.Distance > 0 {
		return r.Distance / r.Duration
	}
	return fallback
}

// StepAt returns the step at i, or false when out of range.
func (r RouteCandidate) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(r.Steps) {
		return Step{}, false
	}
	return r.Steps[i], true
}
