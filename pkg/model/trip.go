package model

import (
	"time"

	"tripsync/pkg/geo"
)

// TripState is an immutable snapshot of the navigation state.
type TripState struct {
	Route             *RouteCandidate `json:"route,omitempty"`
	Destination       geo.Point       `json:"destination"`
	DestinationName   string          `json:"destination_name"`
	CurrentStep       int             `json:"current_step"`
	DistanceRemaining float64         `json:"distance_remaining"` // meters
	TimeRemaining     float64         `json:"time_remaining"`     // seconds
	IsActive          bool            `json:"is_active"`
	HasArrived        bool            `json:"has_arrived"`
	UserCoord         *geo.Point      `json:"user_coord,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CurrentInstruction returns the instruction of the current step or "".
func (s *TripState) CurrentInstruction() string {
	if s == nil || s.Route == nil {
		return ""
	}
	step, ok := s.Route.StepAt(s.CurrentStep)
	if !ok {
		return ""
	}
	return step.Instruction
}

// TripEventType categorizes journal entries.
type TripEventType string

// Journal event types.
const (
	EventTripStarted  TripEventType = "trip_started"
	EventStepAdvanced TripEventType = "step_advanced"
	EventArrived      TripEventType = "arrived"
	EventTripStopped  TripEventType = "trip_stopped"
	EventCollected    TripEventType = "collected"
	EventFocusChanged TripEventType = "focus_changed"
)

// TripEvent is a single journal entry for the current trip.
type TripEvent struct {
	Type      TripEventType     `json:"type"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
