package model

import (
	"time"

	"tripsync/pkg/geo"
)

// Event is a scheduled happening at a POI.
type Event struct {
	Title    string    `json:"title" yaml:"title"`
	StartsAt time.Time `json:"starts_at" yaml:"starts_at"`
}

// PointOfInterest is static reference data for the proximity engine.
type PointOfInterest struct {
	ID            string    `json:"id"`
	Coordinate    geo.Point `json:"coordinate"`
	DisplayName   string    `json:"display_name"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	Color         string    `json:"color,omitempty"`
	CollectibleID int       `json:"collectible_id"`
	Events        []Event   `json:"events,omitempty"`
	Trivia        []string  `json:"trivia,omitempty"`
}

// NextEvent returns the first event starting at or after now.
func (p *PointOfInterest) NextEvent(now time.Time) (Event, bool) {
	var best Event
	found := false
	for _, e := range p.Events {
		if e.StartsAt.Before(now) {
			continue
		}
		if !found || e.StartsAt.Before(best.StartsAt) {
			best = e
			found = true
		}
	}
	return best, found
}

// NearbyPOI pairs a POI with its distance from the user.
type NearbyPOI struct {
	POI      *PointOfInterest `json:"poi"`
	Index    int              `json:"index"` // position in the catalog
	Distance float64          `json:"distance"`
}

// ProximityState is the result of one proximity evaluation.
type ProximityState struct {
	Nearby      []NearbyPOI `json:"nearby"`
	Focus       *NearbyPOI  `json:"focus,omitempty"`
	Collectable bool        `json:"collectable"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}
