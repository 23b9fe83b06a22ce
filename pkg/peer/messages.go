// Package peer keeps a companion device informed of trip progress.
//
// The sending side (Channel) is fire-and-forget with one queue per message
// domain. The receiving side (Mirror) applies whatever arrives last per
// domain, so duplicated or reordered deliveries are harmless.
package peer

import (
	"time"

	"tripsync/pkg/geo"
)

// Domain names an independent stream of sync messages.
type Domain string

const (
	DomainNavigation      Domain = "navigation_update"
	DomainRecommendations Domain = "recommendations"
	DomainCollection      Domain = "collection_notice"
)

// Domains lists every domain the channel runs a worker for.
var Domains = []Domain{DomainNavigation, DomainRecommendations, DomainCollection}

// Message is one sync payload.
type Message interface {
	Domain() Domain
}

// NavigationUpdate mirrors the trip state on the peer.
type NavigationUpdate struct {
	IsActive          bool       `json:"is_active"`
	UserCoord         *geo.Point `json:"user_coord,omitempty"`
	DestCoord         *geo.Point `json:"dest_coord,omitempty"`
	DestName          string     `json:"dest_name,omitempty"`
	DistanceRemaining float64    `json:"distance_remaining"`
	Instruction       string     `json:"instruction,omitempty"`
}

func (NavigationUpdate) Domain() Domain { return DomainNavigation }

// RecommendedPOI is the peer's compact view of a point of interest.
type RecommendedPOI struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	Coordinate    geo.Point `json:"coordinate"`
	Color         string    `json:"color,omitempty"`
	CollectibleID int       `json:"collectible_id"`
}

// Recommendation is one nearby point of interest with display hints.
type Recommendation struct {
	POI           RecommendedPOI `json:"poi"`
	Distance      float64        `json:"distance"`
	DistanceHint  string         `json:"distance_hint"`
	NextEventHint string         `json:"next_event_hint"`
	Trivia        string         `json:"trivia"`
}

// RecommendationPush carries the nearest points of interest, closest first.
type RecommendationPush struct {
	TopK []Recommendation `json:"top_k"`
}

func (RecommendationPush) Domain() Domain { return DomainRecommendations }

// CollectionNotice tells the peer a collectible was earned.
type CollectionNotice struct {
	CollectibleID int       `json:"collectible_id"`
	POIID         string    `json:"poi_id"`
	POIName       string    `json:"poi_name"`
	CollectedAt   time.Time `json:"collected_at"`
}

func (CollectionNotice) Domain() Domain { return DomainCollection }
