package peer

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

// NoEventsHint is shown for a point of interest without upcoming events.
const NoEventsHint = "No scheduled events"

// Publisher accepts sync messages. *Channel implements it.
type Publisher interface {
	Publish(msg Message)
}

// POISource finds points of interest near a coordinate, in catalog order.
type POISource interface {
	Within(p geo.Point, radius float64) []model.NearbyPOI
}

// RecommenderOptions tunes recommendation pushes.
type RecommenderOptions struct {
	TopK     int
	Interval time.Duration
	Radius   float64 // meters
	Rand     *rand.Rand
}

// Recommender pushes the nearest points of interest to the peer at most
// once per interval.
type Recommender struct {
	pois POISource
	pub  Publisher
	opts RecommenderOptions

	mu       sync.Mutex
	rng      *rand.Rand
	lastPush time.Time
	pushed   bool
}

// NewRecommender creates a recommender. Zero options take the defaults
// (5 results, 5 minutes, 500 m).
func NewRecommender(pois POISource, pub Publisher, opts RecommenderOptions) *Recommender {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Radius <= 0 {
		opts.Radius = 500
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return &Recommender{pois: pois, pub: pub, opts: opts, rng: rng}
}

// Maybe pushes recommendations for coord when more than the interval has
// elapsed since the last push. It reports whether a push happened. An empty
// list is pushed like any other.
func (r *Recommender) Maybe(now time.Time, coord geo.Point) bool {
	r.mu.Lock()
	if r.pushed && now.Sub(r.lastPush) <= r.opts.Interval {
		r.mu.Unlock()
		return false
	}
	recs := r.build(now, coord)
	r.lastPush = now
	r.pushed = true
	r.mu.Unlock()

	r.pub.Publish(RecommendationPush{TopK: recs})
	return true
}

// Build returns the current top-K without publishing or touching the rate
// limit.
func (r *Recommender) Build(now time.Time, coord geo.Point) []Recommendation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build(now, coord)
}

func (r *Recommender) build(now time.Time, coord geo.Point) []Recommendation {
	nearby := r.pois.Within(coord, r.opts.Radius)
	// Stable keeps catalog order for equal distances.
	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].Distance < nearby[j].Distance
	})
	if len(nearby) > r.opts.TopK {
		nearby = nearby[:r.opts.TopK]
	}

	out := make([]Recommendation, 0, len(nearby))
	for _, n := range nearby {
		p := n.POI
		rec := Recommendation{
			POI: RecommendedPOI{
				ID:            p.ID,
				Name:          p.DisplayName,
				City:          p.City,
				Country:       p.Country,
				Coordinate:    p.Coordinate,
				Color:         p.Color,
				CollectibleID: p.CollectibleID,
			},
			Distance:      n.Distance,
			DistanceHint:  FormatDistance(n.Distance),
			NextEventHint: NoEventsHint,
		}
		if ev, ok := p.NextEvent(now); ok {
			rec.NextEventHint = ev.Title + " · " + ev.StartsAt.Format("Jan 2 15:04")
		}
		if len(p.Trivia) > 0 {
			rec.Trivia = p.Trivia[r.rng.IntN(len(p.Trivia))]
		}
		out = append(out, rec)
	}
	return out
}
