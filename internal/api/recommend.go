package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tripsync/pkg/geo"
	"tripsync/pkg/location"
	"tripsync/pkg/peer"
)

// RecommendationBuilder previews the recommendation list. *peer.Recommender
// implements it.
type RecommendationBuilder interface {
	Build(now time.Time, coord geo.Point) []peer.Recommendation
}

// LastFixer reports the most recent fix. *location.Hub implements it.
type LastFixer interface {
	Last() (location.Fix, bool)
}

// RecommendHandler serves recommendation previews. Nothing is pushed to the
// peer and the push rate limit is untouched.
type RecommendHandler struct {
	rec   RecommendationBuilder
	fixes LastFixer
	now   func() time.Time
}

// NewRecommendHandler creates a RecommendHandler. fixes may be nil, in which
// case lat and lon are required.
func NewRecommendHandler(rec RecommendationBuilder, fixes LastFixer) *RecommendHandler {
	return &RecommendHandler{rec: rec, fixes: fixes, now: time.Now}
}

// HandlePreview returns the top-K for ?lat=&lon=, or for the last fix when
// both are omitted.
// GET /api/recommendations
func (h *RecommendHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var coord geo.Point
	switch {
	case q.Get("lat") != "" || q.Get("lon") != "":
		p, err := parsePoint(q.Get("lat"), q.Get("lon"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		coord = p
	case h.fixes != nil:
		f, ok := h.fixes.Last()
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("no position yet"))
			return
		}
		coord = f.Coord
	default:
		writeError(w, http.StatusBadRequest, errors.New("lat and lon are required"))
		return
	}

	recs := h.rec.Build(h.now(), coord)
	if recs == nil {
		recs = []peer.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func parsePoint(latStr, lonStr string) (geo.Point, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid lat: %w", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid lon: %w", err)
	}
	p := pointDTO{Lat: lat, Lon: lon}
	if err := validate.Struct(p); err != nil {
		return geo.Point{}, fmt.Errorf("invalid coordinate: %w", err)
	}
	return p.point(), nil
}
