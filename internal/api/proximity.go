package api

import (
	"context"
	"errors"
	"net/http"

	"tripsync/pkg/model"
	"tripsync/pkg/proximity"
)

// Collector is the proximity engine surface the API uses.
type Collector interface {
	State() model.ProximityState
	Collect(ctx context.Context, poiID string) (proximity.CollectResult, error)
	CollectFocus(ctx context.Context) (proximity.CollectResult, error)
	Collected(ctx context.Context) ([]int, error)
}

// ProximityHandler serves nearby POIs and collection.
type ProximityHandler struct {
	engine Collector
}

// NewProximityHandler creates a ProximityHandler.
func NewProximityHandler(e Collector) *ProximityHandler {
	return &ProximityHandler{engine: e}
}

type collectRequest struct {
	POIID string `json:"poi_id" validate:"omitempty,max=64"`
}

// HandleState returns the latest proximity evaluation.
// GET /api/proximity
func (h *ProximityHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	st := h.engine.State()
	if st.Nearby == nil {
		st.Nearby = []model.NearbyPOI{}
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCollect collects the named POI, or the current focus when no id is
// given.
// POST /api/collect
func (h *ProximityHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var (
		res proximity.CollectResult
		err error
	)
	if req.POIID == "" {
		res, err = h.engine.CollectFocus(r.Context())
	} else {
		res, err = h.engine.Collect(r.Context(), req.POIID)
	}

	switch {
	case errors.Is(err, proximity.ErrUnknownPOI):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, proximity.ErrNotCollectable):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// HandleCollection returns the collected collectible ids.
// GET /api/collection
func (h *ProximityHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.Collected(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []int{}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"collected": ids})
}
