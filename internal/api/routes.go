package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/routing"
)

// RoutePlanner resolves and remembers route sets. *routing.Planner implements it.
type RoutePlanner interface {
	Plan(ctx context.Context, origin, destination geo.Point, modes []model.TransportMode) (*routing.Plan, error)
	Last() (*routing.Plan, bool)
}

// RoutesHandler serves route planning.
type RoutesHandler struct {
	planner RoutePlanner
}

// NewRoutesHandler creates a RoutesHandler.
func NewRoutesHandler(p RoutePlanner) *RoutesHandler {
	return &RoutesHandler{planner: p}
}

type routesRequest struct {
	Origin      pointDTO              `json:"origin"`
	Destination pointDTO              `json:"destination"`
	Modes       []model.TransportMode `json:"modes" validate:"omitempty,dive,oneof=automobile pedestrian transit bicycle"`
}

type routesResponse struct {
	*routing.Plan
	Modes   []model.TransportMode               `json:"modes"`
	Summary map[model.TransportMode]modeSummary `json:"summary"`
}

// modeSummary is the headline figure shown on each mode tab.
type modeSummary struct {
	Duration  float64 `json:"duration"`
	Distance  float64 `json:"distance"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

func newRoutesResponse(plan *routing.Plan) routesResponse {
	resp := routesResponse{
		Plan:    plan,
		Modes:   plan.Routes.Modes(),
		Summary: make(map[model.TransportMode]modeSummary),
	}
	for _, m := range resp.Modes {
		if best, ok := plan.Routes.Fastest(m); ok {
			resp.Summary[m] = modeSummary{Duration: best.Duration, Distance: best.Distance, Synthetic: best.Synthetic}
		}
	}
	return resp
}

// HandlePlan resolves routes for the requested modes (all when empty).
// POST /api/routes
func (h *RoutesHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	var req routesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	modes := req.Modes
	if len(modes) == 0 {
		modes = model.AllModes
	}

	plan, err := h.planner.Plan(r.Context(), req.Origin.point(), req.Destination.point(), modes)
	switch {
	case errors.Is(err, routing.ErrSuperseded):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoutesResponse(plan))
}

// HandleArrows returns direction arrows for a candidate of the last plan.
// GET /api/routes/arrows?mode=pedestrian&index=0
func (h *RoutesHandler) HandleArrows(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.planner.Last()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no route plan yet"))
		return
	}
	mode := model.TransportMode(r.URL.Query().Get("mode"))
	index := 0
	if v := r.URL.Query().Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		index = n
	}

	route, err := routing.SelectRoute(plan.Routes, mode, index)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	arrows := routing.DirectionalArrows(route, routing.DefaultArrowOptions)
	if arrows == nil {
		arrows = []routing.Arrow{}
	}
	writeJSON(w, http.StatusOK, arrows)
}
