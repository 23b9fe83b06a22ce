package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/navigation"
	"tripsync/pkg/routing"
)

// TripNavigator is the navigation state machine. *navigation.Navigator implements it.
type TripNavigator interface {
	Start(route model.RouteCandidate, destination geo.Point, destinationName string) error
	Stop()
	State() model.TripState
	Phase() navigation.Phase
}

// JournalProvider exposes the trip journal.
type JournalProvider interface {
	Events() []model.TripEvent
	Since(t time.Time) []model.TripEvent
	Count(typ model.TripEventType) int
}

// PathFollower is told the path of a started trip. The simulated walker
// implements it.
type PathFollower interface {
	SetPath(ls orb.LineString)
}

// TripHandler handles trip-related API endpoints.
type TripHandler struct {
	nav      TripNavigator
	planner  RoutePlanner
	journal  JournalProvider
	follower PathFollower
}

// NewTripHandler creates a TripHandler. follower may be nil.
func NewTripHandler(nav TripNavigator, planner RoutePlanner, journal JournalProvider, follower PathFollower) *TripHandler {
	return &TripHandler{nav: nav, planner: planner, journal: journal, follower: follower}
}

type startRequest struct {
	Mode            model.TransportMode `json:"mode" validate:"required,oneof=automobile pedestrian transit bicycle"`
	Index           int                 `json:"index" validate:"gte=0"`
	Destination     *pointDTO           `json:"destination,omitempty"`
	DestinationName string              `json:"destination_name" validate:"max=120"`
}

type tripResponse struct {
	model.TripState
	Phase       navigation.Phase `json:"phase"`
	Instruction string           `json:"instruction"`
	Collected   int              `json:"collected"` // collectibles gained since the trip started
}

func (h *TripHandler) response() tripResponse {
	st := h.nav.State()
	return tripResponse{
		TripState:   st,
		Phase:       h.nav.Phase(),
		Instruction: st.CurrentInstruction(),
		Collected:   h.journal.Count(model.EventCollected),
	}
}

// HandleStart starts navigation along a candidate of the last plan.
// POST /api/trip/start
func (h *TripHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	plan, ok := h.planner.Last()
	if !ok {
		writeError(w, http.StatusConflict, errors.New("plan routes first"))
		return
	}
	route, err := routing.SelectRoute(plan.Routes, req.Mode, req.Index)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	dest := plan.Destination
	if req.Destination != nil {
		dest = req.Destination.point()
	}
	if err := h.nav.Start(route, dest, req.DestinationName); err != nil {
		if errors.Is(err, navigation.ErrEmptyRoute) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if h.follower != nil {
		h.follower.SetPath(followPath(plan.Origin, route))
	}
	writeJSON(w, http.StatusOK, h.response())
}

// HandleStop stops navigation.
// POST /api/trip/stop
func (h *TripHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.nav.Stop()
	if h.follower != nil {
		h.follower.SetPath(nil)
	}
	writeJSON(w, http.StatusOK, h.response())
}

// HandleState returns the current trip snapshot.
// GET /api/trip
func (h *TripHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.response())
}

// HandleEvents returns the trip journal, optionally only events after
// ?since=<RFC3339>.
// GET /api/trip/events
func (h *TripHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	var events []model.TripEvent
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		events = h.journal.Since(since)
	} else {
		events = h.journal.Events()
	}
	if events == nil {
		events = []model.TripEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// followPath returns the route geometry, falling back to origin plus the
// step coordinates.
func followPath(origin geo.Point, route model.RouteCandidate) orb.LineString {
	if len(route.Path) >= 2 {
		return route.Path.Clone()
	}
	ls := orb.LineString{origin.Orb()}
	for _, s := range route.Steps {
		ls = append(ls, s.Coordinate.Orb())
	}
	return ls
}
