package api

import (
	"errors"
	"net/http"
	"time"

	"tripsync/pkg/location"
)

// FixPublisher accepts manual position fixes. *location.Hub implements it.
type FixPublisher interface {
	Publish(f location.Fix) error
	Last() (location.Fix, bool)
}

// FixHandler feeds fixes into the location hub.
type FixHandler struct {
	hub FixPublisher
}

// NewFixHandler creates a FixHandler.
func NewFixHandler(hub FixPublisher) *FixHandler {
	return &FixHandler{hub: hub}
}

type fixRequest struct {
	pointDTO
	Heading   *float64   `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// HandlePublish publishes one fix.
// POST /api/fix
func (h *FixHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f := location.Fix{Coord: req.point(), Heading: req.Heading}
	if req.Timestamp != nil {
		f.Timestamp = *req.Timestamp
	}
	if err := h.hub.Publish(f); err != nil {
		if errors.Is(err, location.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleLast returns the most recent fix.
// GET /api/fix
func (h *FixHandler) HandleLast(w http.ResponseWriter, r *http.Request) {
	f, ok := h.hub.Last()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no fix yet"))
		return
	}
	writeJSON(w, http.StatusOK, f)
}
