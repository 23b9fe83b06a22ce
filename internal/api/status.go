package api

import (
	"net/http"

	"tripsync/pkg/peer"
	"tripsync/pkg/surface"
)

// CardSource exposes the live status card. *surface.Board implements it.
type CardSource interface {
	Current() (surface.Card, bool)
}

// handleLiveStatus returns the status card, or 204 when none was opened.
// GET /api/status/live
func handleLiveStatus(src CardSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, ok := src.Current()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

// MirrorSource exposes the companion's mirrored state. *peer.Mirror implements it.
type MirrorSource interface {
	State() peer.MirrorState
}

// handleMirror returns the mirrored phone state.
// GET /api/mirror
func handleMirror(src MirrorSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.State())
	}
}
