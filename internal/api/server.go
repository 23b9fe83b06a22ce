// Package api serves the HTTP surface of the phone and companion binaries.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tripsync/pkg/version"
)

// Handlers groups the endpoint handlers. Nil entries leave their routes
// unregistered, so the companion binary only sets Mirror.
type Handlers struct {
	Routes    *RoutesHandler
	Trip      *TripHandler
	Fix       *FixHandler
	Proximity *ProximityHandler
	Recommend *RecommendHandler
	Stats     *StatsHandler
	Card      CardSource
	Mirror    MirrorSource
	Peer      http.Handler
}

// NewServer creates and configures the HTTP server.
// shutdown is invoked asynchronously by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Logs
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/recent", handleRecentLogs)

	// 2a. Stats
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}

	// 2b. Routes
	if h.Routes != nil {
		mux.HandleFunc("POST /api/routes", h.Routes.HandlePlan)
		mux.HandleFunc("GET /api/routes/arrows", h.Routes.HandleArrows)
	}

	// 2c. Trip
	if h.Trip != nil {
		mux.HandleFunc("GET /api/trip", h.Trip.HandleState)
		mux.HandleFunc("POST /api/trip/start", h.Trip.HandleStart)
		mux.HandleFunc("POST /api/trip/stop", h.Trip.HandleStop)
		mux.HandleFunc("GET /api/trip/events", h.Trip.HandleEvents)
	}

	// 2d. Position
	if h.Fix != nil {
		mux.HandleFunc("GET /api/fix", h.Fix.HandleLast)
		mux.HandleFunc("POST /api/fix", h.Fix.HandlePublish)
	}

	// 2e. Proximity and collection
	if h.Proximity != nil {
		mux.HandleFunc("GET /api/proximity", h.Proximity.HandleState)
		mux.HandleFunc("POST /api/collect", h.Proximity.HandleCollect)
		mux.HandleFunc("GET /api/collection", h.Proximity.HandleCollection)
	}

	if h.Recommend != nil {
		mux.HandleFunc("GET /api/recommendations", h.Recommend.HandlePreview)
	}

	// 2f. Live status card
	if h.Card != nil {
		mux.HandleFunc("GET /api/status/live", handleLiveStatus(h.Card))
	}

	// 2g. Peer
	if h.Peer != nil {
		mux.Handle("GET /ws/peer", h.Peer)
	}
	if h.Mirror != nil {
		mux.HandleFunc("GET /api/mirror", handleMirror(h.Mirror))
	}

	// 3. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush before the listener closes.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	// WriteTimeout stays zero: /ws/peer connections are long-lived.
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
