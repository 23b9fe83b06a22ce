// Command tripsync-peer is the companion side: it mirrors what the phone
// publishes and serves the mirrored state over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tripsync/internal/api"
	"tripsync/pkg/config"
	"tripsync/pkg/logging"
	"tripsync/pkg/peer"
	"tripsync/pkg/peer/natslink"
	"tripsync/pkg/peer/wslink"
	"tripsync/pkg/version"
)

var configPath = flag.String("config", "configs/tripsync.yaml", "Path to the config file")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("tripsync peer started", "version", version.Version, "transport", appCfg.Peer.Transport)

	mirror := peer.NewMirror()
	mirror.OnChange(logMirror)

	stop, err := startReceiver(ctx, appCfg, mirror)
	if err != nil {
		return err
	}
	defer stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	srv := api.NewServer(appCfg.Server.PeerAddress, api.Handlers{Mirror: mirror}, func() { quit <- syscall.SIGTERM })
	slog.Info("Starting server", "addr", srv.Addr)

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// startReceiver connects the configured transport to the mirror and returns
// its stop function.
func startReceiver(ctx context.Context, cfg *config.Config, mirror *peer.Mirror) (func(), error) {
	if cfg.Peer.Transport == "nats" {
		r, err := natslink.Listen(ctx, natslink.Options{
			URL:           cfg.Peer.NATS.URL,
			SubjectPrefix: cfg.Peer.NATS.SubjectPrefix,
			Stream:        cfg.Peer.NATS.Stream,
			Consumer:      cfg.Peer.NATS.Consumer,
		}, mirror.HandleEnvelope)
		if err != nil {
			return nil, fmt.Errorf("failed to start nats receiver: %w", err)
		}
		return func() {
			if err := r.Close(); err != nil {
				slog.Warn("Failed to close nats receiver", "error", err)
			}
		}, nil
	}

	client := wslink.NewClient(cfg.Peer.WebSocket.URL, mirror.HandleEnvelope)
	clientCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := client.Run(clientCtx); err != nil && clientCtx.Err() == nil {
			slog.Error("Peer client stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

// logMirror renders the mirrored state the way a small display would.
func logMirror(st peer.MirrorState) {
	if nav := st.Navigation; nav != nil {
		args := []any{"active", nav.IsActive, "destination", nav.DestName, "remaining", peer.FormatDistance(nav.DistanceRemaining)}
		if nav.UserCoord != nil && nav.DestCoord != nil {
			args = append(args, "arrow", fmt.Sprintf("%.0f°", peer.ArrowRotation(*nav.UserCoord, *nav.DestCoord, 0)))
		}
		if nav.Instruction != "" {
			args = append(args, "instruction", nav.Instruction)
		}
		slog.Info("Navigation", args...)
	}
	if rec := st.Recommendations; rec != nil && len(rec.TopK) > 0 {
		top := rec.TopK[0]
		slog.Info("Nearby", "count", len(rec.TopK), "closest", top.POI.Name, "hint", top.DistanceHint)
	}
	if c := st.LastCollection; c != nil {
		slog.Debug("Collected", "poi", c.POIName, "total", len(st.Collected))
	}
}
