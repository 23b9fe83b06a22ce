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
	"github.com/redis/go-redis/v9"

	"tripsync/internal/api"
	"tripsync/pkg/cache"
	"tripsync/pkg/catalog"
	"tripsync/pkg/config"
	"tripsync/pkg/db"
	"tripsync/pkg/db/maintenance"
	"tripsync/pkg/geo"
	"tripsync/pkg/location"
	"tripsync/pkg/logging"
	"tripsync/pkg/model"
	"tripsync/pkg/navigation"
	"tripsync/pkg/peer"
	"tripsync/pkg/peer/natslink"
	"tripsync/pkg/peer/wslink"
	"tripsync/pkg/probe"
	"tripsync/pkg/proximity"
	"tripsync/pkg/request"
	"tripsync/pkg/routing"
	"tripsync/pkg/routing/ors"
	"tripsync/pkg/routing/straight"
	"tripsync/pkg/session"
	"tripsync/pkg/store"
	"tripsync/pkg/surface"
	"tripsync/pkg/tracker"
	"tripsync/pkg/version"
)

var (
	configPath = flag.String("config", "configs/tripsync.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	// Secrets such as TRIPSYNC_ORS_KEY may live in .env
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

	slog.Info("tripsync started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	cat, err := catalog.Load(appCfg.Catalog.Path, catalog.Options{
		CollectibleBase: appCfg.Proximity.CollectibleBase,
		CellResolution:  appCfg.Proximity.CellResolution,
	})
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	slog.Info("Catalog loaded", "pois", cat.Len())

	maintenance.Run(ctx, st, dbConn, cat.Fingerprint(), time.Duration(appCfg.Peer.OutboxTTL))

	ledger, closeLedger, err := initLedger(appCfg, st)
	if err != nil {
		return err
	}
	defer closeLedger()

	tr := tracker.New()

	// Location
	var src location.Source
	var follower api.PathFollower
	if appCfg.Location.Source == "simulated" {
		walker := location.NewWalker(location.WalkerConfig{
			Start:    geo.Point{Lat: appCfg.Location.Sim.StartLat, Lon: appCfg.Location.Sim.StartLon},
			Speed:    appCfg.Location.Sim.Speed,
			Interval: time.Duration(appCfg.Location.Sim.Interval),
			Jitter:   appCfg.Location.Sim.Jitter.Meters(),
		})
		src = walker
		follower = walker
	}
	hub := location.NewHub(src)
	defer hub.Close()

	// Routing
	engine := initRoutingEngine(appCfg, tr)
	planner := routing.NewPlanner(routing.NewResolver(engine, routing.Options{
		CyclingFactor: appCfg.Routing.CyclingFactor,
		TransitFactor: appCfg.Routing.TransitFactor,
	}))

	// Peer
	links, err := initPeerLink(ctx, appCfg, st)
	if err != nil {
		return err
	}
	defer links.close()
	channel := peer.NewChannel(links.link, tr, peer.ChannelOptions{
		SendTimeout: time.Duration(appCfg.Peer.SendTimeout),
		Backlog:     appCfg.Peer.Backlog,
	})
	defer channel.Close()

	// Navigation
	board := surface.NewBoard(appCfg.Surface.Enabled)
	journal := session.NewManager(0)
	nav := navigation.New(navigation.Options{
		Fixes:     hub,
		Surface:   surface.NewSession(board),
		Publisher: channel,
		Recalc:    planner,
		Journal:   journal,
	})

	// Proximity and recommendations
	prox := initProximity(ctx, appCfg, cat, ledger, hub, channel, journal)
	rec, recFeed := initRecommender(ctx, appCfg, cat, hub, channel)
	defer recFeed.StopContinuousFixes()

	// Startup Probes
	probes := []probe.Probe{
		probe.Catalog(cat.Len),
		probe.Database("SQLite", dbConn),
		probe.RoutingEngine(engine, geo.Point{Lat: appCfg.Location.Sim.StartLat, Lon: appCfg.Location.Sim.StartLon}),
		probe.PeerLink(links.link),
	}
	if p, ok := ledger.(probe.Pinger); ok && appCfg.Ledger.Backend == "redis" {
		probes = append(probes, probe.Database("Redis Ledger", p))
	}
	results := probe.Run(ctx, probes, probe.DefaultTimeout)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(appCfg.Server.Address, api.Handlers{
		Routes:    api.NewRoutesHandler(planner),
		Trip:      api.NewTripHandler(nav, planner, journal, follower),
		Fix:       api.NewFixHandler(hub),
		Proximity: api.NewProximityHandler(prox),
		Recommend: api.NewRecommendHandler(rec, hub),
		Stats:     api.NewStatsHandler(tr, links.pending),
		Card:      board,
		Peer:      links.handler,
	}, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)

	err = runServerLifecycle(ctx, srv, quit)
	nav.Stop()
	return err
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initLedger selects the collection ledger backend.
func initLedger(cfg *config.Config, st *store.SQLiteStore) (proximity.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Ledger.Redis.Addr,
			Password: cfg.Ledger.Redis.Password,
			DB:       cfg.Ledger.Redis.DB,
		})
		l := store.NewRedisLedger(client, cfg.Ledger.Redis.Key)
		return l, func() {
			if err := l.Close(); err != nil {
				slog.Warn("Failed to close redis ledger", "error", err)
			}
		}, nil
	case "memory":
		slog.Warn("Using in-memory ledger, collections are lost on exit")
		return proximity.NewMemoryLedger(), func() {}, nil
	default:
		return st, func() {}, nil
	}
}

func initRoutingEngine(cfg *config.Config, tr *tracker.Tracker) routing.Engine {
	if cfg.Routing.Engine == "ors" {
		if cfg.Routing.ORS.Key == "" {
			slog.Warn("ORS key missing, falling back to straight-line routing")
		} else {
			client := request.New(cache.NewMemoryCache(time.Duration(cfg.Routing.ORS.CacheTTL)), tr, request.Options{
				Timeout:   time.Duration(cfg.Routing.Timeout),
				Retries:   cfg.Routing.Request.Retries,
				BaseDelay: time.Duration(cfg.Routing.Request.Backoff.BaseDelay),
				MaxDelay:  time.Duration(cfg.Routing.Request.Backoff.MaxDelay),
			})
			return ors.New(client, cfg.Routing.ORS.BaseURL, cfg.Routing.ORS.Key, cfg.Routing.ORS.Alternatives)
		}
	}
	return straight.New(0)
}

// peerLinks bundles the selected transport with its optional extras.
type peerLinks struct {
	link interface {
		peer.Link
		Close() error
	}
	pending api.PendingCounter
	handler http.Handler
}

func (p *peerLinks) close() {
	if err := p.link.Close(); err != nil {
		slog.Warn("Failed to close peer link", "error", err)
	}
}

func initPeerLink(ctx context.Context, cfg *config.Config, st *store.SQLiteStore) (*peerLinks, error) {
	if cfg.Peer.Transport == "nats" {
		l, err := natslink.Dial(ctx, natslink.Options{
			URL:           cfg.Peer.NATS.URL,
			SubjectPrefix: cfg.Peer.NATS.SubjectPrefix,
			Stream:        cfg.Peer.NATS.Stream,
			Consumer:      cfg.Peer.NATS.Consumer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect peer link: %w", err)
		}
		return &peerLinks{link: l}, nil
	}

	ws := wslink.NewServer(st, wslink.Options{
		PingInterval: time.Duration(cfg.Peer.WebSocket.PingInterval),
		DrainBatch:   cfg.Peer.WebSocket.DrainBatch,
	})
	return &peerLinks{link: ws, pending: ws, handler: ws}, nil
}

func initProximity(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, ledger proximity.Ledger, hub *location.Hub, pub peer.Publisher, journal *session.Manager) *proximity.Engine {
	engine := proximity.NewEngine(cat, ledger, proximity.Options{
		ScanRadius:    cfg.Proximity.ScanRadius.Meters(),
		CollectRadius: cfg.Proximity.CollectRadius.Meters(),
	})

	engine.OnCollect(func(res proximity.CollectResult) {
		pub.Publish(peer.CollectionNotice{
			CollectibleID: res.CollectibleID,
			POIID:         res.POI.ID,
			POIName:       res.POI.DisplayName,
			CollectedAt:   res.CollectedAt,
		})
		journal.AddEvent(&model.TripEvent{
			Type:     model.EventCollected,
			Title:    res.POI.DisplayName,
			Metadata: map[string]string{"collectible_id": fmt.Sprint(res.CollectibleID)},
		})
	})
	engine.OnChange(func(_, next model.ProximityState) {
		title := "No point of interest nearby"
		if next.Focus != nil {
			title = next.Focus.POI.DisplayName
		}
		journal.AddEvent(&model.TripEvent{
			Type:     model.EventFocusChanged,
			Title:    title,
			Metadata: map[string]string{"collectable": fmt.Sprint(next.Collectable)},
		})
	})

	feed := hub.Subscribe("proximity", engine.OnFix)
	if err := feed.StartContinuousFixes(ctx); err != nil {
		slog.Error("Failed to start proximity fixes", "error", err)
	}
	return engine
}

func initRecommender(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, hub *location.Hub, pub peer.Publisher) (*peer.Recommender, *location.Feed) {
	rec := peer.NewRecommender(cat, pub, peer.RecommenderOptions{
		TopK:     cfg.Recommend.TopK,
		Interval: time.Duration(cfg.Recommend.Interval),
		Radius:   cfg.Recommend.Radius.Meters(),
	})
	feed := hub.Subscribe("recommend", func(f location.Fix) {
		rec.Maybe(f.Timestamp, f.Coord)
	})
	if err := feed.StartContinuousFixes(ctx); err != nil {
		slog.Error("Failed to start recommendation fixes", "error", err)
	}
	return rec, feed
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
