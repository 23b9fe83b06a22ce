package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Location  LocationConfig  `yaml:"location"`
	Routing   RoutingConfig   `yaml:"routing"`
	Proximity ProximityConfig `yaml:"proximity"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Peer      PeerConfig      `yaml:"peer"`
	Recommend RecommendConfig `yaml:"recommend"`
	Surface   SurfaceConfig   `yaml:"surface"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Events LogSettings `yaml:"events"`
}

// LogSettings holds settings for a single log file.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address     string `yaml:"address"`
	PeerAddress string `yaml:"peer_address"`
}

// CatalogConfig points at the POI catalog file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LocationConfig selects the fix source.
type LocationConfig struct {
	Source string        `yaml:"source"` // "simulated" or "manual"
	Sim    SimWalkConfig `yaml:"sim"`
}

// SimWalkConfig drives the simulated walker.
type SimWalkConfig struct {
	StartLat float64  `yaml:"start_lat"`
	StartLon float64  `yaml:"start_lon"`
	Speed    float64  `yaml:"speed_mps"`
	Interval Duration `yaml:"interval"`
	Jitter   Distance `yaml:"jitter"`
}

// RoutingConfig holds routing engine settings.
type RoutingConfig struct {
	Engine        string        `yaml:"engine"` // "ors" or "straight"
	Timeout       Duration      `yaml:"timeout"`
	CyclingFactor float64       `yaml:"cycling_factor"`
	TransitFactor float64       `yaml:"transit_factor"`
	ORS           ORSConfig     `yaml:"ors"`
	Request       RequestConfig `yaml:"request"`
}

// ORSConfig holds OpenRouteService settings.
type ORSConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Key          string   `yaml:"key"`
	Alternatives int      `yaml:"alternatives"`
	CacheTTL     Duration `yaml:"cache_ttl"`
}

// RequestConfig holds HTTP retry settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// ProximityConfig holds the collection engine radii.
type ProximityConfig struct {
	ScanRadius      Distance `yaml:"scan_radius"`
	CollectRadius   Distance `yaml:"collect_radius"`
	CollectibleBase int      `yaml:"collectible_base"`
	CellResolution  int      `yaml:"cell_resolution"`
}

// LedgerConfig selects the collection ledger backend.
type LedgerConfig struct {
	Backend string      `yaml:"backend"` // "sqlite", "redis" or "memory"
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// PeerConfig holds the peer sync settings.
type PeerConfig struct {
	Transport   string          `yaml:"transport"` // "websocket" or "nats"
	SendTimeout Duration        `yaml:"send_timeout"`
	Backlog     int             `yaml:"backlog"`
	OutboxTTL   Duration        `yaml:"outbox_ttl"` // queued messages older than this are pruned at startup
	WebSocket   WebSocketConfig `yaml:"websocket"`
	NATS        NATSConfig      `yaml:"nats"`
}

// WebSocketConfig holds the websocket link settings.
type WebSocketConfig struct {
	URL          string   `yaml:"url"` // peer side: phone endpoint to dial
	PingInterval Duration `yaml:"ping_interval"`
	DrainBatch   int      `yaml:"drain_batch"`
}

// NATSConfig holds the NATS link settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Stream        string `yaml:"stream"`
	Consumer      string `yaml:"consumer"`
}

// RecommendConfig holds recommendation push settings.
type RecommendConfig struct {
	TopK     int      `yaml:"top_k"`
	Interval Duration `yaml:"interval"`
	Radius   Distance `yaml:"radius"`
}

// SurfaceConfig holds the ambient status surface settings.
type SurfaceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:       "logs/tripsync.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 5,
				MaxAgeDays: 30,
				Compress:   true,
			},
			Events: LogSettings{
				Path: "logs/events.log",
			},
		},
		DB: DBConfig{
			Path: "data/tripsync.db",
		},
		Server: ServerConfig{
			Address:     "localhost:8720",
			PeerAddress: "localhost:8721",
		},
		Catalog: CatalogConfig{
			Path: "configs/pois.yaml",
		},
		Location: LocationConfig{
			Source: "simulated",
			Sim: SimWalkConfig{
				StartLat: 19.4326,
				StartLon: -99.1332,
				Speed:    1.4,
				Interval: Duration(time.Second),
				Jitter:   3,
			},
		},
		Routing: RoutingConfig{
			Engine:        "straight",
			Timeout:       Duration(15 * time.Second),
			CyclingFactor: 0.4,
			TransitFactor: 1.5,
			ORS: ORSConfig{
				BaseURL:      "https://api.openrouteservice.org",
				Alternatives: 3,
				CacheTTL:     Duration(10 * time.Minute),
			},
			Request: RequestConfig{
				Retries: 3,
				Backoff: BackoffConfig{
					BaseDelay: Duration(500 * time.Millisecond),
					MaxDelay:  Duration(8 * time.Second),
				},
			},
		},
		Proximity: ProximityConfig{
			ScanRadius:      500,
			CollectRadius:   100,
			CollectibleBase: 14,
			CellResolution:  8,
		},
		Ledger: LedgerConfig{
			Backend: "sqlite",
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "tripsync:collected",
			},
		},
		Peer: PeerConfig{
			Transport:   "websocket",
			SendTimeout: Duration(5 * time.Second),
			Backlog:     32,
			OutboxTTL:   Duration(7 * 24 * time.Hour),
			WebSocket: WebSocketConfig{
				URL:          "ws://localhost:8720/ws/peer",
				PingInterval: Duration(15 * time.Second),
				DrainBatch:   50,
			},
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				SubjectPrefix: "tripsync.peer",
				Stream:        "TRIPSYNC_PEER",
				Consumer:      "tripsync-peer",
			},
		},
		Recommend: RecommendConfig{
			TopK:     5,
			Interval: Duration(5 * time.Minute),
			Radius:   500,
		},
		Surface: SurfaceConfig{
			Enabled: true,
		},
	}
}

// Load reads the configuration from path. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallbacks, never written back to disk
	if cfg.Routing.ORS.Key == "" {
		cfg.Routing.ORS.Key = os.Getenv("TRIPSYNC_ORS_KEY")
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Peer.NATS.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Ledger.Redis.Addr = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that would otherwise break the core.
func (c *Config) Validate() error {
	var errs []error
	if c.Proximity.ScanRadius <= 0 {
		errs = append(errs, errors.New("proximity.scan_radius must be positive"))
	}
	if c.Proximity.CollectRadius <= 0 {
		errs = append(errs, errors.New("proximity.collect_radius must be positive"))
	}
	if c.Routing.CyclingFactor <= 0 || c.Routing.CyclingFactor >= 1 {
		errs = append(errs, fmt.Errorf("routing.cycling_factor must be in (0,1), got %v", c.Routing.CyclingFactor))
	}
	if c.Routing.TransitFactor <= 1 {
		errs = append(errs, fmt.Errorf("routing.transit_factor must be > 1, got %v", c.Routing.TransitFactor))
	}
	if c.Recommend.TopK <= 0 {
		errs = append(errs, errors.New("recommend.top_k must be positive"))
	}
	switch c.Peer.Transport {
	case "websocket", "nats":
	default:
		errs = append(errs, fmt.Errorf("peer.transport: unknown transport %q", c.Peer.Transport))
	}
	switch c.Ledger.Backend {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend))
	}
	switch c.Routing.Engine {
	case "ors", "straight":
	default:
		errs = append(errs, fmt.Errorf("routing.engine: unknown engine %q", c.Routing.Engine))
	}
	return errors.Join(errs...)
}

// Save writes the configuration with a comment header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# tripsync configuration
# ---------------------
# Supported Units:
#   Duration: ms, s, m, h, d (day), w (week)
#   Distance: m, km, mi, ft

`)
	data = append(header, data...)

	reTransport := regexp.MustCompile(`(?m)^(\s+)transport:`)
	data = reTransport.ReplaceAll(data, []byte("${1}# Options: websocket, nats\n${1}transport:"))

	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: sqlite, redis, memory\n${1}backend:"))

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: ors, straight\n${1}engine:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault writes the default configuration to path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
