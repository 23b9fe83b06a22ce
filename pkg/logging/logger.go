package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tripsync/pkg/config"
	"tripsync/pkg/model"
)

// eventLogPath is the path to the trip event log file.
var eventLogPath string

// eventLogMu protects concurrent writes to the event log.
var eventLogMu sync.Mutex

// Init initializes the logging system based on configuration.
// It returns a cleanup function that closes the log files.
func Init(cfg *config.LogConfig) (func(), error) {
	// Event log starts fresh each run, the previous one is kept as .old
	rotatePaths(cfg.Events.Path)
	SetEventLogPath(cfg.Events.Path)

	handler, closer, err := setupHandler(&cfg.Server, true)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	slog.SetDefault(slog.New(handler))

	return func() {
		if closer != nil {
			closer.Close()
		}
	}, nil
}

func parseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupHandler(s *config.LogSettings, stdout bool) (slog.Handler, io.Closer, error) {
	level := parseLevel(s.Level)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   s.Path,
		MaxSize:    s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		MaxAge:     s.MaxAgeDays,
		Compress:   s.Compress,
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	fileHandler := slog.NewTextHandler(file, opts)

	if !stdout {
		return fileHandler, file, nil
	}

	// Console stays at INFO and above unless the file is even quieter
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})
	captureHandler := slog.NewTextHandler(RecentLogs, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler, captureHandler}}, file, nil
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// rotatePaths renames existing files to .old so each run starts with a fresh file.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			oldPath := p + ".old"
			_ = os.Remove(oldPath)
			_ = os.Rename(p, oldPath)
		}
	}
}

// SetEventLogPath configures the path for the trip event log file.
func SetEventLogPath(path string) {
	eventLogMu.Lock()
	defer eventLogMu.Unlock()
	eventLogPath = path
}

// LogEvent appends a trip event to the event log file.
func LogEvent(event *model.TripEvent) {
	eventLogMu.Lock()
	defer eventLogMu.Unlock()

	if eventLogPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(eventLogPath), 0o755); err != nil {
		slog.Error("failed to create event log directory", "error", err)
		return
	}

	f, err := os.OpenFile(eventLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open event log", "error", err)
		return
	}
	defer f.Close()

	// Format: [2006-01-02 15:04:05] [type] Title - Summary
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("[%s] [%s] %s", ts.Format("2006-01-02 15:04:05"), event.Type, event.Title)
	if event.Summary != "" {
		line += " - " + event.Summary
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Error("failed to write event log", "error", err)
	}
}
