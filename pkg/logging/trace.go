package logging

import (
	"log/slog"
	"sync/atomic"
)

// traceEnabled gates per-fix logging, which is far too chatty for DEBUG.
var traceEnabled atomic.Bool

// SetTrace enables or disables trace logging.
func SetTrace(on bool) { traceEnabled.Store(on) }

// Trace logs at DEBUG level, but only when tracing is enabled.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceEnabled.Load() {
		logger.Debug(msg, args...)
	}
}
