// Package surface drives the ambient status card that mirrors an active trip
// outside the main screen.
package surface

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// DefaultInstruction is shown when the route has no instruction text.
const DefaultInstruction = "Continue straight"

// ErrDisabled is returned by Open when the surface is switched off.
var ErrDisabled = errors.New("surface: disabled")

// ErrUnknownHandle is returned for a handle that is not (or no longer) open.
var ErrUnknownHandle = errors.New("surface: unknown handle")

// Handle identifies one open status card.
type Handle string

// Snapshot is the content of the status card.
type Snapshot struct {
	Instruction       string  `json:"instruction"`
	DistanceRemaining float64 `json:"distance_remaining"`
	TimeRemaining     float64 `json:"time_remaining"`
	DestinationName   string  `json:"destination_name"`
	Icon              string  `json:"icon"`
}

// Surface is the platform facility showing the status card.
type Surface interface {
	Open(ctx context.Context, s Snapshot) (Handle, error)
	Update(ctx context.Context, h Handle, s Snapshot) error
	End(ctx context.Context, h Handle) error
	// Active returns an already open card, if any.
	Active(ctx context.Context) (Handle, bool)
}

// IconFor picks a card icon from the instruction text.
func IconFor(instruction string) string {
	s := strings.ToLower(instruction)
	switch {
	case strings.Contains(s, "arrive"), strings.Contains(s, "destination"):
		return "flag"
	case strings.Contains(s, "u-turn"), strings.Contains(s, "uturn"):
		return "arrow.uturn"
	case strings.Contains(s, "slight left"), strings.Contains(s, "keep left"):
		return "arrow.up.left"
	case strings.Contains(s, "slight right"), strings.Contains(s, "keep right"):
		return "arrow.up.right"
	case strings.Contains(s, "left"):
		return "arrow.turn.up.left"
	case strings.Contains(s, "right"):
		return "arrow.turn.up.right"
	case strings.Contains(s, "roundabout"):
		return "arrow.triangle.turn.up.right.circle"
	default:
		return "arrow.up"
	}
}

// Normalize fills the default instruction and the icon.
func (s Snapshot) Normalize() Snapshot {
	if strings.TrimSpace(s.Instruction) == "" {
		s.Instruction = DefaultInstruction
	}
	if s.Icon == "" {
		s.Icon = IconFor(s.Instruction)
	}
	return s
}

// Session ties one trip to one status card. Surface failures are logged and
// never interrupt the trip.
type Session struct {
	surface Surface
	logger  *slog.Logger

	mu     sync.Mutex
	handle Handle
	open   bool
}

// NewSession creates a controller over s. A nil surface turns every call
// into a no-op.
func NewSession(s Surface) *Session {
	return &Session{surface: s, logger: slog.With("component", "surface")}
}

// Begin reuses an already open card or opens a new one.
func (c *Session) Begin(ctx context.Context, snap Snapshot) {
	if c.surface == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap = snap.Normalize()
	if h, ok := c.surface.Active(ctx); ok {
		c.handle, c.open = h, true
		if err := c.surface.Update(ctx, h, snap); err != nil {
			c.logger.Warn("Failed to update reused status card", "error", err)
		}
		c.logger.Debug("Reusing status card", "handle", h)
		return
	}

	h, err := c.surface.Open(ctx, snap)
	if err != nil {
		c.open = false
		if errors.Is(err, ErrDisabled) {
			c.logger.Debug("Status card disabled")
		} else {
			c.logger.Warn("Failed to open status card", "error", err)
		}
		return
	}
	c.handle, c.open = h, true
}

// Refresh pushes new content to the open card.
func (c *Session) Refresh(ctx context.Context, snap Snapshot) {
	if c.surface == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return
	}
	if err := c.surface.Update(ctx, c.handle, snap.Normalize()); err != nil {
		c.logger.Warn("Failed to refresh status card", "error", err)
	}
}

// Finish ends the card.
func (c *Session) Finish(ctx context.Context) {
	if c.surface == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return
	}
	if err := c.surface.End(ctx, c.handle); err != nil {
		c.logger.Warn("Failed to end status card", "error", err)
	}
	c.open = false
	c.handle = ""
}

// Open reports whether the session holds an open card.
func (c *Session) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
