package probe

import (
	"context"
	"errors"
	"fmt"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
	"tripsync/pkg/routing"
)

// ErrUnreachable is reported by the peer link probe.
var ErrUnreachable = errors.New("peer not reachable")

// Pinger is satisfied by *sql.DB and the redis client wrapper.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database checks that the store answers a ping.
func Database(name string, p Pinger) Probe {
	return Probe{
		Name:     name,
		Critical: true,
		Check:    p.PingContext,
	}
}

// Catalog checks that at least one point of interest was loaded.
func Catalog(count func() int) Probe {
	return Probe{
		Name:     "Catalog",
		Critical: true,
		Check: func(ctx context.Context) error {
			if n := count(); n == 0 {
				return errors.New("no points of interest loaded")
			}
			return nil
		},
	}
}

// RoutingEngine asks the engine for a short pedestrian route starting at
// origin. Failures only degrade route planning, so the probe is not critical.
func RoutingEngine(engine routing.Engine, origin geo.Point) Probe {
	return Probe{
		Name: "Routing Engine",
		Check: func(ctx context.Context) error {
			dest := geo.DestinationPoint(origin, 250, 45)
			routes, err := engine.PlanRoute(ctx, origin, dest, model.ModePedestrian, false)
			if err != nil {
				return err
			}
			if len(routes) == 0 {
				return fmt.Errorf("engine returned %w", routing.ErrNoRoutes)
			}
			return nil
		},
	}
}

// Reachability is the part of a peer link the probe needs.
type Reachability interface {
	IsReachable() bool
}

// PeerLink reports whether the companion device is currently connected.
// Messages are queued while it is not, so the probe is informational.
func PeerLink(link Reachability) Probe {
	return Probe{
		Name: "Peer Link",
		Check: func(ctx context.Context) error {
			if !link.IsReachable() {
				return ErrUnreachable
			}
			return nil
		},
	}
}
