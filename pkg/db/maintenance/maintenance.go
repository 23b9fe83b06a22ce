package maintenance

import (
	"context"
	"log/slog"
	"time"

	"tripsync/pkg/db"
	"tripsync/pkg/store"
)

const catalogFingerprintKey = "catalog_fingerprint"

// Run executes startup maintenance: catalog drift check and outbox pruning.
// Failures are logged, never fatal.
func Run(ctx context.Context, s store.StateStore, d *db.DB, fingerprint string, outboxMaxAge time.Duration) {
	slog.Info("Starting database maintenance...")

	checkCatalog(ctx, s, fingerprint)

	if outboxMaxAge > 0 {
		n, err := d.PruneOutbox(outboxMaxAge)
		if err != nil {
			slog.Error("Outbox pruning failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned stale peer messages", "count", n)
		}
	}
}

// checkCatalog warns when the catalog order changed since the last run, since
// collectible ids in a persistent ledger are derived from list positions.
func checkCatalog(ctx context.Context, s store.StateStore, fingerprint string) bool {
	stored, found := s.GetState(ctx, catalogFingerprintKey)
	if found && stored == fingerprint {
		return false
	}
	if found {
		slog.Warn("Catalog order changed since last run; collected ids may refer to different POIs",
			"previous", stored, "current", fingerprint)
	}
	if err := s.SetState(ctx, catalogFingerprintKey, fingerprint); err != nil {
		slog.Error("Failed to store catalog fingerprint", "error", err)
	}
	return found
}
