package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tripsync/pkg/db"
	"tripsync/pkg/store"
)

func TestCheckCatalog(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	s := store.NewSQLiteStore(d)
	defer s.Close()
	ctx := context.Background()

	if changed := checkCatalog(ctx, s, "aaaa"); changed {
		t.Error("first run must not report drift")
	}
	if changed := checkCatalog(ctx, s, "aaaa"); changed {
		t.Error("same fingerprint must not report drift")
	}
	if changed := checkCatalog(ctx, s, "bbbb"); !changed {
		t.Error("expected drift for new fingerprint")
	}
	if v, _ := s.GetState(ctx, catalogFingerprintKey); v != "bbbb" {
		t.Errorf("stored fingerprint = %q", v)
	}
}

func TestRun_PrunesOutbox(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	s := store.NewSQLiteStore(d)
	defer s.Close()
	ctx := context.Background()

	_ = s.Enqueue(ctx, store.OutboxRecord{MessageID: "old", Domain: "navigation_update", EnqueuedAt: time.Now().Add(-48 * time.Hour)})
	_ = s.Enqueue(ctx, store.OutboxRecord{MessageID: "new", Domain: "navigation_update"})

	Run(ctx, s, d, "fp", 24*time.Hour)

	n, err := s.Pending(ctx)
	if err != nil || n != 1 {
		t.Errorf("Pending() = %d, %v; want 1", n, err)
	}
}
