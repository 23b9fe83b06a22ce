package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"tripsync/pkg/db"
)

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"collected", "peer_outbox", "persistent_state"} {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInit_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.db")
	for i := 0; i < 2; i++ {
		d, err := db.Init(path)
		if err != nil {
			t.Fatalf("Init() run %d failed: %v", i, err)
		}
		d.Close()
	}
}

func TestPruneOutbox(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "db.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-72 * time.Hour).UTC()
	fresh := time.Now().UTC()
	if _, err := d.Exec(`INSERT INTO peer_outbox (message_id, domain, payload, enqueued_at) VALUES ('a','navigation_update','{}',?), ('b','navigation_update','{}',?)`, old, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := d.PruneOutbox(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneOutbox() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
}
