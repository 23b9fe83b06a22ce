package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection avoids SQLITE_BUSY between the outbox drainer and the ledger
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneOutbox removes queued peer messages older than the given age.
func (d *DB) PruneOutbox(olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan).UTC()
	res, err := d.Exec("DELETE FROM peer_outbox WHERE enqueued_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS collected (
			collectible_id INTEGER PRIMARY KEY,
			collected_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS peer_outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT UNIQUE,
			domain TEXT,
			payload BLOB,
			enqueued_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_domain ON peer_outbox(domain)`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("query failed: %s: %w", q, err)
		}
	}
	return nil
}
