package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryanmello/lilli/pkg/models"
)

// DB is the SQLite snapshot backend.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var v int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

// Migrate applies all pending schema migrations, each in its own transaction.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Snapshots},
		{2, migrationV2TurnCount},
		{3, migrationV3ShopRecords},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Snapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
	session_id TEXT PRIMARY KEY,
	window_size INTEGER NOT NULL,
	data TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_updated_at ON snapshots(updated_at);
`

const migrationV2TurnCount = `
ALTER TABLE snapshots ADD COLUMN turn_count INTEGER NOT NULL DEFAULT 0;
`

const migrationV3ShopRecords = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL DEFAULT 0,
	low_stock_alert INTEGER NOT NULL DEFAULT 10,
	stem_length_cm INTEGER NOT NULL DEFAULT 0,
	retail_price REAL NOT NULL DEFAULT 0,
	inactive INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	phone_digits TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	number TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	total REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at);
`

// Save implements SnapshotStore.
func (db *DB) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, window_size, data, updated_at, turn_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			window_size = excluded.window_size,
			data = excluded.data,
			updated_at = excluded.updated_at,
			turn_count = excluded.turn_count
	`, snap.SessionID, snap.WindowSize, string(data), formatTime(updated), len(snap.Turns))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load implements SnapshotStore.
func (db *DB) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var data string
	err := db.conn.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE session_id = ?", sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	return decodeSnapshot(sessionID, []byte(data))
}

// Delete implements SnapshotStore.
func (db *DB) Delete(ctx context.Context, sessionID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM snapshots WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

// List implements SnapshotStore.
func (db *DB) List(ctx context.Context) ([]Summary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT session_id, turn_count, updated_at FROM snapshots ORDER BY session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var updated string
		if err := rows.Scan(&s.SessionID, &s.Turns, &updated); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if t, err := parseTime(updated); err == nil {
			s.UpdatedAt = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes snapshots not updated within olderThan.
// Returns the number of snapshots deleted.
func (db *DB) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	db.mu.Lock()
	defer db.mu.Unlock()
	result, err := db.conn.ExecContext(ctx, "DELETE FROM snapshots WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// formatTime formats a time.Time for SQLite storage. The fixed-width layout
// keeps lexical and chronological order the same.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
