// Package state persists conversation snapshots so sessions survive process
// restarts. Backends: in-memory, SQLite, and Redis.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ryanmello/lilli/pkg/models"
)

// StoreType selects a snapshot backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

var (
	// ErrInvalidStoreType is returned for an unknown backend name.
	ErrInvalidStoreType = errors.New("invalid store type")
	// ErrInvalidConfig is returned when a backend is missing required settings.
	ErrInvalidConfig = errors.New("invalid store configuration")
	// ErrEmptySessionID is returned when saving a snapshot without an ID.
	ErrEmptySessionID = errors.New("snapshot has no session id")
)

// Summary describes a stored snapshot without its turns.
type Summary struct {
	SessionID string    `json:"session_id"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotStore persists conversation snapshots keyed by session ID.
type SnapshotStore interface {
	io.Closer
	// Save creates or replaces the snapshot for snap.SessionID.
	Save(ctx context.Context, snap models.Snapshot) error
	// Load returns nil without error when no snapshot exists.
	Load(ctx context.Context, sessionID string) (*models.Snapshot, error)
	// Delete is a no-op for unknown sessions.
	Delete(ctx context.Context, sessionID string) error
	// List returns summaries ordered by session ID.
	List(ctx context.Context) ([]Summary, error)
}

// Config selects and configures a backend.
type Config struct {
	Type          StoreType
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// DefaultSQLitePath returns the snapshot database under XDG_DATA_HOME.
func DefaultSQLitePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "lilli", "sessions.db")
}

// NewStore opens the backend named by cfg.Type. An empty type selects memory.
func NewStore(cfg Config) (SnapshotStore, error) {
	switch cfg.Type {
	case "", StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = DefaultSQLitePath()
		}
		db, err := Open(path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil

	case StoreTypeRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis address is required", ErrInvalidConfig)
		}
		return DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, cfg.Type)
	}
}

func encodeSnapshot(snap models.Snapshot) ([]byte, error) {
	if snap.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snap.SessionID, err)
	}
	return data, nil
}

func decodeSnapshot(sessionID string, data []byte) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return &snap, nil
}

func summarize(snap *models.Snapshot) Summary {
	return Summary{SessionID: snap.SessionID, Turns: len(snap.Turns), UpdatedAt: snap.UpdatedAt}
}
