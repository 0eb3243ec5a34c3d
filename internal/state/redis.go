package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ryanmello/lilli/pkg/models"
)

const (
	// KeyPrefix namespaces snapshot keys.
	KeyPrefix = "lilli:session:"
	// DefaultRedisTTL expires idle snapshots.
	DefaultRedisTTL = 24 * time.Hour
)

// RedisStore keeps snapshots as JSON strings with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis creates a client for addr and wraps it.
func DialRedis(addr, password string, db int, ttl time.Duration) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStore(client, ttl)
}

// Save implements SnapshotStore.
func (s *RedisStore) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(snap.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load implements SnapshotStore. Reading refreshes the TTL.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	key := s.key(sessionID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}

	snap, err := decodeSnapshot(sessionID, val)
	if err != nil {
		return nil, err
	}

	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		log.Printf("[state] WARNING: failed to refresh TTL for session %s: %v", sessionID, err)
	}
	return snap, nil
}

// Delete implements SnapshotStore.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

// List implements SnapshotStore. Keys are found with SCAN so large
// keyspaces are not blocked.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), KeyPrefix)
		val, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		snap, err := decodeSnapshot(id, val)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(snap))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements SnapshotStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return KeyPrefix + id
}
