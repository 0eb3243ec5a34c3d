package state

import (
	"context"
	"sort"
	"sync"

	"github.com/ryanmello/lilli/pkg/models"
)

// MemoryStore keeps encoded snapshots in a map. Snapshots are stored in
// their serialized form so callers never share data with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

// Save implements SnapshotStore.
func (s *MemoryStore) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = data
	return nil
}

// Load implements SnapshotStore.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snapshots[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeSnapshot(sessionID, data)
}

// Delete implements SnapshotStore.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}

// List implements SnapshotStore.
func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.snapshots))
	for id, data := range s.snapshots {
		snap, err := decodeSnapshot(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Close implements SnapshotStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string][]byte)
	return nil
}
