// Package conversation holds the bounded per-session history of turns and
// the session's cross-turn attributes.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/ryanmello/lilli/pkg/models"
)

// DefaultWindowSize is the number of turns kept when none is configured.
const DefaultWindowSize = 10

// State is one session's sliding window of turns plus its attributes.
// It is owned by a single session; the mutex only guards readers that
// inspect it from outside the turn in progress.
type State struct {
	mu         sync.RWMutex
	sessionID  string
	windowSize int
	turns      []models.Turn
	attributes map[string]string
	lastActive time.Time
}

// New creates an empty state. A non-positive window uses DefaultWindowSize.
func New(sessionID string, windowSize int) *State {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &State{
		sessionID:  sessionID,
		windowSize: windowSize,
		turns:      make([]models.Turn, 0, windowSize),
		attributes: make(map[string]string),
		lastActive: time.Now(),
	}
}

// SessionID returns the owning session's ID.
func (s *State) SessionID() string {
	return s.sessionID
}

// WindowSize returns N, the maximum number of retained turns.
func (s *State) WindowSize() int {
	return s.windowSize
}

// Len returns the number of retained turns.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// AppendTurn adds a turn at the end of the window, evicting the oldest
// turns so that at most N remain.
func (s *State) AppendTurn(turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.windowSize; over > 0 {
		// Copy into a fresh slice so evicted turns can be collected.
		kept := make([]models.Turn, s.windowSize, s.windowSize)
		copy(kept, s.turns[over:])
		s.turns = kept
	}
	s.lastActive = time.Now()
}

// RecentTurns returns copies of the last k turns, oldest first. k is clamped
// to the number of retained turns.
func (s *State) RecentTurns(k int) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return nil
	}
	if k > len(s.turns) {
		k = len(s.turns)
	}
	out := make([]models.Turn, k)
	for i, t := range s.turns[len(s.turns)-k:] {
		out[i] = t.Clone()
	}
	return out
}

// SetAttribute stores a session-scoped fact.
func (s *State) SetAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

// GetAttribute returns a session-scoped fact.
func (s *State) GetAttribute(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[key]
	return v, ok
}

// DeleteAttribute removes a session-scoped fact.
func (s *State) DeleteAttribute(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attributes, key)
}

// Attributes returns a copy of all session facts.
func (s *State) Attributes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Touch marks the session as active now.
func (s *State) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// LastActive returns when the session last appended a turn or was touched.
func (s *State) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// Snapshot returns a serializable deep copy of the state.
func (s *State) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := make([]models.Turn, len(s.turns))
	for i, t := range s.turns {
		turns[i] = t.Clone()
	}
	attrs := make(map[string]string, len(s.attributes))
	for k, v := range s.attributes {
		attrs[k] = v
	}
	return models.Snapshot{
		SessionID:  s.sessionID,
		WindowSize: s.windowSize,
		Turns:      turns,
		Attributes: attrs,
		UpdatedAt:  s.lastActive.UTC(),
	}
}

// Restore builds a state from a snapshot. The snapshot's session ID must be
// empty or match sessionID. Turns beyond the window keep only the newest N.
func Restore(sessionID string, snap models.Snapshot) (*State, error) {
	if snap.SessionID != "" && snap.SessionID != sessionID {
		return nil, fmt.Errorf("snapshot belongs to session %q, not %q", snap.SessionID, sessionID)
	}
	s := New(sessionID, snap.WindowSize)
	for _, t := range snap.Turns {
		s.AppendTurn(t.Clone())
	}
	for k, v := range snap.Attributes {
		s.attributes[k] = v
	}
	if !snap.UpdatedAt.IsZero() {
		s.lastActive = snap.UpdatedAt
	}
	return s, nil
}
