package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ryanmello/lilli/internal/conversation"
	"github.com/ryanmello/lilli/pkg/models"
)

// acquire returns the session locked for a turn, creating it on first use.
// A new session is restored from the snapshot store when one is configured.
func (o *Orchestrator) acquire(ctx context.Context, sessionID string) (*session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}

	for {
		o.mu.Lock()
		sess, ok := o.sessions[sessionID]
		if !ok {
			sess = &session{lastActive: o.now()}
			o.sessions[sessionID] = sess
			// Lock before publishing so concurrent callers wait for the load.
			sess.mu.Lock()
			o.metrics.SetActiveSessions(len(o.sessions))
			o.mu.Unlock()

			st, err := o.loadState(ctx, sessionID)
			if err != nil {
				o.mu.Lock()
				delete(o.sessions, sessionID)
				o.metrics.SetActiveSessions(len(o.sessions))
				o.mu.Unlock()
				sess.closed = true
				sess.mu.Unlock()
				return nil, err
			}
			sess.state = st
			return sess, nil
		}
		o.mu.Unlock()

		sess.mu.Lock()
		if sess.closed {
			// Closed or evicted while we waited; start over.
			sess.mu.Unlock()
			continue
		}
		return sess, nil
	}
}

// loadState restores a session from the store, or creates an empty one.
func (o *Orchestrator) loadState(ctx context.Context, sessionID string) (*conversation.State, error) {
	if o.store != nil {
		snap, err := o.store.Load(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if snap != nil {
			o.logger.Log("[session] restored %s with %d turns", sessionID, len(snap.Turns))
			return conversation.Restore(sessionID, *snap)
		}
	}
	return conversation.New(sessionID, o.windowSize), nil
}

// ExportState returns a snapshot of the session's conversation state.
// Sessions not in memory are read from the snapshot store.
func (o *Orchestrator) ExportState(ctx context.Context, sessionID string) (models.Snapshot, error) {
	if strings.TrimSpace(sessionID) == "" {
		return models.Snapshot{}, ErrEmptySessionID
	}

	o.mu.Lock()
	sess, ok := o.sessions[sessionID]
	o.mu.Unlock()
	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if !sess.closed && sess.state != nil {
			return sess.state.Snapshot(), nil
		}
	}

	if o.store != nil {
		snap, err := o.store.Load(ctx, sessionID)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if snap != nil {
			return *snap, nil
		}
	}
	return models.Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// ImportState replaces the session's state with the snapshot. It waits for
// any turn in progress on that session.
func (o *Orchestrator) ImportState(ctx context.Context, sessionID string, snap models.Snapshot) error {
	st, err := conversation.Restore(sessionID, snap)
	if err != nil {
		return fmt.Errorf("import session %s: %w", sessionID, err)
	}

	sess, err := o.acquireEmpty(sessionID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	sess.state = st
	sess.lastActive = o.now()
	o.persist(ctx, st)
	o.logger.Log("[session] imported %s with %d turns", sessionID, st.Len())
	return nil
}

// acquireEmpty is acquire without loading from the store.
func (o *Orchestrator) acquireEmpty(sessionID string) (*session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrEmptySessionID
	}
	for {
		o.mu.Lock()
		sess, ok := o.sessions[sessionID]
		if !ok {
			sess = &session{lastActive: o.now()}
			sess.mu.Lock()
			o.sessions[sessionID] = sess
			o.metrics.SetActiveSessions(len(o.sessions))
			o.mu.Unlock()
			return sess, nil
		}
		o.mu.Unlock()

		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			continue
		}
		return sess, nil
	}
}

// CloseSession discards the session from memory and from the snapshot store.
// Closing an unknown session is not an error.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrEmptySessionID
	}

	o.mu.Lock()
	sess, ok := o.sessions[sessionID]
	o.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.closed = true
		o.mu.Lock()
		if o.sessions[sessionID] == sess {
			delete(o.sessions, sessionID)
		}
		o.metrics.SetActiveSessions(len(o.sessions))
		o.mu.Unlock()
		sess.mu.Unlock()
	}

	if o.store != nil {
		if err := o.store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session %s: %w", sessionID, err)
		}
	}
	o.logger.Log("[session] closed %s", sessionID)
	return nil
}

// EvictIdle drops sessions idle for longer than maxIdle from memory and
// returns their IDs. Sessions with a turn in progress are skipped. Evicted
// sessions stay in the snapshot store and are restored on their next turn.
func (o *Orchestrator) EvictIdle(maxIdle time.Duration) []string {
	cutoff := o.now().Add(-maxIdle)

	o.mu.Lock()
	defer o.mu.Unlock()

	var evicted []string
	for id, sess := range o.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastActive.Before(cutoff) {
			sess.closed = true
			delete(o.sessions, id)
			evicted = append(evicted, id)
		}
		sess.mu.Unlock()
	}
	o.metrics.SetActiveSessions(len(o.sessions))

	sort.Strings(evicted)
	if len(evicted) > 0 {
		o.logger.Log("[session] evicted %d idle sessions: %v", len(evicted), evicted)
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done. A
// non-positive maxIdle disables eviction; a non-positive interval uses half
// of maxIdle.
func (o *Orchestrator) RunEviction(ctx context.Context, maxIdle, interval time.Duration) {
	if maxIdle <= 0 {
		return
	}
	if interval <= 0 {
		interval = maxIdle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.EvictIdle(maxIdle)
		}
	}
}

// Sessions returns the IDs of in-memory sessions, sorted.
func (o *Orchestrator) Sessions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, 0, len(o.sessions))
	for id := range o.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
