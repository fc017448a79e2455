package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrAlreadyActive rejects a start for a group that is already tracked.
	ErrAlreadyActive = errors.New("group already has an active session")
	// ErrNotActive rejects a stop for a group with no running session.
	ErrNotActive = errors.New("group has no active session")
)

// SessionStore is the durable mirror of session lifecycle transitions.
type SessionStore interface {
	CreateSession(ctx context.Context, groupID int64, name string, start time.Time) (int64, error)
	CloseSession(ctx context.Context, sessionID int64) error
}

type trackedSession struct {
	sessionID int64
	done      chan struct{}
}

// Registry is the single source of truth for which groups are being tracked.
// The in-memory map owns the active flag; the durable session row follows it
// on every transition. One mutex guards each start/stop transition, so two
// concurrent starts for the same group can never both succeed.
type Registry struct {
	mu     sync.Mutex
	store  SessionStore
	active map[int64]*trackedSession
}

// NewRegistry creates an empty registry backed by the given store.
func NewRegistry(store SessionStore) *Registry {
	return &Registry{
		store:  store,
		active: make(map[int64]*trackedSession),
	}
}

// Start opens a new session for the group and returns its id together with
// the done channel its polling loop must watch. Fails with ErrAlreadyActive
// when the group is already tracked.
func (r *Registry) Start(ctx context.Context, groupID int64, name string) (int64, <-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[groupID]; exists {
		return 0, nil, ErrAlreadyActive
	}

	sessionID, err := r.store.CreateSession(ctx, groupID, name, time.Now().UTC())
	if err != nil {
		return 0, nil, err
	}

	ts := &trackedSession{sessionID: sessionID, done: make(chan struct{})}
	r.active[groupID] = ts
	return sessionID, ts.done, nil
}

// Stop ends the group's session: the mapping is removed, the loop's done
// channel is closed and the durable row is marked inactive. The returned
// session id is terminal; a later Start creates a fresh row.
func (r *Registry) Stop(ctx context.Context, groupID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, exists := r.active[groupID]
	if !exists {
		return 0, ErrNotActive
	}

	delete(r.active, groupID)
	close(ts.done)

	// The loop is already signalled; a mirror failure must not resurrect it.
	if err := r.store.CloseSession(ctx, ts.sessionID); err != nil {
		log.Printf("registry: closing session %d: %v", ts.sessionID, err)
	}
	return ts.sessionID, nil
}

// IsActive reports whether the group currently has a running session.
func (r *Registry) IsActive(groupID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.active[groupID]
	return exists
}

// ListActive returns a snapshot of group id to session id for every running
// session.
func (r *Registry) ListActive() map[int64]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]int64, len(r.active))
	for gid, ts := range r.active {
		out[gid] = ts.sessionID
	}
	return out
}
