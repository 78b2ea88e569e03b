package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is one server-side session: an opaque ID plus independent
// slots for the user and admin identities. Slots hold ids only, never the
// loaded records.
type SessionState struct {
	ID        string
	UserID    *uuid.UUID
	AdminID   *uuid.UUID
	CreatedAt time.Time

	fresh     bool
	dirty     bool
	persisted bool
}

// NewSessionState creates an empty, unpersisted session.
func NewSessionState() *SessionState {
	return &SessionState{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		fresh:     true,
	}
}

// Slot returns the id stored for kind, nil when the slot is empty.
func (s *SessionState) Slot(kind IdentityKind) *uuid.UUID {
	if kind == KindAdmin {
		return s.AdminID
	}
	return s.UserID
}

// SetSlot stores id in the slot for kind; nil clears it. The session is
// marked dirty only when the value actually changes.
func (s *SessionState) SetSlot(kind IdentityKind, id *uuid.UUID) {
	target := &s.UserID
	if kind == KindAdmin {
		target = &s.AdminID
	}

	if !sameSlotValue(*target, id) {
		s.dirty = true
	}

	if id == nil {
		*target = nil
		return
	}
	v := *id
	*target = &v
}

// ClearSlots empties both identity slots.
func (s *SessionState) ClearSlots() {
	s.SetSlot(KindUser, nil)
	s.SetSlot(KindAdmin, nil)
}

// Dirty reports whether the session has unpersisted slot changes.
func (s *SessionState) Dirty() bool {
	return s.dirty
}

// Fresh reports whether the session was created this request and the client
// does not yet hold its cookie.
func (s *SessionState) Fresh() bool {
	return s.fresh
}

// Persisted reports whether the session has a backing store record.
func (s *SessionState) Persisted() bool {
	return s.persisted
}

func (s *SessionState) markSaved() {
	s.dirty = false
	s.persisted = true
}

func sameSlotValue(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SessionStore persists session state between requests.
type SessionStore interface {
	// Get loads a session by id, ErrSessionNotFound when unknown.
	Get(ctx context.Context, id string) (*SessionState, error)
	Save(ctx context.Context, state *SessionState) error
	// Rotate deletes state's backing record and returns a fresh, empty,
	// already-persisted session under a new id. Used on logout to prevent
	// session fixation.
	Rotate(ctx context.Context, state *SessionState) (*SessionState, error)
	Delete(ctx context.Context, id string) error
}

// MemorySessionStore is a process-local SessionStore for tests and
// single-node deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionState
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: map[string]SessionState{},
	}
}

func (m *MemorySessionStore) Get(ctx context.Context, id string) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	state := stored
	state.fresh = false
	state.dirty = false
	state.persisted = true
	return &state, nil
}

func (m *MemorySessionStore) Save(ctx context.Context, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[state.ID] = *state
	state.markSaved()
	return nil
}

func (m *MemorySessionStore) Rotate(ctx context.Context, state *SessionState) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state != nil {
		delete(m.sessions, state.ID)
	}

	next := NewSessionState()
	m.sessions[next.ID] = *next
	next.markSaved()
	return next, nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
