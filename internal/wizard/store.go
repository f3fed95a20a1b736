package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
)

// Store persists sessions between wizard requests.
type Store interface {
	// Create stores a new session. An existing id is ErrConflict.
	Create(ctx context.Context, s *Session) error
	// Load returns the session or ErrNotFound. Expired sessions are not found.
	Load(ctx context.Context, id string) (*Session, error)
	// Update replaces the session if its stored version equals
	// expectedVersion, then sets s.Version to expectedVersion+1. A version
	// mismatch is ErrConflict.
	Update(ctx context.Context, s *Session, expectedVersion int64) error
	// Delete removes the session. A missing session is not an error.
	Delete(ctx context.Context, id string) error
	// Expired lists sessions whose deadline is at or before now. Returned
	// sessions carry at least ID and Upload.TempURI.
	Expired(ctx context.Context, now time.Time) ([]*Session, error)
}

func sessionNotFound(id string) error {
	return fmt.Errorf("upload session not found %q: %w", id, core.ErrNotFound)
}

func versionConflict(id string, expected int64) error {
	return fmt.Errorf("session %q changed since version %d: %w", id, expected, core.ErrConflict)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %q exists: %w", s.ID, core.ErrConflict)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Expired(m.now()) {
		return nil, sessionNotFound(id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.ID]
	if !ok || cur.Expired(m.now()) {
		return sessionNotFound(s.ID)
	}
	if cur.Version != expectedVersion {
		return versionConflict(s.ID, expectedVersion)
	}
	s.Version = expectedVersion + 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Expired(_ context.Context, now time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.Expired(now) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
