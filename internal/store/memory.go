package store

import (
	"context"
	"sync"

	"github.com/eductome/eductome/internal/domain"
)

// MemoryStore implements Repository in memory. It is used as a test fake and
// mirrors the whole-value semantics of the SQLite store.
type MemoryStore struct {
	mu       sync.Mutex
	profile  *domain.Profile
	sessions []domain.ChatSession
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Ensure MemoryStore implements Repository.
var _ Repository = (*MemoryStore)(nil)

// GetProfile retrieves the saved profile, or nil if absent.
func (s *MemoryStore) GetProfile(_ context.Context) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	return s.profile.Clone(), nil
}

// SaveProfile unconditionally overwrites the stored profile.
func (s *MemoryStore) SaveProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile.Clone()
	return nil
}

// AddPoints adds delta discipline points, awards newly crossed badges, and
// returns the updated profile, or nil if no profile exists.
func (s *MemoryStore) AddPoints(_ context.Context, delta int) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	s.profile.AddPoints(delta)
	return s.profile.Clone(), nil
}

// ListSessions returns all stored sessions in saved order.
func (s *MemoryStore) ListSessions(_ context.Context) ([]domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatSession, 0, len(s.sessions))
	for i := range s.sessions {
		out = append(out, *s.sessions[i].Clone())
	}
	return out, nil
}

// GetSession returns the session with the given id, or nil if absent.
func (s *MemoryStore) GetSession(_ context.Context, id string) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return s.sessions[i].Clone(), nil
		}
	}
	return nil, nil
}

// SaveSession upserts the session by id.
func (s *MemoryStore) SaveSession(_ context.Context, session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == session.ID {
			s.sessions[i] = *session.Clone()
			return nil
		}
	}
	s.sessions = append(s.sessions, *session.Clone())
	return nil
}

// Clear wipes all state.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	s.sessions = nil
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
