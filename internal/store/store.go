// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/eductome/eductome/internal/domain"
)

// Fixed record keys. Both records are whole-value JSON documents overwritten
// on every save; there is no incremental update format.
const (
	ProfileKey  = "eductome_user"
	SessionsKey = "eductome_sessions"
)

// Repository defines the interface for persisting the student profile and
// chat sessions. A corrupt or missing record reads as absent (nil, nil).
type Repository interface {
	// GetProfile retrieves the saved profile, or nil if absent.
	GetProfile(ctx context.Context) (*domain.Profile, error)

	// SaveProfile unconditionally overwrites the stored profile.
	SaveProfile(ctx context.Context, profile *domain.Profile) error

	// AddPoints adds delta discipline points, awards any newly crossed badge
	// thresholds, persists, and returns the updated profile. Returns nil if
	// no profile exists.
	AddPoints(ctx context.Context, delta int) (*domain.Profile, error)

	// ListSessions returns all stored sessions in saved order.
	ListSessions(ctx context.Context) ([]domain.ChatSession, error)

	// GetSession returns the session with the given id, or nil if absent.
	GetSession(ctx context.Context, id string) (*domain.ChatSession, error)

	// SaveSession upserts the session by id and persists the whole list.
	SaveSession(ctx context.Context, session *domain.ChatSession) error

	// Clear wipes all persisted state unconditionally.
	Clear(ctx context.Context) error

	// Ping verifies store availability.
	Ping(ctx context.Context) error

	// Close closes the underlying store.
	Close() error
}
