// Package session implements the chat turn lifecycle: optimistic message
// append, in-flight placeholder tracking, mentor completion, and point
// awards.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/eductome/eductome/internal/domain"
)

// Point awards per student turn.
const (
	basePoints   = 2
	effortPoints = 8
	effortLength = 20
	imagePoints  = 20
)

// TurnPoints computes the discipline points earned by one student turn.
// Effort is measured in runes so accented text is not undercounted.
func TurnPoints(text string, hasImage bool) int {
	points := basePoints
	if len([]rune(text)) > effortLength {
		points += effortPoints
	}
	if hasImage {
		points += imagePoints
	}
	return points
}

// BeginTurn appends the student message and a thinking placeholder to a copy
// of the session and returns it along with both new messages. The input
// session is not modified.
func BeginTurn(s *domain.ChatSession, content, imageURI string, now time.Time) (updated *domain.ChatSession, userMsg, placeholder domain.Message) {
	userMsg = domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: domain.Millis(now),
		Image:     imageURI,
	}
	placeholder = domain.Message{
		ID:         uuid.NewString(),
		Role:       domain.RoleModel,
		Content:    "",
		Timestamp:  domain.Millis(now),
		IsThinking: true,
	}

	updated = s.Clone()
	updated.Messages = append(updated.Messages, userMsg, placeholder)
	updated.LastUpdated = domain.Millis(now)
	return updated, userMsg, placeholder
}

// ResolveTurn replaces the thinking placeholder in a copy of the session
// with the resolved model message, keeping the placeholder's id so clients
// can swap it in place. Message count is unchanged. If no placeholder is
// present the session copy is returned untouched.
func ResolveTurn(s *domain.ChatSession, content, kind string, now time.Time) *domain.ChatSession {
	updated := s.Clone()
	i := updated.ThinkingIndex()
	if i < 0 {
		return updated
	}
	updated.Messages[i] = domain.Message{
		ID:        updated.Messages[i].ID,
		Role:      domain.RoleModel,
		Content:   content,
		Timestamp: domain.Millis(now),
		Kind:      kind,
	}
	updated.LastUpdated = domain.Millis(now)
	return updated
}

// NewSession builds a fresh session for a subject, seeded with the mentor's
// welcome message.
func NewSession(subject, welcome string, now time.Time) *domain.ChatSession {
	return &domain.ChatSession{
		ID:      uuid.NewString(),
		Subject: subject,
		Messages: []domain.Message{{
			ID:        uuid.NewString(),
			Role:      domain.RoleModel,
			Content:   welcome,
			Timestamp: domain.Millis(now),
		}},
		LastUpdated: domain.Millis(now),
	}
}
