package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eductome/eductome/internal/domain"
	"github.com/eductome/eductome/internal/mentor"
	"github.com/eductome/eductome/internal/store"
)

var (
	// ErrNoProfile indicates no student profile has been saved yet.
	ErrNoProfile = errors.New("no student profile")
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTurnInFlight indicates the session already has a pending turn.
	ErrTurnInFlight = errors.New("a turn is already in flight for this session")
)

// Event types broadcast to live subscribers.
const (
	EventSessionCreated = "session_created"
	EventTurnStarted    = "turn_started"
	EventTurnResolved   = "turn_resolved"
	EventProfileUpdated = "profile_updated"
	EventStateCleared   = "state_cleared"
)

// Event describes a state change a connected client may want to render.
type Event struct {
	Type    string              `json:"type"`
	Session *domain.ChatSession `json:"session,omitempty"`
	Profile *domain.Profile     `json:"profile,omitempty"`
}

// Recorder receives conversation messages for diagnostic logging. A nil
// Recorder disables recording.
type Recorder interface {
	Record(sessionID, subject string, msg domain.Message)
}

// Options configures a Service.
type Options struct {
	// MentorTimeout bounds each mentor completion. Zero means no deadline
	// beyond the caller's.
	MentorTimeout time.Duration
	// Recorder, when set, receives every user and resolved model message.
	Recorder Recorder
	// EventBuffer is the capacity of the event channel. Defaults to 64.
	EventBuffer int
}

// Service drives the chat turn lifecycle. It owns the in-flight overlay for
// each session so a pending placeholder is visible to readers but never
// persisted, and it guarantees at most one pending turn per session.
type Service struct {
	repo    store.Repository
	mentor  mentor.Client
	timeout time.Duration
	rec     Recorder
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]*domain.ChatSession

	events chan Event
}

// NewService creates the session controller.
func NewService(repo store.Repository, m mentor.Client, opts Options) *Service {
	buf := opts.EventBuffer
	if buf <= 0 {
		buf = 64
	}
	return &Service{
		repo:     repo,
		mentor:   m,
		timeout:  opts.MentorTimeout,
		rec:      opts.Recorder,
		now:      time.Now,
		inflight: make(map[string]*domain.ChatSession),
		events:   make(chan Event, buf),
	}
}

// Events exposes the broadcast stream. Events are dropped, not blocked on,
// when no consumer keeps up.
func (s *Service) Events() <-chan Event {
	return s.events
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("dropping session event, consumer too slow", "type", ev.Type)
	}
}

// Create starts a new session for a subject, seeded with the mentor's
// welcome message, and persists it. Requires a saved profile.
func (s *Service) Create(ctx context.Context, subject string) (*domain.ChatSession, error) {
	profile, err := s.repo.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNoProfile
	}

	sess := NewSession(subject, mentor.WelcomeMessage(profile), s.now())
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("session created", "session_id", sess.ID, "subject", subject)
	s.emit(Event{Type: EventSessionCreated, Session: sess.Clone()})
	return sess, nil
}

// Get returns a session by id, including any in-flight placeholder.
func (s *Service) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	s.mu.Lock()
	overlay := s.inflight[id]
	s.mu.Unlock()
	if overlay != nil {
		return overlay.Clone(), nil
	}

	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List returns all sessions, with in-flight overlays substituted so pending
// placeholders are visible.
func (s *Service) List(ctx context.Context) ([]domain.ChatSession, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range sessions {
		if overlay := s.inflight[sessions[i].ID]; overlay != nil {
			sessions[i] = *overlay.Clone()
		}
	}
	s.mu.Unlock()
	return sessions, nil
}

// Send runs one full chat turn: append the student message and a thinking
// placeholder, award points, call the mentor, then replace the placeholder
// in place with the resolved reply. Only the resolved session is persisted.
// Returns ErrTurnInFlight if the session already has a pending turn.
func (s *Service) Send(ctx context.Context, sessionID, content, imageURI string) (*domain.ChatSession, error) {
	profile, err := s.repo.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrNoProfile
	}

	s.mu.Lock()
	if s.inflight[sessionID] != nil {
		s.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if sess == nil {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	overlay, userMsg, _ := BeginTurn(sess, content, imageURI, s.now())
	s.inflight[sessionID] = overlay
	s.mu.Unlock()

	s.emit(Event{Type: EventTurnStarted, Session: overlay.Clone()})
	s.record(sessionID, overlay.Subject, userMsg)
	s.awardPoints(content, imageURI != "")

	// Once the placeholder is visible the turn must run to completion even
	// if the caller disconnects: completion and persistence are detached
	// from the caller's cancellation and bounded by the mentor timeout.
	mentorCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		mentorCtx, cancel = context.WithTimeout(mentorCtx, s.timeout)
		defer cancel()
	}
	text, genErr := s.mentor.Generate(mentorCtx, profile, overlay.Messages, content, imageURI, sess.Subject)
	if genErr != nil {
		slog.Error("mentor completion failed", "session_id", sessionID, "error", genErr)
	}
	replyContent, kind := mentor.UserFacingText(text, genErr)

	resolved := ResolveTurn(overlay, replyContent, kind, s.now())

	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelSave()
	if err := s.repo.SaveSession(saveCtx, resolved); err != nil {
		// Persistence is best effort. The resolved turn is still returned
		// and broadcast so the placeholder never lingers.
		slog.Error("failed to persist resolved turn", "session_id", sessionID, "error", err)
	}

	s.mu.Lock()
	delete(s.inflight, sessionID)
	s.mu.Unlock()

	s.emit(Event{Type: EventTurnResolved, Session: resolved.Clone()})
	if i := len(resolved.Messages) - 1; i >= 0 {
		s.record(sessionID, resolved.Subject, resolved.Messages[i])
	}
	return resolved, nil
}

// Clear wipes all persisted state and drops any in-flight overlays.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	s.mu.Lock()
	s.inflight = make(map[string]*domain.ChatSession)
	s.mu.Unlock()

	slog.Info("state cleared")
	s.emit(Event{Type: EventStateCleared})
	return nil
}

func (s *Service) record(sessionID, subject string, msg domain.Message) {
	if s.rec == nil {
		return
	}
	s.rec.Record(sessionID, subject, msg)
}

// awardPoints credits the turn fire-and-forget. A failed award is logged
// and never fails the turn.
func (s *Service) awardPoints(content string, hasImage bool) {
	points := TurnPoints(content, hasImage)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		profile, err := s.repo.AddPoints(ctx, points)
		if err != nil {
			slog.Error("failed to award points", "points", points, "error", err)
			return
		}
		if profile != nil {
			s.emit(Event{Type: EventProfileUpdated, Profile: profile})
		}
	}()
}
