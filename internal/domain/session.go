package domain

import (
	"regexp"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Subject labels offered to the student. Any other label is accepted; an
// empty subject falls back to SubjectGeneral in prompts.
const (
	SubjectMath       = "Mathématiques"
	SubjectPhysics    = "Physique-Chimie"
	SubjectSVT        = "SVT"
	SubjectPhilosophy = "Philosophie"
	SubjectMethods    = "Méthodologie"
	SubjectGeneral    = "Général"
)

// Result kinds attached to resolved model messages. An empty kind means a
// normal mentor reply; the others mark degraded turns so the presentation
// layer can render them distinctly.
const (
	KindConfigError  = "config_error"
	KindNetworkError = "network_error"
	KindEmpty        = "empty_response"
)

// Message is a single chat message within a session. Image, when set, is a
// self-describing data URI (data:<mimeType>;base64,<payload>). IsThinking
// marks a transient placeholder that is never persisted and never sent to
// the remote model.
type Message struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Image      string `json:"image,omitempty"`
	IsThinking bool   `json:"isThinking,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// Time returns the message timestamp as a time.Time.
func (m *Message) Time() time.Time {
	return time.Unix(0, m.Timestamp*int64(time.Millisecond))
}

// ChatSession is one conversation within a subject. Messages are append-only
// from the controller's perspective; at most one thinking placeholder exists
// at any instant, and only as the last element.
type ChatSession struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Messages    []Message `json:"messages"`
	LastUpdated int64     `json:"lastUpdated"`
}

// Clone returns a deep copy of the session.
func (s *ChatSession) Clone() *ChatSession {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	return &cp
}

// ThinkingIndex returns the index of the thinking placeholder, or -1.
func (s *ChatSession) ThinkingIndex() int {
	for i := range s.Messages {
		if s.Messages[i].IsThinking {
			return i
		}
	}
	return -1
}

// Millis converts a time.Time to the millisecond epoch used in storage.
func Millis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

var dataURIPattern = regexp.MustCompile(`^data:(.+);base64,(.+)$`)

// ParseDataURI extracts the mime type and base64 payload from a data URI.
// Returns ok=false when the value does not match the expected pattern.
func ParseDataURI(uri string) (mimeType, payload string, ok bool) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
