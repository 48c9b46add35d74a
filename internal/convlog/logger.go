// Package convlog writes chat exchanges to NDJSON files for diagnostics.
// One file per session, plus an optional global stream across sessions.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eductome/eductome/internal/domain"
)

// Config controls conversation logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one logged conversation line.
type Event struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Kind      string `json:"kind,omitempty"`
	HasImage  bool   `json:"has_image,omitempty"`
}

// Logger appends events asynchronously so chat turns never block on disk.
// When the queue is full the event is dropped, not waited on.
type Logger struct {
	cfg    Config
	queue  chan Event
	global *os.File
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a conversation logger. A disabled config yields a logger whose
// Record is a no-op.
func New(cfg Config) (*Logger, error) {
	l := &Logger{cfg: cfg}
	if !cfg.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global log: %w", err)
		}
		l.global = f
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	l.queue = make(chan Event, size)
	l.wg.Add(1)
	go l.worker()
	return l, nil
}

// Record implements the session recorder hook. Non-blocking.
func (l *Logger) Record(sessionID, subject string, msg domain.Message) {
	if l.queue == nil {
		return
	}
	ev := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Subject:   subject,
		MessageID: msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Kind:      msg.Kind,
		HasImage:  msg.Image != "",
	}
	select {
	case l.queue <- ev:
	default:
		slog.Warn("conversation log queue full, dropping event", "session_id", sessionID)
	}
}

// Close drains the queue and closes the global stream.
func (l *Logger) Close() error {
	if l.queue == nil {
		return nil
	}
	l.once.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
	if l.global != nil {
		return l.global.Close()
	}
	return nil
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for ev := range l.queue {
		line, err := json.Marshal(ev)
		if err != nil {
			slog.Warn("failed to marshal conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if err := l.appendSessionLine(ev.SessionID, line); err != nil {
			slog.Warn("failed to write conversation log", "session_id", ev.SessionID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				slog.Warn("failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *Logger) appendSessionLine(sessionID string, line []byte) error {
	path := filepath.Join(l.cfg.Dir, sessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}
