package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eductome/eductome/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on a single-table key-value schema.
// Profile and session list are stored as whole JSON documents under fixed
// keys, matching the original localStorage layout.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes read-modify-write cycles (AddPoints, SaveSession)
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) readRecord(ctx context.Context, key string, out interface{}) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read record %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		// A corrupt record reads as absent rather than failing the caller.
		slog.Warn("discarding corrupt record", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *SQLiteStore) writeRecord(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", key, err)
	}

	query := `
	INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	err = s.execWithRetry(ctx, query, key, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	return nil
}

// execWithRetry retries writes that fail with a SQLite concurrency error,
// with exponential backoff: 100ms, 200ms, 400ms.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...interface{}) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !isSQLiteConflict(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("record write hit SQLITE_BUSY, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// isSQLiteConflict checks for SQLITE_BUSY / "database is locked" errors,
// which warrant a retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// GetProfile retrieves the saved profile, or nil if absent or corrupt.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var profile domain.Profile
	ok, err := s.readRecord(ctx, ProfileKey, &profile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// SaveProfile unconditionally overwrites the stored profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	return s.writeRecord(ctx, ProfileKey, profile)
}

// AddPoints adds delta discipline points, awards newly crossed badges,
// persists the profile, and returns it. Returns nil if no profile exists.
func (s *SQLiteStore) AddPoints(ctx context.Context, delta int) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	profile.AddPoints(delta)
	if err := s.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ListSessions returns all stored sessions in saved order.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	ok, err := s.readRecord(ctx, SessionsKey, &sessions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.ChatSession{}, nil
	}
	return sessions, nil
}

// GetSession returns the session with the given id, or nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return sessions[i].Clone(), nil
		}
	}
	return nil, nil
}

// SaveSession upserts the session by id and persists the whole list.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = *session.Clone()
			found = true
			break
		}
	}
	if !found {
		sessions = append(sessions, *session.Clone())
	}

	return s.writeRecord(ctx, SessionsKey, sessions)
}

// Clear wipes all persisted state unconditionally.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.execWithRetry(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
