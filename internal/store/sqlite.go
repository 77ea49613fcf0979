package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/unichat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serialises chat session writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
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
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		intro_shown INTEGER NOT NULL DEFAULT 0,
		messages_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at);
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

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username, user.LastSeenAt.Unix(),
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetChatSession loads a tab session and its conversation log.
func (s *SQLiteStore) GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	query := `
		SELECT intro_shown, messages_json, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? AND session_id = ?`

	var introShown bool
	var messagesJSON string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&introShown, &messagesJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	session := &domain.ChatSession{
		UserID:     userID,
		SessionID:  sessionID,
		IntroShown: introShown,
		CreatedAt:  time.Unix(createdAt, 0),
		UpdatedAt:  time.Unix(updatedAt, 0),
	}
	if err := json.Unmarshal([]byte(messagesJSON), &session.Log); err != nil {
		return nil, fmt.Errorf("decode chat session messages: %w", err)
	}
	return session, nil
}

// SaveChatSession creates or replaces a tab session.
func (s *SQLiteStore) SaveChatSession(ctx context.Context, session *domain.ChatSession) error {
	messages, err := json.Marshal(session.Log)
	if err != nil {
		return fmt.Errorf("encode chat session messages: %w", err)
	}

	query := `
		INSERT INTO chat_sessions (user_id, session_id, intro_shown, messages_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			intro_shown = excluded.intro_shown,
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`

	now := time.Now()
	return withConflictRetry(ctx, "save_chat_session", 3, 50*time.Millisecond, func() error {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
		_, err := s.db.ExecContext(ctx, query,
			session.UserID, session.SessionID, session.IntroShown, string(messages),
			session.CreatedAt.Unix(), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save chat session: %w", err)
		}
		session.UpdatedAt = now
		return nil
	})
}

// DeleteChatSession removes a tab session.
// Retries with exponential backoff while SQLite reports a lock conflict.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, userID, sessionID string) error {
	err := withConflictRetry(ctx, "delete_chat_session", 3, 100*time.Millisecond, func() error {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
		_, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete chat session %s: %w", domain.SessionKey(userID, sessionID), err)
	}
	return nil
}

// CleanupExpiredSessions removes sessions older than TTL.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
