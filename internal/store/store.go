// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/unichat/internal/domain"
)

// Repository defines the interface for persisting visitors and chat sessions.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetChatSession loads a tab session. Returns nil, nil if absent.
	GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error)

	// SaveChatSession creates or replaces a tab session.
	SaveChatSession(ctx context.Context, session *domain.ChatSession) error

	// DeleteChatSession removes a tab session.
	DeleteChatSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredSessions removes sessions idle for longer than ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
