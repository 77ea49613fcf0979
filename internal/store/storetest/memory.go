// Package storetest provides an in-memory store.Repository for tests.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/store"
)

// Repo is a map-backed Repository. Sessions are copied through JSON so
// callers never share memory with the stored value.
type Repo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	sessions map[string][]byte
	meta     map[string]*domain.ChatSession

	SaveErr error
	Saves   int
}

var _ store.Repository = (*Repo)(nil)

// New returns an empty repository.
func New() *Repo {
	return &Repo{
		users:    make(map[string]*domain.User),
		sessions: make(map[string][]byte),
		meta:     make(map[string]*domain.ChatSession),
	}
}

func (f *Repo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (f *Repo) UpsertUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *Repo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user := f.users[userID]; user != nil {
		user.LastSeenAt = lastSeen
	}
	return nil
}

func (f *Repo) GetChatSession(_ context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.SessionKey(userID, sessionID)
	meta, ok := f.meta[key]
	if !ok {
		return nil, nil
	}
	sess := *meta
	sess.Log = domain.ConversationLog{}
	if err := json.Unmarshal(f.sessions[key], &sess.Log); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (f *Repo) SaveChatSession(_ context.Context, session *domain.ChatSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	data, err := json.Marshal(session.Log)
	if err != nil {
		return err
	}
	key := session.Key()
	meta := *session
	meta.Log = domain.ConversationLog{}
	meta.UpdatedAt = time.Now()
	f.meta[key] = &meta
	f.sessions[key] = data
	f.Saves++
	return nil
}

func (f *Repo) DeleteChatSession(_ context.Context, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.SessionKey(userID, sessionID)
	delete(f.meta, key)
	delete(f.sessions, key)
	return nil
}

func (f *Repo) CleanupExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	threshold := time.Now().Add(-ttl)
	var n int64
	for key, meta := range f.meta {
		if meta.UpdatedAt.Before(threshold) {
			delete(f.meta, key)
			delete(f.sessions, key)
			n++
		}
	}
	return n, nil
}

func (f *Repo) Ping(_ context.Context) error { return nil }
func (f *Repo) Close() error                 { return nil }

// SessionCount returns the number of stored chat sessions.
func (f *Repo) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.meta)
}
