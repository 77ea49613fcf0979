package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Speaker identifies who produced a conversation entry.
type Speaker string

const (
	// SpeakerUser marks a question typed by the student.
	SpeakerUser Speaker = "user"
	// SpeakerAssistant marks a reply shown by the assistant.
	SpeakerAssistant Speaker = "assistant"
)

// Label returns the display name used when rendering the log.
func (s Speaker) Label() string {
	switch s {
	case SpeakerUser:
		return "You"
	case SpeakerAssistant:
		return "Bot"
	default:
		return string(s)
	}
}

// ConversationEntry is one (speaker, text) pair in the log.
type ConversationEntry struct {
	Speaker Speaker   `json:"role"`
	Text    string    `json:"content"`
	At      time.Time `json:"at"`
}

// ConversationLog is an append-only, ordered record of entries.
// It is not safe for concurrent use; callers serialise access per session.
type ConversationLog struct {
	entries []ConversationEntry
}

// Append adds an entry at the end of the log.
func (l *ConversationLog) Append(speaker Speaker, text string) {
	l.entries = append(l.entries, ConversationEntry{
		Speaker: speaker,
		Text:    text,
		At:      time.Now().UTC(),
	})
}

// All returns a copy of the entries in insertion order.
func (l *ConversationLog) All() []ConversationEntry {
	return slices.Clone(l.entries)
}

// NewestFirst returns a copy of the entries in reverse chronological order.
func (l *ConversationLog) NewestFirst() []ConversationEntry {
	out := slices.Clone(l.entries)
	slices.Reverse(out)
	return out
}

// Len returns the number of entries.
func (l *ConversationLog) Len() int {
	return len(l.entries)
}

// MarshalJSON encodes the log as a JSON array.
func (l ConversationLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// UnmarshalJSON decodes a JSON array produced by MarshalJSON.
func (l *ConversationLog) UnmarshalJSON(data []byte) error {
	var entries []ConversationEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.entries = entries
	return nil
}

// ChatSession is the per-session context handed to the chat shell.
type ChatSession struct {
	UserID     string
	SessionID  string
	IntroShown bool
	Log        ConversationLog
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewChatSession returns an empty session for a user/tab pair.
func NewChatSession(userID, sessionID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the identifier used for per-session locking.
func (s *ChatSession) Key() string {
	return SessionKey(s.UserID, s.SessionID)
}

// SessionKey joins a user and tab session id.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}
