package agent

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ConnectionRegistry tracks the live websocket per chat session. A second
// connection for the same session replaces the first.
type ConnectionRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the live connection for a session, if any.
func (m *ConnectionRegistry) Get(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register records conn for the session and closes any previous one.
func (m *ConnectionRegistry) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Chat connection registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes conn if it is still the session's live connection.
func (m *ConnectionRegistry) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Chat connection unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Count returns the number of live connections.
func (m *ConnectionRegistry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
