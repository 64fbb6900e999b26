package session

import "sync"

// Manager is the session arena: an explicit mapping from connection
// identity to its owned session record. Records are created on connect
// and destroyed on disconnect; nothing survives the connection.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]Session)}
}

// Create makes a new session, registers it, and returns it.
func (m *Manager) Create() Session {
	s := NewMemorySession()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	return s
}

// Get looks up a session by connection identity.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove releases the session record for a disconnected connection.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
