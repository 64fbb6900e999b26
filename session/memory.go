package session

import (
	"sync"

	"github.com/google/uuid"
)

type memorySession struct {
	id    string
	turns []Turn
	mu    sync.RWMutex
}

// NewMemorySession creates a Session backed by an in-memory slice.
// The session is assigned a unique UUIDv7 identifier.
func NewMemorySession() Session {
	return &memorySession{
		id: uuid.Must(uuid.NewV7()).String(),
	}
}

func (s *memorySession) ID() string {
	return s.id
}

func (s *memorySession) AddTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

func (s *memorySession) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

func (s *memorySession) Window(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	start := 0
	if len(s.turns) > n {
		start = len(s.turns) - n
	}

	window := make([]string, 0, len(s.turns)-start)
	for _, t := range s.turns[start:] {
		window = append(window, t.Content)
	}
	return window
}

func (s *memorySession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
