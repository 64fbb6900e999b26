// Package session manages per-connection conversation state: an opaque
// identity and the ordered turn history windowed into prompt envelopes.
package session

import (
	"time"

	"github.com/kira-labs/orchestrator/core/protocol"
)

// Turn is one conversation entry.
type Turn struct {
	Role      protocol.Role `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// Session holds an ordered sequence of conversation turns for one
// connection. Implementations must be safe for concurrent use.
type Session interface {
	// ID returns the unique connection identity.
	ID() string
	// AddTurn appends a turn to the conversation history.
	AddTurn(t Turn)
	// Turns returns a defensive copy of the conversation history.
	Turns() []Turn
	// Window returns the contents of the most recent n turns, oldest
	// first. Storage is unbounded; only the window is surfaced.
	Window(n int) []string
	// Clear resets the conversation history.
	Clear()
}
