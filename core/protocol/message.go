// Package protocol defines the wire types shared across the orchestrator:
// the Frame exchanged over a persistent client connection and the Message
// carried inside prompt envelopes.
package protocol

// Role identifies the sender of an envelope message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EphemeralName tags the optional trailing system directive appended after
// the user turn of an envelope.
const EphemeralName = "ephemeral"

// Message is a single envelope entry. Name is set to EphemeralName on the
// optional trailing directive and omitted otherwise.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// NewMessage creates a Message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}
