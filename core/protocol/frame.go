package protocol

import (
	"encoding/json"
	"fmt"
)

// FrameType identifies a frame within the closed protocol vocabulary.
// Unknown types are dropped by receivers rather than treated as errors.
type FrameType string

// Inbound frame types.
const (
	FrameUserMessage FrameType = "message.user"
)

// Outbound frame types.
const (
	FrameWelcome         FrameType = "server.welcome"
	FrameTyping          FrameType = "server.typing"
	FrameInfo            FrameType = "server.info"
	FrameDelta           FrameType = "message.delta"
	FrameComplete        FrameType = "message.complete"
	FrameCommandAccepted FrameType = "command.accepted"
	FrameScheduleUpdate  FrameType = "schedule.update"
	FrameError           FrameType = "error"
)

// Frame is the wire unit exchanged in both directions over a persistent
// connection: a type tag plus a JSON payload object.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewFrame builds a Frame by marshaling payload into the frame body.
func NewFrame(t FrameType, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Frame{Type: t, Payload: data}, nil
}

// Encode serializes the frame for transmission.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses raw bytes into a Frame. Non-JSON input or input
// without a type tag is rejected so callers can drop malformed frames.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("malformed frame: missing type")
	}
	return f, nil
}

// DecodePayload unmarshals the frame payload into v.
func (f Frame) DecodePayload(v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("frame %s has no payload", f.Type)
	}
	return json.Unmarshal(f.Payload, v)
}

// UserMessagePayload is the body of an inbound message.user frame.
type UserMessagePayload struct {
	Content string `json:"content"`
}

// WelcomePayload is the body of a server.welcome frame.
type WelcomePayload struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// TypingPayload is the body of a server.typing frame.
type TypingPayload struct {
	IsTyping bool   `json:"is_typing"`
	TraceID  string `json:"trace_id"`
}

// DeltaPayload is the body of a message.delta or message.complete frame.
type DeltaPayload struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	TraceID string `json:"trace_id"`
}

// CommandAcceptedPayload is the body of a command.accepted frame.
type CommandAcceptedPayload struct {
	Command   string `json:"command"`
	Message   string `json:"message"`
	TraceID   string `json:"trace_id"`
	Timestamp string `json:"timestamp"`
}

// InfoPayload is the body of a server.info frame.
type InfoPayload struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// ErrorPayload is the body of an outbound error frame.
type ErrorPayload struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id"`
}

// ScheduleUpdatePayload is the body of a schedule.update frame broadcast
// after an event status change.
type ScheduleUpdatePayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}
