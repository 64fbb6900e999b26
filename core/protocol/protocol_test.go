package protocol_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/kira-labs/orchestrator/core/protocol"
)

func TestFrame_RoundTrip(t *testing.T) {
	original, err := protocol.NewFrame(protocol.FrameDelta, protocol.DeltaPayload{
		Role:    protocol.RoleAssistant,
		Content: "hello",
		TraceID: "trace-1",
	})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}

	encoded, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := protocol.DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if decoded.Type != original.Type {
		t.Errorf("type changed in round trip: got %q, want %q", decoded.Type, original.Type)
	}

	var payload protocol.DeltaPayload
	if err := decoded.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	want := protocol.DeltaPayload{Role: protocol.RoleAssistant, Content: "hello", TraceID: "trace-1"}
	if !reflect.DeepEqual(payload, want) {
		t.Errorf("payload changed in round trip: got %+v, want %+v", payload, want)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json at all"},
		{"empty", ""},
		{"missing type", `{"payload":{"content":"hi"}}`},
		{"json array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := protocol.DecodeFrame([]byte(tt.raw)); err == nil {
				t.Errorf("DecodeFrame(%q) should fail", tt.raw)
			}
		})
	}
}

func TestDecodeFrame_PreservesPayloadBytes(t *testing.T) {
	raw := `{"type":"message.user","payload":{"content":"hi","extra":42}}`

	frame, err := protocol.DecodeFrame([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if frame.Type != protocol.FrameUserMessage {
		t.Errorf("got type %q, want %q", frame.Type, protocol.FrameUserMessage)
	}

	// Unknown payload keys survive: the payload is carried as raw JSON.
	var payload map[string]any
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["extra"] != float64(42) {
		t.Errorf("extra key lost: %v", payload)
	}
}

func TestNewMessage(t *testing.T) {
	msg := protocol.NewMessage(protocol.RoleUser, "hello")
	if msg.Role != protocol.RoleUser || msg.Content != "hello" || msg.Name != "" {
		t.Errorf("unexpected message: %+v", msg)
	}
}
