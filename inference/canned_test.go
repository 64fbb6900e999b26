package inference_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kira-labs/orchestrator/envelope"
	"github.com/kira-labs/orchestrator/inference"
)

func buildEnv(t *testing.T, input string) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Build("persona", input)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return env
}

func TestCannedEngine_StreamsWordTokens(t *testing.T) {
	engine := &inference.CannedEngine{}

	var tokens []string
	err := engine.Stream(context.Background(), buildEnv(t, "hello there"), func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if len(tokens) < 2 {
		t.Fatalf("expected multiple tokens, got %v", tokens)
	}
	full := strings.Join(tokens, "")
	if !strings.Contains(full, "Kira") {
		t.Errorf("hello input should pick the greeting response, got %q", full)
	}
	// Accumulated tokens reassemble the full response without double spaces.
	if strings.Contains(full, "  ") {
		t.Errorf("token spacing broken: %q", full)
	}
}

func TestCannedEngine_EmptyEnvelope(t *testing.T) {
	engine := &inference.CannedEngine{}
	if err := engine.Stream(context.Background(), nil, func(string) error { return nil }); err == nil {
		t.Error("nil envelope should fail")
	}
}

func TestCannedEngine_EmitErrorStopsStream(t *testing.T) {
	engine := &inference.CannedEngine{}
	sentinel := errors.New("stop")

	count := 0
	err := engine.Stream(context.Background(), buildEnv(t, "hello"), func(string) error {
		count++
		return sentinel
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("got %v, want emit error", err)
	}
	if count != 1 {
		t.Errorf("stream should stop after the first failing emit, got %d", count)
	}
}

func TestCannedEngine_Cancellation(t *testing.T) {
	engine := inference.NewCannedEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Stream(ctx, buildEnv(t, "hello"), func(string) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
