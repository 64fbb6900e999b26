package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kira-labs/orchestrator/core/protocol"
	"github.com/kira-labs/orchestrator/envelope"
)

const defaultTokenDelay = 50 * time.Millisecond

// CannedEngine is a deterministic stand-in for the embedded model: it picks
// a keyword-matched response and streams it word by word with a small
// inter-token delay. Keeps the daemon demoable and the streaming path
// testable without a model.
type CannedEngine struct {
	// TokenDelay spaces out emitted tokens. Zero disables the delay.
	TokenDelay time.Duration
}

// NewCannedEngine returns a CannedEngine with the default token delay.
func NewCannedEngine() *CannedEngine {
	return &CannedEngine{TokenDelay: defaultTokenDelay}
}

func (e *CannedEngine) Stream(ctx context.Context, env *envelope.Envelope, emit TokenFunc) error {
	if env == nil || len(env.Messages) == 0 {
		return fmt.Errorf("invalid prompt envelope: no messages")
	}

	words := strings.Fields(e.pick(env))
	for i, word := range words {
		if e.TokenDelay > 0 {
			timer := time.NewTimer(e.TokenDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		token := word
		if i > 0 {
			token = " " + word
		}
		if err := emit(token); err != nil {
			return err
		}
	}
	return nil
}

func (e *CannedEngine) pick(env *envelope.Envelope) string {
	var input string
	for _, m := range env.Messages {
		if m.Role == protocol.RoleUser {
			input = m.Content
		}
	}
	lower := strings.ToLower(input)

	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi"):
		return "Hello! I'm Kira, your wellness assistant. How can I help you today?"
	case strings.Contains(lower, "goal"), strings.Contains(lower, "learn"):
		return "That sounds like a wonderful goal! I'd be happy to help you break it down into manageable steps."
	case strings.Contains(lower, "help"):
		return "I'm here to help! You can ask me about setting goals, creating schedules, or just chat about wellness."
	default:
		return "Thank you for sharing that with me. I'm here to support you on your wellness journey. What would you like to focus on?"
	}
}
