// Package inference defines the boundary to the local token-streaming
// engine. The engine is an external collaborator; the orchestrator only
// depends on this interface.
package inference

import (
	"context"

	"github.com/kira-labs/orchestrator/envelope"
)

// TokenFunc receives one streamed token. Returning an error stops the
// stream and fails the run.
type TokenFunc func(token string) error

// Engine produces a streamed completion for a prompt envelope. Stream
// blocks until the completion finishes, the context is cancelled, or emit
// returns an error.
type Engine interface {
	Stream(ctx context.Context, env *envelope.Envelope, emit TokenFunc) error
}
