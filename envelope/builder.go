// Package envelope assembles the bounded, versioned prompt envelopes sent to
// the local inference engine.
//
// An envelope carries an ordered message sequence (global policy, persona,
// windowed conversation memory, the current user turn, and an optional
// ephemeral directive) plus versioned metadata:
//
//	env, err := envelope.Build(persona, input, envelope.WithMemory(turns))
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/kira-labs/orchestrator/core/protocol"
)

const (
	// PromptVersion is the envelope wire-format version. Bump on any change
	// to the envelope shape; consumers reject versions they do not know.
	PromptVersion = "1.1"

	// MemoryLimit is the maximum number of memory turns windowed into an
	// envelope.
	MemoryLimit = 20

	// MaxContentBytes bounds a single message content. Longer content is cut
	// at the byte boundary; callers must tolerate a partial final code point.
	MaxContentBytes = 16 * 1024

	// MaxEnvelopeBytes bounds the serialized envelope under SizeGuardReject.
	MaxEnvelopeBytes = 64 * 1024
)

// GlobalPolicy is prepended to every envelope before the persona message.
const GlobalPolicy = `You are Kira-Gemma (v0.9, offline-first).
- NEVER call external APIs, websites, or remote servers.
- Obey Contracts A (WebSocket frames) & B (REST DTOs).
- Default to <= 150 tokens; exceed only if user explicitly requests depth.
- When metadata.require_json is true, reply solely with valid JSON, no prose.
- Valid roles: "user", "assistant", "system".
- If unsure, ask a clarifying question instead of hallucinating.
`

// SizeGuard selects what happens when a built envelope exceeds
// MaxEnvelopeBytes.
type SizeGuard int

const (
	// SizeGuardReject fails the build with a SizeLimitError. Default outside
	// production so regressions surface early.
	SizeGuardReject SizeGuard = iota
	// SizeGuardBypass passes oversized envelopes through unchanged.
	// Production prioritizes availability over the bound.
	SizeGuardBypass
)

// SizeLimitError reports an envelope exceeding MaxEnvelopeBytes under
// SizeGuardReject.
type SizeLimitError struct {
	Bytes int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("prompt envelope %d bytes exceeds %d byte limit", e.Bytes, MaxEnvelopeBytes)
}

// Metadata carries the envelope version and response-format flags. TraceID
// is attached by the caller after construction; it is excluded from build
// idempotence.
type Metadata struct {
	PromptVersion string `json:"prompt_version"`
	RequireJSON   bool   `json:"require_json"`
	TraceID       string `json:"trace_id,omitempty"`
}

// Envelope is the structured request for one inference run. Messages must
// not be mutated after Build returns.
type Envelope struct {
	Messages []protocol.Message `json:"messages"`
	Metadata Metadata           `json:"metadata"`
}

// Option configures a Build call.
type Option func(*options)

type options struct {
	memory      []string
	ephemeral   string
	requireJSON bool
	guard       SizeGuard
}

// WithMemory windows the given turns into the envelope as assistant
// messages. Only the last MemoryLimit entries are kept, oldest first.
func WithMemory(turns []string) Option {
	return func(o *options) { o.memory = turns }
}

// WithEphemeral appends a system directive tagged "ephemeral" after the
// user turn. An empty directive is ignored.
func WithEphemeral(directive string) Option {
	return func(o *options) { o.ephemeral = directive }
}

// WithRequireJSON sets the require_json metadata flag.
func WithRequireJSON(v bool) Option {
	return func(o *options) { o.requireJSON = v }
}

// WithSizeGuard overrides the default SizeGuardReject policy.
func WithSizeGuard(g SizeGuard) Option {
	return func(o *options) { o.guard = g }
}

// Build assembles an envelope from the persona and user input. Message
// order is fixed: global policy, persona, windowed memory (oldest first),
// user turn, optional ephemeral directive. Inputs are never mutated;
// identical arguments yield byte-identical envelopes.
func Build(persona, userInput string, opts ...Option) (*Envelope, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	window := o.memory
	if len(window) > MemoryLimit {
		window = window[len(window)-MemoryLimit:]
	}

	messages := make([]protocol.Message, 0, len(window)+3)
	messages = append(messages,
		protocol.NewMessage(protocol.RoleSystem, GlobalPolicy),
		protocol.NewMessage(protocol.RoleSystem, persona),
	)
	for _, turn := range window {
		messages = append(messages, protocol.NewMessage(protocol.RoleAssistant, Truncate(turn)))
	}
	messages = append(messages, protocol.NewMessage(protocol.RoleUser, Truncate(userInput)))
	if o.ephemeral != "" {
		messages = append(messages, protocol.Message{
			Role:    protocol.RoleSystem,
			Content: o.ephemeral,
			Name:    protocol.EphemeralName,
		})
	}

	env := &Envelope{
		Messages: messages,
		Metadata: Metadata{
			PromptVersion: PromptVersion,
			RequireJSON:   o.requireJSON,
		},
	}

	if o.guard == SizeGuardReject {
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize envelope for size check: %w", err)
		}
		if len(data) > MaxEnvelopeBytes {
			return nil, &SizeLimitError{Bytes: len(data)}
		}
	}

	return env, nil
}

// Truncate cuts s to MaxContentBytes of UTF-8 bytes. The cut is a plain
// byte-boundary cut, not code-point aware.
func Truncate(s string) string {
	if len(s) <= MaxContentBytes {
		return s
	}
	return s[:MaxContentBytes]
}
