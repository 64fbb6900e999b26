// Package command classifies raw message text against the slash-command
// whitelist and provides a request-scoped adapter for HTTP handlers.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kira-labs/orchestrator/core/protocol"
)

// Whitelisted directives. Matching is exact and case-sensitive; callers
// trim surrounding whitespace before classifying.
var whitelist = map[string]struct{}{
	"/mode=json": {},
	"/debug":     {},
	"/summarize": {},
	"/sql":       {},
	"/rephrase":  {},
}

var acknowledgements = map[string]string{
	"/mode=json": "🔧 Switched to JSON-only response mode",
	"/debug":     "🐛 Debug mode enabled - you'll see detailed processing info",
	"/summarize": "📋 Summarization mode activated",
	"/sql":       "💾 SQL query mode ready",
	"/rephrase":  "✏️ Rephrasing mode enabled",
}

// Classify tests text against the whitelist. It returns the directive
// itself and true on a match, and "" and false otherwise. Non-directive
// text is not an error; callers treat false as "not a command".
func Classify(text string) (string, bool) {
	_, ok := whitelist[text]
	if !ok {
		return "", false
	}
	return text, true
}

// Acknowledgement returns the canned response for an accepted directive.
func Acknowledgement(cmd string) string {
	if msg, ok := acknowledgements[cmd]; ok {
		return msg
	}
	return "✅ Command " + cmd + " processed"
}

// peekFrame reads and decodes the request body as a frame, returning a
// replacement body so downstream handlers can read it again.
func peekFrame(r *http.Request) (protocol.Frame, io.ReadCloser, error) {
	if r.Body == nil {
		return protocol.Frame{}, nil, errors.New("no request body")
	}
	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	restored := io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return protocol.Frame{}, restored, err
	}
	frame, err := protocol.DecodeFrame(data)
	return frame, restored, err
}

type contextKey struct{}

// Middleware attaches the classified directive of an inbound message.user
// frame to the request context. Requests that are not user-message frames
// pass through untouched; handlers read the result with FromContext.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		frame, body, err := peekFrame(r)
		if err == nil && frame.Type == protocol.FrameUserMessage {
			var payload protocol.UserMessagePayload
			if frame.DecodePayload(&payload) == nil {
				if cmd, ok := Classify(strings.TrimSpace(payload.Content)); ok {
					r = r.WithContext(context.WithValue(r.Context(), contextKey{}, cmd))
				}
			}
		}
		if body != nil {
			r.Body = body
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext returns the directive attached by Middleware, if any.
func FromContext(ctx context.Context) (string, bool) {
	cmd, ok := ctx.Value(contextKey{}).(string)
	return cmd, ok
}
