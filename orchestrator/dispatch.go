package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/kira-labs/orchestrator/agent"
	"github.com/kira-labs/orchestrator/command"
	"github.com/kira-labs/orchestrator/core/protocol"
	"github.com/kira-labs/orchestrator/envelope"
	"github.com/kira-labs/orchestrator/observability"
	"github.com/kira-labs/orchestrator/pipeline"
	"github.com/kira-labs/orchestrator/session"
)

// dispatch handles one inbound frame. Routing order: malformed frames are
// dropped, then whitelisted directives, then the goal-intent heuristic,
// then local inference.
func (o *Orchestrator) dispatch(ctx context.Context, c *conn, raw []byte) {
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		o.emit(ctx, EventFrameDropped, observability.LevelWarning, "", map[string]any{
			"connection": c.sess.ID(),
			"reason":     err.Error(),
		})
		return
	}
	if frame.Type != protocol.FrameUserMessage {
		o.emit(ctx, EventFrameDropped, observability.LevelWarning, "", map[string]any{
			"connection": c.sess.ID(),
			"reason":     "unexpected frame type " + string(frame.Type),
		})
		return
	}

	var payload protocol.UserMessagePayload
	if err := frame.DecodePayload(&payload); err != nil {
		o.emit(ctx, EventFrameDropped, observability.LevelWarning, "", map[string]any{
			"connection": c.sess.ID(),
			"reason":     err.Error(),
		})
		return
	}

	content := strings.TrimSpace(payload.Content)
	traceID := newTraceID()

	o.emit(ctx, EventDispatch, observability.LevelVerbose, traceID, map[string]any{
		"connection": c.sess.ID(),
		"length":     len(content),
	})

	if cmd, ok := command.Classify(content); ok {
		o.handleCommand(ctx, c, traceID, cmd)
		return
	}

	if matchesGoalIntent(content) {
		o.handleGoalIntent(ctx, c, traceID, content)
		return
	}

	o.handleChat(ctx, c, traceID, content)
}

func (o *Orchestrator) handleCommand(ctx context.Context, c *conn, traceID, cmd string) {
	o.emit(ctx, EventCommandAccepted, observability.LevelInfo, traceID, map[string]any{"command": cmd})

	c.send(mustFrame(protocol.FrameCommandAccepted, protocol.CommandAcceptedPayload{
		Command:   cmd,
		Message:   command.Acknowledgement(cmd),
		TraceID:   traceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}

// handleGoalIntent notifies the client that goal handling is taking over,
// then runs the goal pipeline when one is wired in. Without a pipeline the
// heuristic remains a pure notifier.
func (o *Orchestrator) handleGoalIntent(ctx context.Context, c *conn, traceID, content string) {
	o.emit(ctx, EventGoalIntent, observability.LevelInfo, traceID, map[string]any{
		"connection": c.sess.ID(),
	})

	c.send(mustFrame(protocol.FrameInfo, protocol.InfoPayload{
		Message: "🎯 I detect you're talking about goals! Let me connect you to the goal management system...",
		TraceID: traceID,
	}))

	if o.pipeline == nil {
		return
	}

	c.send(mustFrame(protocol.FrameTyping, protocol.TypingPayload{IsTyping: true, TraceID: traceID}))
	defer c.send(mustFrame(protocol.FrameTyping, protocol.TypingPayload{IsTyping: false, TraceID: traceID}))

	result, err := o.pipeline.Run(ctx, o.user, content, traceID)
	if err != nil {
		o.emit(ctx, EventPipelineError, observability.LevelError, traceID, map[string]any{"error": err.Error()})
		c.send(mustFrame(protocol.FrameError, protocol.ErrorPayload{
			Message: userErrorMessage,
			TraceID: traceID,
		}))
		return
	}

	response := goalResponseText(result)
	c.send(mustFrame(protocol.FrameComplete, protocol.DeltaPayload{
		Role:    protocol.RoleAssistant,
		Content: response,
		TraceID: traceID,
	}))

	now := time.Now().UTC()
	c.sess.AddTurn(session.Turn{Role: protocol.RoleUser, Content: content, Timestamp: now})
	c.sess.AddTurn(session.Turn{Role: protocol.RoleAssistant, Content: response, Timestamp: now})
}

func (o *Orchestrator) handleChat(ctx context.Context, c *conn, traceID, content string) {
	// Session state is looked up fresh for every envelope build.
	memory := c.sess.Window(10)

	env, err := envelope.Build(o.persona, content,
		envelope.WithMemory(memory),
		envelope.WithSizeGuard(o.guard),
	)
	if err != nil {
		o.emit(ctx, EventEnvelopeRejected, observability.LevelError, traceID, map[string]any{"error": err.Error()})
		c.send(mustFrame(protocol.FrameError, protocol.ErrorPayload{
			Message: userErrorMessage,
			TraceID: traceID,
		}))
		return
	}
	env.Metadata.TraceID = traceID

	o.emit(ctx, EventInferenceStart, observability.LevelInfo, traceID, map[string]any{
		"messages": len(env.Messages),
	})

	c.send(mustFrame(protocol.FrameTyping, protocol.TypingPayload{IsTyping: true, TraceID: traceID}))
	// The typing-stop frame is sent even when inference fails.
	defer c.send(mustFrame(protocol.FrameTyping, protocol.TypingPayload{IsTyping: false, TraceID: traceID}))

	var full strings.Builder
	streamErr := o.engine.Stream(ctx, env, func(token string) error {
		full.WriteString(token)
		c.send(mustFrame(protocol.FrameDelta, protocol.DeltaPayload{
			Role:    protocol.RoleAssistant,
			Content: token,
			TraceID: traceID,
		}))
		return nil
	})
	if streamErr != nil {
		o.emit(ctx, EventInferenceError, observability.LevelError, traceID, map[string]any{"error": streamErr.Error()})
		c.send(mustFrame(protocol.FrameError, protocol.ErrorPayload{
			Message: userErrorMessage,
			TraceID: traceID,
		}))
		return
	}

	response := full.String()
	c.send(mustFrame(protocol.FrameComplete, protocol.DeltaPayload{
		Role:    protocol.RoleAssistant,
		Content: response,
		TraceID: traceID,
	}))

	now := time.Now().UTC()
	c.sess.AddTurn(session.Turn{Role: protocol.RoleUser, Content: content, Timestamp: now})
	c.sess.AddTurn(session.Turn{Role: protocol.RoleAssistant, Content: response, Timestamp: now})

	o.emit(ctx, EventInferenceComplete, observability.LevelInfo, traceID, map[string]any{
		"response_length": len(response),
	})
}

// goalResponseText renders a pipeline result as the assistant's reply.
func goalResponseText(result *pipeline.Result) string {
	if result.Intent != agent.IntentNewGoal {
		return "(stub) Intent " + string(result.Intent) + " not yet supported."
	}

	var b strings.Builder
	b.WriteString("✅ Goal captured! Here are your tasks:")
	for _, task := range result.Tasks {
		b.WriteString("\n- ")
		b.WriteString(task.Description)
	}
	return b.String()
}
