package orchestrator

import "github.com/kira-labs/orchestrator/observability"

// Orchestrator event types emitted during connection dispatch.
const (
	EventConnect           observability.EventType = "orchestrator.connect"
	EventDisconnect        observability.EventType = "orchestrator.disconnect"
	EventFrameDropped      observability.EventType = "orchestrator.frame.dropped"
	EventDispatch          observability.EventType = "orchestrator.dispatch"
	EventCommandAccepted   observability.EventType = "orchestrator.command.accepted"
	EventGoalIntent        observability.EventType = "orchestrator.goal.intent"
	EventInferenceStart    observability.EventType = "orchestrator.inference.start"
	EventInferenceComplete observability.EventType = "orchestrator.inference.complete"
	EventInferenceError    observability.EventType = "orchestrator.inference.error"
	EventEnvelopeRejected  observability.EventType = "orchestrator.envelope.rejected"
	EventPipelineError     observability.EventType = "orchestrator.pipeline.error"
)
