// Package agent invokes named remote agents over the agent execution
// service's JSON RPC and validates their responses against a closed
// per-agent contract registry.
package agent

import (
	"encoding/json"
	"time"
)

// Names of the agents exposed by the execution service.
const (
	IntentClassifier = "IntentClassifierAgent"
	GoalParser       = "GoalParserAgent"
	TaskDecomposer   = "TaskDecomposerAgent"
	Scheduler        = "SchedulerAgent"
	Adaptation       = "AdaptationAgent"
)

// Request is the body posted to the execution service.
type Request struct {
	AgentName string         `json:"agent_name"`
	InputData map[string]any `json:"input_data"`
}

// Response is the execution service's reply. OutputData is kept raw so each
// agent's contract can decode it into its own shape.
type Response struct {
	Status     string          `json:"status"`
	AgentName  string          `json:"agent_name"`
	OutputData json.RawMessage `json:"output_data"`
}

// StatusSuccess is the only status accepted from the execution service.
const StatusSuccess = "success"

// Intent is the classification produced by the intent agent.
type Intent string

const (
	IntentNewGoal     Intent = "new_goal"
	IntentAdaptation  Intent = "adaptation_request"
	IntentGeneralChat Intent = "general_chat"
)

// ParsedGoal is the goal parser's output.
type ParsedGoal struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Deadline    *string        `json:"deadline"`
	Constraints map[string]any `json:"constraints"`
	Preferences map[string]any `json:"preferences"`
}

// Task is one decomposed work item.
type Task struct {
	TaskID         string `json:"task_id"`
	Description    string `json:"description"`
	RecurrenceRule string `json:"recurrence_rule"`
}

// TaskList is the task decomposer's output.
type TaskList struct {
	Tasks []Task `json:"tasks"`
}

// Event is one scheduled session of a task.
type Event struct {
	SessionID string    `json:"session_id"`
	TaskID    string    `json:"task_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

// Conflict describes two events competing for the same slot.
type Conflict struct {
	TaskID       string `json:"task_id"`
	ConflictWith string `json:"conflict_with"`
	Reason       string `json:"reason"`
}

// Schedule is the scheduler's (and adaptation agent's) output.
type Schedule struct {
	Events     []Event    `json:"events"`
	Conflicts  []Conflict `json:"conflicts"`
	Exceptions []any      `json:"exceptions"`
}
