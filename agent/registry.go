package agent

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Validator checks a response payload against an agent's contract. The
// payload is the output_data sub-object for most agents; agents registered
// with whole-response validation receive the full response body instead.
type Validator func(payload json.RawMessage) error

// Contract binds an agent name to its response validator.
type Contract struct {
	// Validate is applied to the selected payload before a response is
	// accepted. A validation failure is a ContractError, never retried.
	Validate Validator

	// WholeResponse selects the full response body for validation instead
	// of the output_data sub-object. Only the intent agent wraps its
	// status and intent at the top level.
	WholeResponse bool
}

// Registry is the closed mapping from agent name to contract. Adding an
// agent is a single Register call. Thread-safe for concurrent access.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]Contract)}
}

// Register adds a named agent contract to the registry.
func (r *Registry) Register(name string, c Contract) error {
	if name == "" {
		return ErrEmptyAgentName
	}
	if c.Validate == nil {
		return fmt.Errorf("agent %s: contract has no validator", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contracts[name]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}

	r.contracts[name] = c
	return nil
}

// Get retrieves the contract for a named agent.
func (r *Registry) Get(name string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.contracts[name]
	if !exists {
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return c, nil
}

// DefaultRegistry returns a Registry pre-populated with the contracts of
// all agents exposed by the execution service.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register(IntentClassifier, Contract{Validate: ValidateIntent, WholeResponse: true}))
	must(r.Register(GoalParser, Contract{Validate: ValidateParsedGoal}))
	must(r.Register(TaskDecomposer, Contract{Validate: ValidateTaskList}))
	must(r.Register(Scheduler, Contract{Validate: ValidateSchedule}))
	must(r.Register(Adaptation, Contract{Validate: ValidateSchedule}))
	return r
}

// ValidateIntent checks the intent classifier's full response body:
// a success status wrapping an output_data.intent from the closed set.
func ValidateIntent(payload json.RawMessage) error {
	var resp struct {
		Status     string `json:"status"`
		OutputData struct {
			Intent Intent `json:"intent"`
		} `json:"output_data"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("invalid intent response: %w", err)
	}
	if resp.Status != StatusSuccess {
		return fmt.Errorf("intent response status %q, want %q", resp.Status, StatusSuccess)
	}
	switch resp.OutputData.Intent {
	case IntentNewGoal, IntentAdaptation, IntentGeneralChat:
		return nil
	case "":
		return fmt.Errorf("intent response missing output_data.intent")
	default:
		return fmt.Errorf("unknown intent %q", resp.OutputData.Intent)
	}
}

// ValidateParsedGoal checks the goal parser's output_data. Deadline may be
// null; when present it must be an ISO date.
func ValidateParsedGoal(payload json.RawMessage) error {
	var goal ParsedGoal
	if err := json.Unmarshal(payload, &goal); err != nil {
		return fmt.Errorf("invalid parsed goal: %w", err)
	}
	if goal.Type == "" {
		return fmt.Errorf("parsed goal missing type")
	}
	if goal.Description == "" {
		return fmt.Errorf("parsed goal missing description")
	}
	if goal.Constraints == nil {
		return fmt.Errorf("parsed goal missing constraints")
	}
	if goal.Preferences == nil {
		return fmt.Errorf("parsed goal missing preferences")
	}
	if goal.Deadline != nil {
		if _, err := time.Parse("2006-01-02", *goal.Deadline); err != nil {
			return fmt.Errorf("parsed goal deadline %q is not a date: %w", *goal.Deadline, err)
		}
	}
	return nil
}

// ValidateTaskList checks the task decomposer's output_data: a non-empty
// task sequence with UUID task ids.
func ValidateTaskList(payload json.RawMessage) error {
	var list TaskList
	if err := json.Unmarshal(payload, &list); err != nil {
		return fmt.Errorf("invalid task list: %w", err)
	}
	if len(list.Tasks) == 0 {
		return fmt.Errorf("task list is empty")
	}
	for i, task := range list.Tasks {
		if _, err := uuid.Parse(task.TaskID); err != nil {
			return fmt.Errorf("task %d: task_id %q is not a UUID", i, task.TaskID)
		}
		if task.Description == "" {
			return fmt.Errorf("task %d missing description", i)
		}
		if task.RecurrenceRule == "" {
			return fmt.Errorf("task %d missing recurrence_rule", i)
		}
	}
	return nil
}

// ValidateSchedule checks the scheduler's output_data: events with UUID
// session ids and RFC 3339 start/end times. Timestamp format errors are
// caught during decoding.
func ValidateSchedule(payload json.RawMessage) error {
	var sched Schedule
	if err := json.Unmarshal(payload, &sched); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	for i, ev := range sched.Events {
		if _, err := uuid.Parse(ev.SessionID); err != nil {
			return fmt.Errorf("event %d: session_id %q is not a UUID", i, ev.SessionID)
		}
		if ev.TaskID == "" {
			return fmt.Errorf("event %d missing task_id", i)
		}
		if ev.StartTime.IsZero() || ev.EndTime.IsZero() {
			return fmt.Errorf("event %d missing start or end time", i)
		}
		if ev.Status == "" {
			return fmt.Errorf("event %d missing status", i)
		}
	}
	for i, c := range sched.Conflicts {
		if c.TaskID == "" || c.ConflictWith == "" || c.Reason == "" {
			return fmt.Errorf("conflict %d is incomplete", i)
		}
	}
	return nil
}
