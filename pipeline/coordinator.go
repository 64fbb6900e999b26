// Package pipeline chains the remote goal agents into one ordered,
// fail-fast sequence: intent classification, then (for new goals) goal
// parsing, task decomposition, and scheduling. A schedule is committed to
// the store only when every stage succeeds.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kira-labs/orchestrator/agent"
	"github.com/kira-labs/orchestrator/observability"
	"github.com/kira-labs/orchestrator/schedule"
)

// Coordinator event types.
const (
	EventPipelineStart    observability.EventType = "pipeline.start"
	EventStageStart       observability.EventType = "pipeline.stage.start"
	EventStageComplete    observability.EventType = "pipeline.stage.complete"
	EventPipelineComplete observability.EventType = "pipeline.complete"
)

// Invoker is the slice of the agent invoker the coordinator needs.
type Invoker interface {
	Invoke(ctx context.Context, agentName string, input map[string]any, traceID string) (*agent.Response, error)
}

// Result accumulates the output of the stage chain. Goal, Tasks, and
// Schedule are populated only on the new-goal branch.
type Result struct {
	Intent   agent.Intent
	Goal     *agent.ParsedGoal
	Tasks    []agent.Task
	Schedule *agent.Schedule
}

// Option configures a Coordinator after construction.
type Option func(*Coordinator)

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// Coordinator runs the goal pipeline. The schedule store is injected so
// multi-user correctness is testable; the coordinator holds no global
// state of its own.
type Coordinator struct {
	invoker  Invoker
	store    *schedule.Store
	observer observability.Observer
}

// NewCoordinator creates a Coordinator over the given invoker and store.
func NewCoordinator(invoker Invoker, store *schedule.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		invoker:  invoker,
		store:    store,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the stage chain for one user message. Any stage failure
// aborts the remaining stages and surfaces a *StageError; nothing is
// written to the store on a partial run. On full success of the new-goal
// branch, the resulting schedule replaces the user's schedule, last
// writer wins.
func (c *Coordinator) Run(ctx context.Context, userID, text, traceID string) (*Result, error) {
	c.emit(ctx, EventPipelineStart, observability.LevelInfo, traceID, map[string]any{
		"user": userID,
	})

	result := &Result{}

	intentResp, err := c.stage(ctx, agent.IntentClassifier, map[string]any{"text": text}, traceID)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.IntentClassifier, err)
	}
	var intentOut struct {
		Intent agent.Intent `json:"intent"`
	}
	if err := json.Unmarshal(intentResp.OutputData, &intentOut); err != nil {
		return nil, c.fail(ctx, traceID, agent.IntentClassifier, fmt.Errorf("undecodable intent output: %w", err))
	}
	result.Intent = intentOut.Intent

	if result.Intent != agent.IntentNewGoal {
		c.emit(ctx, EventPipelineComplete, observability.LevelInfo, traceID, map[string]any{
			"intent": string(result.Intent),
			"stages": 1,
		})
		return result, nil
	}

	goalResp, err := c.stage(ctx, agent.GoalParser, map[string]any{"text": text}, traceID)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.GoalParser, err)
	}
	var goal agent.ParsedGoal
	if err := json.Unmarshal(goalResp.OutputData, &goal); err != nil {
		return nil, c.fail(ctx, traceID, agent.GoalParser, fmt.Errorf("undecodable goal output: %w", err))
	}
	result.Goal = &goal

	goalInput, err := rawToMap(goalResp.OutputData)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.GoalParser, err)
	}
	tasksResp, err := c.stage(ctx, agent.TaskDecomposer, goalInput, traceID)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.TaskDecomposer, err)
	}
	var tasks agent.TaskList
	if err := json.Unmarshal(tasksResp.OutputData, &tasks); err != nil {
		return nil, c.fail(ctx, traceID, agent.TaskDecomposer, fmt.Errorf("undecodable task output: %w", err))
	}
	result.Tasks = tasks.Tasks

	tasksInput, err := rawToMap(tasksResp.OutputData)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.TaskDecomposer, err)
	}
	schedResp, err := c.stage(ctx, agent.Scheduler, tasksInput, traceID)
	if err != nil {
		return nil, c.fail(ctx, traceID, agent.Scheduler, err)
	}
	var sched agent.Schedule
	if err := json.Unmarshal(schedResp.OutputData, &sched); err != nil {
		return nil, c.fail(ctx, traceID, agent.Scheduler, fmt.Errorf("undecodable schedule output: %w", err))
	}
	result.Schedule = &sched

	// Commit point: only a fully successful run reaches the store.
	c.store.Put(userID, sched)

	c.emit(ctx, EventPipelineComplete, observability.LevelInfo, traceID, map[string]any{
		"intent": string(result.Intent),
		"stages": 4,
		"tasks":  len(result.Tasks),
		"events": len(sched.Events),
	})
	return result, nil
}

func (c *Coordinator) stage(ctx context.Context, name string, input map[string]any, traceID string) (*agent.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.emit(ctx, EventStageStart, observability.LevelVerbose, traceID, map[string]any{"stage": name})

	resp, err := c.invoker.Invoke(ctx, name, input, traceID)

	c.emit(ctx, EventStageComplete, observability.LevelVerbose, traceID, map[string]any{
		"stage": name,
		"error": err != nil,
	})
	return resp, err
}

func (c *Coordinator) fail(ctx context.Context, traceID, stage string, err error) error {
	c.emit(ctx, EventPipelineComplete, observability.LevelError, traceID, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
	return &StageError{Stage: stage, Err: err}
}

func (c *Coordinator) emit(ctx context.Context, t observability.EventType, level observability.Level, traceID string, data map[string]any) {
	c.observer.OnEvent(ctx, observability.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "pipeline.Coordinator",
		TraceID:   traceID,
		Data:      data,
	})
}

func rawToMap(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("output is not an object: %w", err)
	}
	return m, nil
}
