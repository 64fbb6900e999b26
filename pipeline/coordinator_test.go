package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kira-labs/orchestrator/agent"
	"github.com/kira-labs/orchestrator/pipeline"
	"github.com/kira-labs/orchestrator/schedule"
)

// scriptedInvoker returns canned responses per agent and records call order.
type scriptedInvoker struct {
	outputs map[string]string // agent name -> output_data JSON
	failAt  string            // agent name that fails, if any
	failErr error
	calls   []string
	inputs  map[string]map[string]any
}

func newScriptedInvoker() *scriptedInvoker {
	return &scriptedInvoker{
		outputs: map[string]string{
			agent.IntentClassifier: `{"intent":"new_goal"}`,
			agent.GoalParser:       `{"type":"learning","description":"learn Go","deadline":null,"constraints":{},"preferences":{}}`,
			agent.TaskDecomposer:   `{"tasks":[{"task_id":"8fc3c91e-11c6-4c38-9e93-2b1bd0a2f2f3","description":"read the tour","recurrence_rule":"FREQ=DAILY"}]}`,
			agent.Scheduler:        `{"events":[{"session_id":"a4f7d1e2-33aa-4f0b-9c1d-5e6f7a8b9c0d","task_id":"8fc3c91e-11c6-4c38-9e93-2b1bd0a2f2f3","start_time":"2026-09-02T09:00:00Z","end_time":"2026-09-02T10:00:00Z","status":"scheduled"}],"conflicts":[],"exceptions":[]}`,
		},
		inputs: make(map[string]map[string]any),
	}
}

func (s *scriptedInvoker) Invoke(ctx context.Context, agentName string, input map[string]any, traceID string) (*agent.Response, error) {
	s.calls = append(s.calls, agentName)
	s.inputs[agentName] = input

	if s.failAt == agentName {
		return nil, s.failErr
	}

	out, ok := s.outputs[agentName]
	if !ok {
		return nil, fmt.Errorf("unscripted agent %s", agentName)
	}
	return &agent.Response{
		Status:     agent.StatusSuccess,
		AgentName:  agentName,
		OutputData: json.RawMessage(out),
	}, nil
}

func TestRun_NewGoalInvokesFourAgentsInOrder(t *testing.T) {
	inv := newScriptedInvoker()
	store := schedule.NewStore()
	coord := pipeline.NewCoordinator(inv, store)

	result, err := coord.Run(context.Background(), "alice", "I want to learn Go", "trace-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantOrder := []string{
		agent.IntentClassifier,
		agent.GoalParser,
		agent.TaskDecomposer,
		agent.Scheduler,
	}
	if len(inv.calls) != len(wantOrder) {
		t.Fatalf("got %d agent calls %v, want %d", len(inv.calls), inv.calls, len(wantOrder))
	}
	for i, name := range wantOrder {
		if inv.calls[i] != name {
			t.Errorf("call %d: got %s, want %s", i, inv.calls[i], name)
		}
	}

	if result.Intent != agent.IntentNewGoal {
		t.Errorf("got intent %q", result.Intent)
	}
	if result.Goal == nil || result.Goal.Description != "learn Go" {
		t.Errorf("goal not captured: %+v", result.Goal)
	}
	if len(result.Tasks) != 1 {
		t.Errorf("tasks not captured: %+v", result.Tasks)
	}
	if result.Schedule == nil || len(result.Schedule.Events) != 1 {
		t.Errorf("schedule not captured: %+v", result.Schedule)
	}

	// The parsed goal flows into the decomposer, the task list into the scheduler.
	if inv.inputs[agent.TaskDecomposer]["description"] != "learn Go" {
		t.Errorf("decomposer input should be the parsed goal, got %v", inv.inputs[agent.TaskDecomposer])
	}
	if _, ok := inv.inputs[agent.Scheduler]["tasks"]; !ok {
		t.Errorf("scheduler input should be the task list, got %v", inv.inputs[agent.Scheduler])
	}

	// Full success commits the schedule.
	sched, ok := store.Get("alice")
	if !ok || len(sched.Events) != 1 {
		t.Errorf("schedule was not committed: %+v", sched)
	}
}

func TestRun_OtherIntentStopsAfterClassification(t *testing.T) {
	inv := newScriptedInvoker()
	inv.outputs[agent.IntentClassifier] = `{"intent":"general_chat"}`
	store := schedule.NewStore()
	coord := pipeline.NewCoordinator(inv, store)

	result, err := coord.Run(context.Background(), "alice", "how are you", "trace-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Intent != agent.IntentGeneralChat {
		t.Errorf("got intent %q", result.Intent)
	}
	if len(inv.calls) != 1 {
		t.Errorf("non-goal intents should invoke only the classifier, got %v", inv.calls)
	}
	if result.Schedule != nil || result.Goal != nil || result.Tasks != nil {
		t.Errorf("pass-through result should be empty beyond intent: %+v", result)
	}
}

func TestRun_StageFailureIsFailFast(t *testing.T) {
	inv := newScriptedInvoker()
	inv.failAt = agent.TaskDecomposer
	inv.failErr = &agent.InvokeError{Agent: agent.TaskDecomposer, Attempts: 2, Err: errors.New("down")}
	store := schedule.NewStore()
	coord := pipeline.NewCoordinator(inv, store)

	_, err := coord.Run(context.Background(), "alice", "I want to learn Go", "trace-1")

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want *StageError", err)
	}
	if stageErr.Stage != agent.TaskDecomposer {
		t.Errorf("got stage %q, want %q", stageErr.Stage, agent.TaskDecomposer)
	}
	var invokeErr *agent.InvokeError
	if !errors.As(err, &invokeErr) {
		t.Error("underlying invoke error should be preserved")
	}

	if len(inv.calls) != 3 {
		t.Errorf("scheduler must not run after decomposer failure, calls: %v", inv.calls)
	}
	if _, ok := store.Get("alice"); ok {
		t.Error("a failed run must not commit a schedule")
	}
}

func TestRun_FailureDoesNotCorruptPriorSchedule(t *testing.T) {
	store := schedule.NewStore()
	prior := agent.Schedule{Events: []agent.Event{{
		SessionID: "11111111-1111-4111-8111-111111111111",
		TaskID:    "t0",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		Status:    "scheduled",
	}}}
	store.Put("alice", prior)

	inv := newScriptedInvoker()
	inv.failAt = agent.Scheduler
	inv.failErr = errors.New("scheduler down")
	coord := pipeline.NewCoordinator(inv, store)

	if _, err := coord.Run(context.Background(), "alice", "new goal please", "trace-1"); err == nil {
		t.Fatal("Run should fail")
	}

	sched, ok := store.Get("alice")
	if !ok || len(sched.Events) != 1 || sched.Events[0].TaskID != "t0" {
		t.Errorf("prior schedule should survive a failed run: %+v", sched)
	}
}

// TestRun_SchedulerRetryThenPipelineFailure drives the real invoker: a
// persistent 5xx on the scheduler stage is retried exactly once, then
// fails the whole run without committing.
func TestRun_SchedulerRetryThenPipelineFailure(t *testing.T) {
	scripted := newScriptedInvoker()
	var schedulerCalls, totalCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req agent.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("undecodable agent request: %v", err)
		}
		totalCalls++
		if req.AgentName == agent.Scheduler {
			schedulerCalls++
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(agent.Response{
			Status:     agent.StatusSuccess,
			AgentName:  req.AgentName,
			OutputData: json.RawMessage(scripted.outputs[req.AgentName]),
		})
	}))
	t.Cleanup(srv.Close)

	inv := agent.NewInvoker(srv.URL, agent.DefaultRegistry(),
		agent.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	store := schedule.NewStore()
	coord := pipeline.NewCoordinator(inv, store)

	_, err := coord.Run(context.Background(), "alice", "learn Go by October", "trace-1")
	if err == nil {
		t.Fatal("expected the run to fail")
	}

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != agent.Scheduler {
		t.Fatalf("got %v, want a scheduler stage failure", err)
	}
	var invokeErr *agent.InvokeError
	if !errors.As(err, &invokeErr) || invokeErr.Attempts != 2 {
		t.Fatalf("got %v, want 2 exhausted attempts", err)
	}

	if schedulerCalls != 2 {
		t.Errorf("scheduler called %d times, want 2", schedulerCalls)
	}
	if totalCalls != 5 {
		t.Errorf("%d agent calls total, want 3 successes + 2 scheduler attempts", totalCalls)
	}
	if _, ok := store.Get("alice"); ok {
		t.Error("failed run must not commit a schedule")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := newScriptedInvoker()
	coord := pipeline.NewCoordinator(inv, schedule.NewStore())

	if _, err := coord.Run(ctx, "alice", "goal", "trace-1"); err == nil {
		t.Fatal("cancelled context should abort the pipeline")
	}
	if len(inv.calls) != 0 {
		t.Errorf("no agent should be invoked after cancellation, got %v", inv.calls)
	}
}
