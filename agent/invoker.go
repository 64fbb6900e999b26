package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kira-labs/orchestrator/observability"
)

const (
	// InvokeTimeout bounds one attempt against the execution service.
	InvokeTimeout = 10 * time.Second

	// maxAttempts is the total attempt budget: the initial call plus one
	// retry for transient failures.
	maxAttempts = 2

	// backoffUnit scales the linear retry delay: backoffUnit * attempt.
	backoffUnit = 500 * time.Millisecond

	invokePath    = "/invoke_agent"
	traceIDHeader = "X-Trace-Id"
)

// Invoker event types.
const (
	EventInvokeStart    observability.EventType = "agent.invoke.start"
	EventInvokeRetry    observability.EventType = "agent.invoke.retry"
	EventInvokeComplete observability.EventType = "agent.invoke.complete"
	EventInvokeError    observability.EventType = "agent.invoke.error"
)

// Option configures an Invoker after construction.
type Option func(*Invoker)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(inv *Invoker) { inv.client = c }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(inv *Invoker) { inv.observer = o }
}

// WithSleep overrides the retry delay function. Test seam; the default is
// a context-aware sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(inv *Invoker) { inv.sleep = sleep }
}

// Invoker calls named remote agents and validates their responses against
// the contract registry. Transient failures are retried once with linear
// backoff; contract violations fail immediately.
type Invoker struct {
	baseURL  string
	client   *http.Client
	registry *Registry
	observer observability.Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewInvoker creates an Invoker against the execution service at baseURL.
func NewInvoker(baseURL string, registry *Registry, opts ...Option) *Invoker {
	inv := &Invoker{
		baseURL:  baseURL,
		client:   &http.Client{},
		registry: registry,
		observer: observability.NoOpObserver{},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke calls the named agent with the given input. The trace id is
// propagated via the X-Trace-Id header for cross-service correlation.
// Fails with ErrUnknownAgent when no contract is registered; otherwise the
// returned error is an *InvokeError wrapping the final cause.
func (inv *Invoker) Invoke(ctx context.Context, agentName string, input map[string]any, traceID string) (*Response, error) {
	contract, err := inv.registry.Get(agentName)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		inv.observer.OnEvent(ctx, observability.Event{
			Type:      EventInvokeStart,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "agent.Invoker",
			TraceID:   traceID,
			Data:      map[string]any{"agent": agentName, "attempt": attempt},
		})

		resp, callErr := inv.call(ctx, agentName, contract, input, traceID)
		if callErr == nil {
			inv.observer.OnEvent(ctx, observability.Event{
				Type:      EventInvokeComplete,
				Level:     observability.LevelInfo,
				Timestamp: time.Now(),
				Source:    "agent.Invoker",
				TraceID:   traceID,
				Data:      map[string]any{"agent": agentName, "attempt": attempt},
			})
			return resp, nil
		}

		var transient *TransientError
		retryable := errors.As(callErr, &transient)

		if retryable && attempt < maxAttempts {
			delay := backoffUnit * time.Duration(attempt)
			inv.observer.OnEvent(ctx, observability.Event{
				Type:      EventInvokeRetry,
				Level:     observability.LevelWarning,
				Timestamp: time.Now(),
				Source:    "agent.Invoker",
				TraceID:   traceID,
				Data:      map[string]any{"agent": agentName, "attempt": attempt, "delay_ms": delay.Milliseconds()},
			})
			if err := inv.sleep(ctx, delay); err != nil {
				return nil, &InvokeError{Agent: agentName, Attempts: attempt, Err: err}
			}
			continue
		}

		inv.observer.OnEvent(ctx, observability.Event{
			Type:      EventInvokeError,
			Level:     observability.LevelError,
			Timestamp: time.Now(),
			Source:    "agent.Invoker",
			TraceID:   traceID,
			Data:      map[string]any{"agent": agentName, "attempts": attempt, "error": callErr.Error()},
		})
		return nil, &InvokeError{Agent: agentName, Attempts: attempt, Err: callErr}
	}
}

// call performs one attempt: POST, decode, validate.
func (inv *Invoker) call(ctx context.Context, agentName string, contract Contract, input map[string]any, traceID string) (*Response, error) {
	body, err := json.Marshal(Request{AgentName: agentName, InputData: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request for %s: %w", agentName, err)
	}

	ctx, cancel := context.WithTimeout(ctx, InvokeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.baseURL+invokePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", agentName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(traceIDHeader, traceID)

	httpResp, err := inv.client.Do(req)
	if err != nil {
		// Timeout or connection-level failure: no response was received.
		return nil, &TransientError{Agent: agentName, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransientError{Agent: agentName, Err: err}
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &TransientError{
			Agent: agentName,
			Err:   fmt.Errorf("execution service returned %d", httpResp.StatusCode),
		}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execution service returned %d for %s", httpResp.StatusCode, agentName)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ContractError{Agent: agentName, Err: fmt.Errorf("undecodable response body: %w", err)}
	}

	payload := resp.OutputData
	if contract.WholeResponse {
		payload = raw
	}
	if err := contract.Validate(payload); err != nil {
		return nil, &ContractError{Agent: agentName, Err: err}
	}

	return &resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
