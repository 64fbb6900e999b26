package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the contract registry.
var (
	ErrUnknownAgent   = errors.New("no contract registered for agent")
	ErrAgentExists    = errors.New("agent already registered")
	ErrEmptyAgentName = errors.New("agent name is empty")
)

// ContractError reports a response that failed its agent's declared schema.
// A contract violation is a hard failure for the call and is never retried.
type ContractError struct {
	Agent string
	Err   error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("agent %s response failed schema validation: %v", e.Agent, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// TransientError marks a failure eligible for retry: request timeout,
// HTTP 5xx, or no response received at all.
type TransientError struct {
	Agent string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("agent %s transient failure: %v", e.Agent, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// InvokeError is the terminal failure of an agent call after validation
// failed or retries were exhausted. It carries the agent name and the
// number of attempts made.
type InvokeError struct {
	Agent    string
	Attempts int
	Err      error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("agent %s failed after %d attempt(s): %v", e.Agent, e.Attempts, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }
