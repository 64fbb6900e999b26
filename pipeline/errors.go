package pipeline

import "fmt"

// StageError reports which stage aborted the pipeline and why. Remaining
// stages are never executed after a failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
