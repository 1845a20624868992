package agent

import "fmt"

// ExecutionError is the opaque failure surfaced when an agent cannot
// produce a result. The wrapped cause (for example a reasoning backend
// failure) is reported but never interpreted by the orchestration layers.
type ExecutionError struct {
	// AgentID is the agent that failed.
	AgentID string
	// TaskID is the task being executed.
	TaskID string
	// Err is the original cause.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s: task %s failed: %v", e.AgentID, e.TaskID, e.Err)
}

// Unwrap returns the original cause.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
