package models

import "fmt"

// StateError reports an invalid task state transition. It signals a
// programming error in the caller and is never swallowed by the
// orchestration layers.
type StateError struct {
	// TaskID is the task on which the transition was attempted.
	TaskID string
	// From is the state the task was in.
	From TaskState
	// To is the state the transition targeted.
	To TaskState
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}
