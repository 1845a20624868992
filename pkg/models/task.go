// Package models defines the core value objects shared across skein.
package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the current state of a task.
type TaskState string

const (
	// TaskStatePending indicates the task has not been dispatched.
	TaskStatePending TaskState = "pending"
	// TaskStateInProgress indicates an agent is working on the task.
	TaskStateInProgress TaskState = "in_progress"
	// TaskStateCompleted indicates the task finished with a result.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed indicates the task finished with an error.
	TaskStateFailed TaskState = "failed"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStatePending, TaskStateInProgress, TaskStateCompleted, TaskStateFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are permitted.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateFailed
}

// Task represents a single-attempt unit of work dispatched to one agent.
// A task is owned by the orchestrator for the duration of one dispatch;
// retry is the caller's (or the parallel executor's) responsibility and
// always uses a fresh task.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Kind is a caller-chosen tag describing the work.
	Kind string `json:"kind"`
	// Context is the opaque payload the agent interprets. Callers and
	// agents privately agree on its shape.
	Context map[string]interface{} `json:"context,omitempty"`
	// State is the current lifecycle state.
	State TaskState `json:"state"`
	// Result holds the agent's output once the task completes.
	Result map[string]interface{} `json:"result,omitempty"`
	// Error contains the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// AgentID is the agent the task was dispatched to.
	AgentID string `json:"agent_id,omitempty"`
	// CreatedAt is when the task was created. Immutable.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task entered in_progress.
	StartedAt time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// mu guards state transitions.
	mu sync.Mutex
}

// NewTask creates a pending task with a generated ID.
func NewTask(kind string, context map[string]interface{}) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Context:   context,
		State:     TaskStatePending,
		CreatedAt: time.Now(),
	}
}

// MarkInProgress transitions the task from pending to in_progress and
// records the executing agent. Any other starting state returns a
// *StateError.
func (t *Task) MarkInProgress(agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TaskStatePending {
		return &StateError{TaskID: t.ID, From: t.State, To: TaskStateInProgress}
	}
	t.State = TaskStateInProgress
	t.AgentID = agentID
	t.StartedAt = time.Now()
	return nil
}

// MarkCompleted transitions the task from in_progress to completed and
// records the result. Result and Error are mutually exclusive.
func (t *Task) MarkCompleted(result map[string]interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TaskStateInProgress {
		return &StateError{TaskID: t.ID, From: t.State, To: TaskStateCompleted}
	}
	now := time.Now()
	t.State = TaskStateCompleted
	t.Result = result
	t.CompletedAt = &now
	return nil
}

// MarkFailed transitions the task from in_progress to failed and records
// the error message.
func (t *Task) MarkFailed(errorMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State != TaskStateInProgress {
		return &StateError{TaskID: t.ID, From: t.State, To: TaskStateFailed}
	}
	now := time.Now()
	t.State = TaskStateFailed
	t.Error = errorMsg
	t.CompletedAt = &now
	return nil
}

// CurrentState returns the task state under the transition lock.
func (t *Task) CurrentState() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}
