// Package agent defines the capability contract every fleet agent
// implements, plus the BaseAgent that wires an injected reasoning
// delegate to the shared coordination store.
package agent

import (
	"context"

	"github.com/skein-dev/skein/pkg/models"
)

// Capability is the static self-description of an agent, used for
// registry introspection only.
type Capability struct {
	// ID is the agent's unique identifier within the fleet.
	ID string `json:"id"`
	// Summary describes what the agent does.
	Summary string `json:"summary"`
	// Skills lists the skills the agent advertises.
	Skills []string `json:"skills,omitempty"`
}

// Agent is the execution contract the orchestrator dispatches against.
// The hooks are invoked by the orchestrator around Execute, never by the
// agent itself.
type Agent interface {
	// ID returns the agent's unique identifier.
	ID() string
	// Describe returns the static capability summary.
	Describe() Capability
	// Execute produces a result for the task, or an *ExecutionError
	// carrying the original cause. The orchestrator treats the cause as
	// opaque.
	Execute(ctx context.Context, task *models.Task) (map[string]interface{}, error)
	// PreExecution is an observation point before Execute. It must not
	// mutate task state.
	PreExecution(ctx context.Context, task *models.Task)
	// PostExecution records a completed task and persists its result.
	// It is best-effort: its side effects never fail the task.
	PostExecution(ctx context.Context, task *models.Task, result map[string]interface{})
	// HandleError records a failed task and persists the error so fleet
	// status can be reconstructed after a crash.
	HandleError(ctx context.Context, task *models.Task, err error)
	// Metrics returns the agent's accumulated execution metrics.
	Metrics() MetricsSnapshot
}

// WorkerOutcome is one worker's contribution to a fan-in synthesis.
// A failed worker is carried through as a marker, never dropped, so the
// coordinator can report partial results.
type WorkerOutcome struct {
	// AgentID is the worker that produced (or failed to produce) a result.
	AgentID string `json:"agent_id"`
	// Result is the worker's output. Nil when the worker failed.
	Result map[string]interface{} `json:"result,omitempty"`
	// Error is the failure marker. Empty on success.
	Error string `json:"error,omitempty"`
}

// Coordinator is the extra capability a fan-out/fan-in coordinator agent
// provides: decomposing a context into subtasks and synthesizing worker
// outcomes into a final answer.
type Coordinator interface {
	Agent
	// Decompose splits the context into n subtask descriptors, one per
	// worker.
	Decompose(ctx context.Context, taskContext map[string]interface{}, n int) ([]map[string]interface{}, error)
	// Synthesize combines subtasks and worker outcomes (including failure
	// markers) into a final result.
	Synthesize(ctx context.Context, subtasks []map[string]interface{}, outcomes []WorkerOutcome) (map[string]interface{}, error)
}

// Delegate is the opaque content-generation capability injected into an
// agent at construction time. The orchestrator never sees it; tests
// substitute a deterministic implementation.
type Delegate interface {
	// Reason turns an instruction plus context into a structured result.
	Reason(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error)
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error)

// Reason implements Delegate.
func (f DelegateFunc) Reason(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, instruction, taskContext)
}
