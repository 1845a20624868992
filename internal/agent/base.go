package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/pkg/models"
)

// DefaultNamespace prefixes every coordination-store key an agent writes.
const DefaultNamespace = "skein"

// Partition names used by agent hooks.
const (
	PartitionResults  = "agent_results"
	PartitionErrors   = "errors"
	PartitionPatterns = "patterns"
	PartitionLearning = "learning"
)

// Retention defaults for hook writes.
const (
	// DefaultResultTTL bounds how long task results stay readable.
	DefaultResultTTL = 24 * time.Hour
	// DefaultErrorTTL keeps failure records around long enough for
	// post-crash inspection.
	DefaultErrorTTL = 7 * 24 * time.Hour
	// DefaultTrajectoryTTL keeps learning trajectories for later mining.
	DefaultTrajectoryTTL = 30 * 24 * time.Hour
)

// Config describes a BaseAgent.
type Config struct {
	// ID is the agent's unique fleet identifier, e.g. "test-generator".
	ID string
	// Summary describes the agent for registry introspection.
	Summary string
	// Skills lists the agent's advertised skills.
	Skills []string
	// Delegate is the injected reasoning capability. Required.
	Delegate Delegate
	// Memory is the shared coordination store. Required.
	Memory *memory.Store
	// EnableLearning turns on trajectory capture in PostExecution.
	EnableLearning bool
	// Namespace overrides DefaultNamespace for all store keys.
	Namespace string
	// ResultTTL, ErrorTTL and TrajectoryTTL override the retention
	// defaults when positive.
	ResultTTL     time.Duration
	ErrorTTL      time.Duration
	TrajectoryTTL time.Duration
}

// BaseAgent implements the Agent contract on top of an injected Delegate.
// Specialized agents embed it and override Execute when the default
// instruction plumbing is not enough.
type BaseAgent struct {
	id             string
	summary        string
	skills         []string
	delegate       Delegate
	mem            *memory.Store
	enableLearning bool
	namespace      string
	resultTTL      time.Duration
	errorTTL       time.Duration
	trajectoryTTL  time.Duration
	metrics        Metrics
}

// Compile-time verification that BaseAgent satisfies the contracts.
var (
	_ Agent       = (*BaseAgent)(nil)
	_ Coordinator = (*BaseAgent)(nil)
)

// NewBase creates a BaseAgent from the config.
func NewBase(cfg Config) (*BaseAgent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("new agent: ID is required")
	}
	if cfg.Delegate == nil {
		return nil, fmt.Errorf("new agent %s: Delegate is required", cfg.ID)
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("new agent %s: Memory is required", cfg.ID)
	}

	a := &BaseAgent{
		id:             cfg.ID,
		summary:        cfg.Summary,
		skills:         cfg.Skills,
		delegate:       cfg.Delegate,
		mem:            cfg.Memory,
		enableLearning: cfg.EnableLearning,
		namespace:      cfg.Namespace,
		resultTTL:      cfg.ResultTTL,
		errorTTL:       cfg.ErrorTTL,
		trajectoryTTL:  cfg.TrajectoryTTL,
	}
	if a.namespace == "" {
		a.namespace = DefaultNamespace
	}
	if a.resultTTL <= 0 {
		a.resultTTL = DefaultResultTTL
	}
	if a.errorTTL <= 0 {
		a.errorTTL = DefaultErrorTTL
	}
	if a.trajectoryTTL <= 0 {
		a.trajectoryTTL = DefaultTrajectoryTTL
	}
	return a, nil
}

// ID returns the agent's unique identifier.
func (a *BaseAgent) ID() string {
	return a.id
}

// Describe returns the static capability summary.
func (a *BaseAgent) Describe() Capability {
	return Capability{ID: a.id, Summary: a.summary, Skills: a.skills}
}

// Metrics returns a snapshot of the agent's counters.
func (a *BaseAgent) Metrics() MetricsSnapshot {
	snap := a.metrics.Snapshot()
	snap.AgentID = a.id
	snap.Skills = a.skills
	return snap
}

// AddCost accumulates reasoning cost reported by the routing collaborator.
func (a *BaseAgent) AddCost(cost float64) {
	a.metrics.AddCost(cost)
}

// Execute derives an instruction from the task and runs it through the
// delegate. The instruction comes from task.Context["instruction"],
// falling back to the task kind; the rest of the context passes through
// verbatim.
func (a *BaseAgent) Execute(ctx context.Context, task *models.Task) (map[string]interface{}, error) {
	instruction := a.instructionFor(task)

	result, err := a.delegate.Reason(ctx, instruction, task.Context)
	if err != nil {
		return nil, &ExecutionError{AgentID: a.id, TaskID: task.ID, Err: err}
	}
	return result, nil
}

// instructionFor extracts the instruction text for a task.
func (a *BaseAgent) instructionFor(task *models.Task) string {
	if task.Context != nil {
		if s, ok := task.Context["instruction"].(string); ok && s != "" {
			return s
		}
	}
	if task.Kind != "" {
		return fmt.Sprintf("Execute %s task", task.Kind)
	}
	return "Execute task"
}

// PreExecution logs the dispatch. It is an observation point only.
func (a *BaseAgent) PreExecution(ctx context.Context, task *models.Task) {
	log.Printf("[agent %s] starting task %s (%s)", a.id, task.ID, task.Kind)
}

// PostExecution records the completion and persists the result under
// {namespace}/{agent}/tasks/{task}/result with a bounded TTL. When
// learning is enabled, the full trajectory lands in the learning
// partition with a longer TTL. Both writes are best-effort.
func (a *BaseAgent) PostExecution(ctx context.Context, task *models.Task, result map[string]interface{}) {
	a.metrics.RecordCompleted()
	log.Printf("[agent %s] completed task %s (%s)", a.id, task.ID, task.Kind)

	a.mem.Store(
		fmt.Sprintf("%s/%s/tasks/%s/result", a.namespace, a.id, task.ID),
		result,
		memory.StoreOptions{TTL: a.resultTTL, Partition: PartitionResults},
	)

	if a.enableLearning {
		trajectory := map[string]interface{}{
			"kind":    task.Kind,
			"context": task.Context,
			"result":  result,
			"success": true,
		}
		a.mem.Store(
			fmt.Sprintf("%s/%s/learning/trajectories/%s", a.namespace, a.id, task.ID),
			trajectory,
			memory.StoreOptions{TTL: a.trajectoryTTL, Partition: PartitionLearning},
		)
	}
}

// HandleError records the failure and persists it under
// {namespace}/{agent}/tasks/{task}/error so a caller inspecting fleet
// status after a crash can reconstruct what failed and why.
func (a *BaseAgent) HandleError(ctx context.Context, task *models.Task, err error) {
	a.metrics.RecordFailed()
	log.Printf("[agent %s] task %s failed: %v", a.id, task.ID, err)

	a.mem.Store(
		fmt.Sprintf("%s/%s/tasks/%s/error", a.namespace, a.id, task.ID),
		map[string]interface{}{
			"error":   err.Error(),
			"kind":    task.Kind,
			"context": task.Context,
		},
		memory.StoreOptions{TTL: a.errorTTL, Partition: PartitionErrors},
	)
}

// StoreResult writes a value under the agent's namespace:
// {namespace}/{agent}/{key}.
func (a *BaseAgent) StoreResult(key string, value interface{}, opts memory.StoreOptions) {
	if opts.Partition == "" {
		opts.Partition = PartitionResults
	}
	a.mem.Store(fmt.Sprintf("%s/%s/%s", a.namespace, a.id, key), value, opts)
}

// RetrieveContext reads a fully-qualified key from the shared store.
func (a *BaseAgent) RetrieveContext(key string) (interface{}, bool) {
	return a.mem.Retrieve(key)
}

// SearchMemory runs a regex search over the shared store.
func (a *BaseAgent) SearchMemory(pattern string) (map[string]interface{}, error) {
	return a.mem.Search(pattern)
}

// StoreLearnedPattern saves a reusable pattern under
// {namespace}/patterns/{agent}/{name} and bumps the learned counter.
// Patterns have no TTL; they persist until explicitly replaced.
func (a *BaseAgent) StoreLearnedPattern(name string, data interface{}) {
	a.mem.Store(
		fmt.Sprintf("%s/patterns/%s/%s", a.namespace, a.id, name),
		data,
		memory.StoreOptions{Partition: PartitionPatterns},
	)
	a.metrics.RecordPattern()
}

// LearnedPatterns returns every pattern this agent has stored.
func (a *BaseAgent) LearnedPatterns() (map[string]interface{}, error) {
	return a.mem.Search(fmt.Sprintf("^%s/patterns/%s/", a.namespace, a.id))
}
