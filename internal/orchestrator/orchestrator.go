package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/skein-dev/skein/internal/agent"
	"github.com/skein-dev/skein/internal/executor"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/router"
	"github.com/skein-dev/skein/pkg/models"
)

// Metrics is a point-in-time copy of the orchestrator's cumulative
// counters.
type Metrics struct {
	// WorkflowsExecuted counts completed multi-agent workflows.
	WorkflowsExecuted int64 `json:"workflows_executed"`
	// TotalAgentsUsed counts agent invocations across all dispatches.
	TotalAgentsUsed int64 `json:"total_agents_used"`
	// TotalCost is the fleet-wide reasoning spend in dollars, as
	// reported by the router.
	TotalCost float64 `json:"total_cost"`
}

// FleetStatus is a read-only aggregate snapshot of the fleet.
type FleetStatus struct {
	// TotalAgents is the registry size.
	TotalAgents int `json:"total_agents"`
	// Agents maps agent ids to their metric snapshots.
	Agents map[string]agent.MetricsSnapshot `json:"agents"`
	// Orchestration holds the orchestrator's cumulative counters.
	Orchestration Metrics `json:"orchestration_metrics"`
	// Routing holds the router's usage statistics.
	Routing router.Stats `json:"routing_stats"`
	// Memory holds the coordination store statistics.
	Memory memory.Stats `json:"memory_stats"`
}

// ParallelResult is the per-item outcome of a parallel dispatch.
type ParallelResult struct {
	// AgentID is the agent the item was paired with.
	AgentID string `json:"agent_id"`
	// Result is the agent's output. Nil when the item failed.
	Result map[string]interface{} `json:"result,omitempty"`
	// Err is the terminal failure after all retries, nil on success.
	Err error `json:"-"`
	// Attempts is how many attempts the item consumed.
	Attempts int `json:"attempts"`
}

// Failed reports whether the item ended in failure.
func (r ParallelResult) Failed() bool {
	return r.Err != nil
}

// FanOutResult is the three-phase outcome of a fan-out/fan-in dispatch.
type FanOutResult struct {
	// Decomposition holds the coordinator's subtask descriptors.
	Decomposition []map[string]interface{} `json:"decomposition"`
	// WorkerResults holds the per-worker outcomes, including failure
	// markers.
	WorkerResults []ParallelResult `json:"worker_results"`
	// Synthesis is the coordinator's final report.
	Synthesis map[string]interface{} `json:"synthesis"`
}

// Orchestrator owns the agent registry and exposes the dispatch modes.
type Orchestrator struct {
	registry *Registry
	mem      *memory.Store
	router   router.Router
	exec     *executor.Executor

	// mu protects the cumulative counters.
	mu                sync.Mutex
	workflowsExecuted int64
	totalAgentsUsed   int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutorPolicy overrides the parallel dispatch policy.
func WithExecutorPolicy(p executor.Policy) Option {
	return func(o *Orchestrator) {
		o.exec = executor.New(p)
	}
}

// WithRegistry injects a pre-populated registry.
func WithRegistry(r *Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// New creates an Orchestrator over the shared store and router.
func New(mem *memory.Store, rtr router.Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: NewRegistry(),
		mem:      mem,
		router:   rtr,
		exec:     executor.New(executor.DefaultPolicy()),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterAgent adds an agent to the fleet.
func (o *Orchestrator) RegisterAgent(a agent.Agent) {
	o.registry.Register(a)
	log.Printf("[orchestrator] registered agent: %s", a.ID())
}

// Agent retrieves a registered agent by id.
func (o *Orchestrator) Agent(agentID string) (agent.Agent, error) {
	return o.registry.Get(agentID)
}

// Registry exposes the agent registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// DispatchSingle runs one task on one agent, driving the full task
// lifecycle and the agent's hooks. Agent failures are recorded and then
// propagated; callers decide whether to retry or fall back.
func (o *Orchestrator) DispatchSingle(ctx context.Context, agentID string, task *models.Task) (map[string]interface{}, error) {
	a, err := o.registry.Get(agentID)
	if err != nil {
		return nil, err
	}
	return o.runTask(ctx, a, task)
}

// runTask drives a looked-up agent through one task lifecycle.
func (o *Orchestrator) runTask(ctx context.Context, a agent.Agent, task *models.Task) (map[string]interface{}, error) {
	if err := task.MarkInProgress(a.ID()); err != nil {
		return nil, err
	}

	a.PreExecution(ctx, task)

	result, err := a.Execute(ctx, task)
	if err != nil {
		a.HandleError(ctx, task, err)
		if stateErr := task.MarkFailed(err.Error()); stateErr != nil {
			log.Printf("[orchestrator] task %s: %v", task.ID, stateErr)
		}
		return nil, err
	}

	a.PostExecution(ctx, task, result)
	if err := task.MarkCompleted(result); err != nil {
		return nil, err
	}
	return result, nil
}

// DispatchPipeline runs agents strictly in order with a shared context.
// A failure at any stage aborts the remaining stages and surfaces that
// stage's error alongside the results completed so far.
func (o *Orchestrator) DispatchPipeline(ctx context.Context, pipeline []string, taskContext map[string]interface{}) (map[string]map[string]interface{}, error) {
	if len(pipeline) == 0 {
		return nil, fmt.Errorf("dispatch pipeline: no agents given")
	}

	log.Printf("[orchestrator] pipeline: %d stages", len(pipeline))

	results := make(map[string]map[string]interface{}, len(pipeline))
	for _, agentID := range pipeline {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		task := models.NewTask("pipeline", taskContext)
		result, err := o.DispatchSingle(ctx, agentID, task)
		if err != nil {
			return results, fmt.Errorf("pipeline stage %s: %w", agentID, err)
		}
		results[agentID] = result
	}

	o.mu.Lock()
	o.workflowsExecuted++
	o.totalAgentsUsed += int64(len(pipeline))
	o.mu.Unlock()

	return results, nil
}

// DispatchParallel pairs each agent id with its task context 1:1 by
// position and runs the pairs through the bounded executor. Items that
// exhaust their retries yield failure markers at their index; the batch
// itself fails only for programmer errors or a cancelled context. Each
// retry attempt runs a fresh task since a task is single-attempt.
func (o *Orchestrator) DispatchParallel(ctx context.Context, agentIDs []string, taskContexts []map[string]interface{}) ([]ParallelResult, error) {
	if len(agentIDs) != len(taskContexts) {
		return nil, fmt.Errorf("dispatch parallel: %d agents but %d contexts", len(agentIDs), len(taskContexts))
	}

	log.Printf("[orchestrator] parallel: %d agents", len(agentIDs))

	batch, err := o.exec.Run(ctx, len(agentIDs), func(ctx context.Context, i int) (interface{}, error) {
		a, lookupErr := o.registry.Get(agentIDs[i])
		if lookupErr != nil {
			return nil, lookupErr
		}

		taskContext := taskContexts[i]
		kind := "execute"
		if taskContext != nil {
			if s, ok := taskContext["task_type"].(string); ok && s != "" {
				kind = s
			}
		}

		task := models.NewTask(kind, taskContext)
		return o.runTask(ctx, a, task)
	})

	o.mu.Lock()
	o.totalAgentsUsed += int64(len(agentIDs))
	o.mu.Unlock()

	if batch == nil {
		return nil, err
	}

	results := make([]ParallelResult, len(batch.Items))
	for i, item := range batch.Items {
		results[i] = ParallelResult{
			AgentID:  agentIDs[i],
			Err:      item.Err,
			Attempts: item.Attempts,
		}
		if m, ok := item.Value.(map[string]interface{}); ok {
			results[i].Result = m
		}
	}
	return results, err
}

// DispatchFanOutFanIn runs the three-phase fan-out/fan-in protocol:
// the coordinator decomposes the context into one subtask per worker,
// the workers run in parallel, and the coordinator synthesizes a final
// report. A decomposition failure aborts before any worker runs; worker
// failures flow into synthesis as failure markers.
func (o *Orchestrator) DispatchFanOutFanIn(ctx context.Context, coordinatorID string, workerIDs []string, taskContext map[string]interface{}) (*FanOutResult, error) {
	if len(workerIDs) == 0 {
		return nil, fmt.Errorf("fan-out: no workers given")
	}

	a, err := o.registry.Get(coordinatorID)
	if err != nil {
		return nil, err
	}
	coordinator, ok := a.(agent.Coordinator)
	if !ok {
		return nil, fmt.Errorf("fan-out: agent %s cannot coordinate", coordinatorID)
	}

	log.Printf("[orchestrator] fan-out: %s -> %d workers", coordinatorID, len(workerIDs))

	subtasks, err := coordinator.Decompose(ctx, taskContext, len(workerIDs))
	if err != nil {
		return nil, fmt.Errorf("fan-out decomposition: %w", err)
	}
	if len(subtasks) != len(workerIDs) {
		return nil, fmt.Errorf("fan-out decomposition: got %d subtasks for %d workers", len(subtasks), len(workerIDs))
	}

	workerResults, err := o.DispatchParallel(ctx, workerIDs, subtasks)
	if err != nil {
		return nil, fmt.Errorf("fan-out workers: %w", err)
	}

	outcomes := make([]agent.WorkerOutcome, len(workerResults))
	for i, r := range workerResults {
		outcomes[i] = agent.WorkerOutcome{AgentID: r.AgentID, Result: r.Result}
		if r.Err != nil {
			outcomes[i].Error = r.Err.Error()
		}
	}

	synthesis, err := coordinator.Synthesize(ctx, subtasks, outcomes)
	if err != nil {
		return nil, fmt.Errorf("fan-in synthesis: %w", err)
	}

	o.mu.Lock()
	o.workflowsExecuted++
	o.totalAgentsUsed++ // the coordinator; workers are counted by DispatchParallel
	o.mu.Unlock()

	return &FanOutResult{
		Decomposition: subtasks,
		WorkerResults: workerResults,
		Synthesis:     synthesis,
	}, nil
}

// DispatchHierarchical runs a commander agent with the registry's agent
// ids injected into the task context, so the commander can plan around
// the fleet's actual composition.
func (o *Orchestrator) DispatchHierarchical(ctx context.Context, commanderID string, taskContext map[string]interface{}) (map[string]interface{}, error) {
	enriched := make(map[string]interface{}, len(taskContext)+1)
	for k, v := range taskContext {
		enriched[k] = v
	}
	enriched["available_agents"] = o.registry.IDs()

	task := models.NewTask("hierarchical_coordination", enriched)
	return o.DispatchSingle(ctx, commanderID, task)
}

// Metrics copies the orchestrator's cumulative counters. TotalCost
// comes from the router's accumulated usage.
func (o *Orchestrator) Metrics() Metrics {
	o.mu.Lock()
	m := Metrics{
		WorkflowsExecuted: o.workflowsExecuted,
		TotalAgentsUsed:   o.totalAgentsUsed,
	}
	o.mu.Unlock()

	if o.router != nil {
		m.TotalCost = o.router.Stats().TotalCost
	}
	return m
}

// Status aggregates agent metrics, orchestration metrics, routing stats
// and store stats into one snapshot.
func (o *Orchestrator) Status() FleetStatus {
	status := FleetStatus{
		TotalAgents:   o.registry.Count(),
		Agents:        make(map[string]agent.MetricsSnapshot),
		Orchestration: o.Metrics(),
	}
	for _, a := range o.registry.All() {
		status.Agents[a.ID()] = a.Metrics()
	}
	if o.router != nil {
		status.Routing = o.router.Stats()
	}
	if o.mem != nil {
		status.Memory = o.mem.Stats()
	}
	return status
}
