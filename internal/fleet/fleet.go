// Package fleet is the high-level entry point for running a skein
// fleet: it owns the coordination store, the model router and the
// orchestrator, and adds snapshot persistence across restarts.
package fleet

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/skein-dev/skein/internal/agent"
	"github.com/skein-dev/skein/internal/executor"
	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/internal/orchestrator"
	"github.com/skein-dev/skein/internal/router"
	"github.com/skein-dev/skein/pkg/models"
)

// State is the exportable fleet state.
type State struct {
	// Memory is the coordination store snapshot.
	Memory *memory.Snapshot `json:"memory"`
	// RouterStats captures routing usage at export time.
	RouterStats router.Stats `json:"router_stats"`
	// OrchestratorMetrics captures the cumulative counters at export
	// time.
	OrchestratorMetrics orchestrator.Metrics `json:"orchestrator_metrics"`
}

// Fleet wires the core components together behind one API.
type Fleet struct {
	mem  *memory.Store
	rtr  router.Router
	orch *orchestrator.Orchestrator

	// snapshots persists the store across restarts when configured.
	snapshots *memory.SnapshotStore

	mu          sync.Mutex
	initialized bool
}

// Option configures a Fleet.
type Option func(*config)

type config struct {
	enableRouting  bool
	executorPolicy *executor.Policy
	snapshots      *memory.SnapshotStore
	router         router.Router
}

// WithRouting enables or disables tier-based model routing.
func WithRouting(enabled bool) Option {
	return func(c *config) { c.enableRouting = enabled }
}

// WithExecutorPolicy overrides the parallel dispatch policy.
func WithExecutorPolicy(p executor.Policy) Option {
	return func(c *config) { c.executorPolicy = &p }
}

// WithSnapshotStore enables state persistence through the given store.
// The fleet takes ownership and closes it on Close.
func WithSnapshotStore(s *memory.SnapshotStore) Option {
	return func(c *config) { c.snapshots = s }
}

// WithRouter injects a custom router implementation.
func WithRouter(r router.Router) Option {
	return func(c *config) { c.router = r }
}

// New creates a Fleet. Call Initialize (or any dispatch method, which
// initializes lazily) before use.
func New(opts ...Option) *Fleet {
	cfg := config{enableRouting: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	rtr := cfg.router
	if rtr == nil {
		rtr = router.NewCostTracker(cfg.enableRouting)
	}

	mem := memory.NewStore()

	var orchOpts []orchestrator.Option
	if cfg.executorPolicy != nil {
		orchOpts = append(orchOpts, orchestrator.WithExecutorPolicy(*cfg.executorPolicy))
	}

	return &Fleet{
		mem:       mem,
		rtr:       rtr,
		orch:      orchestrator.New(mem, rtr, orchOpts...),
		snapshots: cfg.snapshots,
	}
}

// Initialize prepares the fleet for dispatch, restoring persisted store
// state when a snapshot store is configured. Calling it twice is a
// no-op.
func (f *Fleet) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		log.Printf("[fleet] already initialized")
		return nil
	}

	if f.snapshots != nil {
		snap, err := f.snapshots.Load()
		if err != nil {
			return fmt.Errorf("fleet initialize: restore snapshot: %w", err)
		}
		if len(snap.Entries) > 0 {
			f.mem.Import(snap)
			log.Printf("[fleet] restored %d entries from %s", len(snap.Entries), f.snapshots.Path())
		}
	}

	f.initialized = true
	log.Printf("[fleet] initialization complete")
	return nil
}

// ensureInitialized lazily initializes before a dispatch.
func (f *Fleet) ensureInitialized(ctx context.Context) error {
	f.mu.Lock()
	ready := f.initialized
	f.mu.Unlock()
	if ready {
		return nil
	}
	return f.Initialize(ctx)
}

// RegisterAgent adds an agent to the fleet.
func (f *Fleet) RegisterAgent(a agent.Agent) {
	f.orch.RegisterAgent(a)
}

// Memory exposes the shared coordination store, for agent construction.
func (f *Fleet) Memory() *memory.Store {
	return f.mem
}

// Router exposes the model router, for delegate construction.
func (f *Fleet) Router() router.Router {
	return f.rtr
}

// Orchestrator exposes the underlying orchestrator.
func (f *Fleet) Orchestrator() *orchestrator.Orchestrator {
	return f.orch
}

// Execute runs a single task on one agent.
func (f *Fleet) Execute(ctx context.Context, agentID string, task *models.Task) (map[string]interface{}, error) {
	if err := f.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return f.orch.DispatchSingle(ctx, agentID, task)
}

// ExecutePipeline runs agents sequentially with a shared context.
func (f *Fleet) ExecutePipeline(ctx context.Context, pipeline []string, taskContext map[string]interface{}) (map[string]map[string]interface{}, error) {
	if err := f.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return f.orch.DispatchPipeline(ctx, pipeline, taskContext)
}

// ExecuteParallel runs agents concurrently, paired 1:1 with contexts.
func (f *Fleet) ExecuteParallel(ctx context.Context, agentIDs []string, taskContexts []map[string]interface{}) ([]orchestrator.ParallelResult, error) {
	if err := f.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return f.orch.DispatchParallel(ctx, agentIDs, taskContexts)
}

// ExecuteFanOutFanIn runs the decompose, parallel execute, synthesize
// workflow.
func (f *Fleet) ExecuteFanOutFanIn(ctx context.Context, coordinatorID string, workerIDs []string, taskContext map[string]interface{}) (*orchestrator.FanOutResult, error) {
	if err := f.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return f.orch.DispatchFanOutFanIn(ctx, coordinatorID, workerIDs, taskContext)
}

// ExecuteHierarchical runs a commander agent with fleet awareness.
func (f *Fleet) ExecuteHierarchical(ctx context.Context, commanderID string, taskContext map[string]interface{}) (map[string]interface{}, error) {
	if err := f.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	return f.orch.DispatchHierarchical(ctx, commanderID, taskContext)
}

// Status returns the aggregate fleet snapshot.
func (f *Fleet) Status() orchestrator.FleetStatus {
	return f.orch.Status()
}

// ExportState captures the full fleet state for persistence.
func (f *Fleet) ExportState() *State {
	return &State{
		Memory:              f.mem.Export(),
		RouterStats:         f.rtr.Stats(),
		OrchestratorMetrics: f.orch.Metrics(),
	}
}

// ImportState restores the coordination store from an exported state.
// Router and orchestration counters are informational in the export and
// are not restored.
func (f *Fleet) ImportState(state *State) {
	if state == nil || state.Memory == nil {
		return
	}
	f.mem.Import(state.Memory)
	log.Printf("[fleet] state imported: %d entries", len(state.Memory.Entries))
}

// Save persists the current store contents to the snapshot store.
func (f *Fleet) Save() error {
	if f.snapshots == nil {
		return fmt.Errorf("fleet save: no snapshot store configured")
	}
	return f.snapshots.Save(f.mem.Export())
}

// Close flushes state to the snapshot store when configured and
// releases it.
func (f *Fleet) Close() error {
	if f.snapshots == nil {
		return nil
	}
	if err := f.snapshots.Save(f.mem.Export()); err != nil {
		return fmt.Errorf("fleet close: %w", err)
	}
	return f.snapshots.Close()
}
