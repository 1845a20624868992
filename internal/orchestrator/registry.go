// Package orchestrator coordinates fleet agents through single,
// pipeline, parallel and fan-out/fan-in dispatch.
package orchestrator

import (
	"log"
	"sort"
	"sync"

	"github.com/skein-dev/skein/internal/agent"
)

// Registry manages the fleet's agents. It provides thread-safe
// registration and lookup.
type Registry struct {
	// agents maps agent IDs to agent instances.
	agents map[string]agent.Agent
	// mu protects agents.
	mu sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]agent.Agent)}
}

// Register adds an agent to the registry. Re-registering an existing id
// replaces the previous agent; the replacement is logged because it is
// usually a configuration mistake.
func (r *Registry) Register(a agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; exists {
		log.Printf("[registry] replacing agent %s", a.ID())
	}
	r.agents[a.ID()] = a
}

// Get retrieves an agent by id.
func (r *Registry) Get(agentID string) (agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, &NotFoundError{AgentID: agentID}
	}
	return a, nil
}

// IDs returns the registered agent ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns all registered agents, ordered by id.
func (r *Registry) All() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	agents := make([]agent.Agent, 0, len(ids))
	for _, id := range ids {
		agents = append(agents, r.agents[id])
	}
	return agents
}

// Capabilities returns the capability summaries of all registered
// agents, ordered by id.
func (r *Registry) Capabilities() []agent.Capability {
	all := r.All()
	caps := make([]agent.Capability, 0, len(all))
	for _, a := range all {
		caps = append(caps, a.Describe())
	}
	return caps
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
