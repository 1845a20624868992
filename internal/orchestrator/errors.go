package orchestrator

import "fmt"

// NotFoundError reports a registry lookup for an unknown agent. It is
// fatal to the requested dispatch, not to the orchestrator.
type NotFoundError struct {
	// AgentID is the id that was looked up.
	AgentID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent not found: %s", e.AgentID)
}
