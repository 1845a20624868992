package agent

import (
	"context"
	"fmt"
)

// Decompose asks the delegate to split the context into n subtask
// descriptors. The delegate must return a "subtasks" list of objects;
// anything else is a decomposition failure.
func (a *BaseAgent) Decompose(ctx context.Context, taskContext map[string]interface{}, n int) ([]map[string]interface{}, error) {
	enriched := make(map[string]interface{}, len(taskContext)+1)
	for k, v := range taskContext {
		enriched[k] = v
	}
	enriched["subtask_count"] = n

	instruction := fmt.Sprintf("Decompose this task into %d parallel subtasks, one per worker", n)
	result, err := a.delegate.Reason(ctx, instruction, enriched)
	if err != nil {
		return nil, &ExecutionError{AgentID: a.id, TaskID: "decompose", Err: err}
	}

	raw, ok := result["subtasks"]
	if !ok {
		return nil, fmt.Errorf("agent %s: decomposition result has no subtasks", a.id)
	}

	subtasks, err := toSubtaskList(raw)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.id, err)
	}
	return subtasks, nil
}

// toSubtaskList normalizes the delegate's subtask payload.
func toSubtaskList(raw interface{}) ([]map[string]interface{}, error) {
	switch v := raw.(type) {
	case []map[string]interface{}:
		return v, nil
	case []interface{}:
		subtasks := make([]map[string]interface{}, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("subtask %d is %T, want an object", i, elem)
			}
			subtasks = append(subtasks, m)
		}
		return subtasks, nil
	default:
		return nil, fmt.Errorf("subtasks payload is %T, want a list", raw)
	}
}

// Synthesize asks the delegate to combine subtasks and worker outcomes
// (including failure markers) into a final report.
func (a *BaseAgent) Synthesize(ctx context.Context, subtasks []map[string]interface{}, outcomes []WorkerOutcome) (map[string]interface{}, error) {
	workerResults := make([]interface{}, len(outcomes))
	for i, o := range outcomes {
		entry := map[string]interface{}{"agent_id": o.AgentID}
		if o.Error != "" {
			entry["error"] = o.Error
		} else {
			entry["result"] = o.Result
		}
		workerResults[i] = entry
	}

	subtaskList := make([]interface{}, len(subtasks))
	for i, st := range subtasks {
		subtaskList[i] = st
	}

	result, err := a.delegate.Reason(ctx, "Synthesize worker results into a final report", map[string]interface{}{
		"subtasks":       subtaskList,
		"worker_results": workerResults,
	})
	if err != nil {
		return nil, &ExecutionError{AgentID: a.id, TaskID: "synthesize", Err: err}
	}
	return result, nil
}
