package agent

import "sync"

// MetricsSnapshot is a point-in-time copy of an agent's metrics.
type MetricsSnapshot struct {
	// AgentID identifies the agent the metrics belong to.
	AgentID string `json:"agent_id"`
	// Skills lists the agent's advertised skills.
	Skills []string `json:"skills,omitempty"`
	// TasksCompleted counts successfully completed tasks.
	TasksCompleted int64 `json:"tasks_completed"`
	// TasksFailed counts failed tasks.
	TasksFailed int64 `json:"tasks_failed"`
	// TotalCost is the accumulated reasoning cost in dollars.
	TotalCost float64 `json:"total_cost"`
	// PatternsLearned counts patterns the agent stored.
	PatternsLearned int64 `json:"patterns_learned"`
}

// Metrics accumulates an agent's execution counters. Safe for concurrent
// use.
type Metrics struct {
	mu              sync.Mutex
	tasksCompleted  int64
	tasksFailed     int64
	totalCost       float64
	patternsLearned int64
}

// RecordCompleted increments the completed-task counter.
func (m *Metrics) RecordCompleted() {
	m.mu.Lock()
	m.tasksCompleted++
	m.mu.Unlock()
}

// RecordFailed increments the failed-task counter.
func (m *Metrics) RecordFailed() {
	m.mu.Lock()
	m.tasksFailed++
	m.mu.Unlock()
}

// RecordPattern increments the learned-pattern counter.
func (m *Metrics) RecordPattern() {
	m.mu.Lock()
	m.patternsLearned++
	m.mu.Unlock()
}

// AddCost accumulates reasoning cost in dollars.
func (m *Metrics) AddCost(cost float64) {
	m.mu.Lock()
	m.totalCost += cost
	m.mu.Unlock()
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		TasksCompleted:  m.tasksCompleted,
		TasksFailed:     m.tasksFailed,
		TotalCost:       m.totalCost,
		PatternsLearned: m.patternsLearned,
	}
}
