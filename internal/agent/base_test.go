package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/skein-dev/skein/internal/memory"
	"github.com/skein-dev/skein/pkg/models"
)

// stubDelegate is a deterministic reasoning delegate for tests.
type stubDelegate struct {
	result      map[string]interface{}
	err         error
	calls       int
	lastInstr   string
	lastContext map[string]interface{}
}

func (d *stubDelegate) Reason(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error) {
	d.calls++
	d.lastInstr = instruction
	d.lastContext = taskContext
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func newTestAgent(t *testing.T, delegate Delegate) (*BaseAgent, *memory.Store) {
	t.Helper()
	mem := memory.NewStore()
	a, err := NewBase(Config{
		ID:       "test-generator",
		Summary:  "generates tests",
		Skills:   []string{"unit-tests"},
		Delegate: delegate,
		Memory:   mem,
	})
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return a, mem
}

func TestNewBase_Validation(t *testing.T) {
	mem := memory.NewStore()
	delegate := &stubDelegate{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing id", Config{Delegate: delegate, Memory: mem}},
		{"missing delegate", Config{ID: "a", Memory: mem}},
		{"missing memory", Config{ID: "a", Delegate: delegate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBase(tt.cfg); err == nil {
				t.Error("NewBase should reject the config")
			}
		})
	}
}

func TestBaseAgent_Describe(t *testing.T) {
	a, _ := newTestAgent(t, &stubDelegate{})
	cap := a.Describe()
	if cap.ID != "test-generator" {
		t.Errorf("Capability.ID = %q, want %q", cap.ID, "test-generator")
	}
	if cap.Summary != "generates tests" {
		t.Errorf("Capability.Summary = %q", cap.Summary)
	}
	if len(cap.Skills) != 1 || cap.Skills[0] != "unit-tests" {
		t.Errorf("Capability.Skills = %v", cap.Skills)
	}
}

func TestBaseAgent_ExecuteUsesInstruction(t *testing.T) {
	delegate := &stubDelegate{result: map[string]interface{}{"ok": true}}
	a, _ := newTestAgent(t, delegate)

	task := models.NewTask("generate", map[string]interface{}{
		"instruction": "Write unit tests for the parser",
		"path":        "./parser",
	})

	result, err := a.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["ok"] != true {
		t.Errorf("result = %v", result)
	}
	if delegate.lastInstr != "Write unit tests for the parser" {
		t.Errorf("instruction = %q", delegate.lastInstr)
	}
	if delegate.lastContext["path"] != "./parser" {
		t.Error("task context should pass through to the delegate")
	}
}

func TestBaseAgent_ExecuteFallsBackToKind(t *testing.T) {
	delegate := &stubDelegate{result: map[string]interface{}{}}
	a, _ := newTestAgent(t, delegate)

	task := models.NewTask("coverage-analysis", nil)
	if _, err := a.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if delegate.lastInstr != "Execute coverage-analysis task" {
		t.Errorf("instruction = %q", delegate.lastInstr)
	}
}

func TestBaseAgent_ExecuteWrapsDelegateFailure(t *testing.T) {
	cause := errors.New("model overloaded")
	a, _ := newTestAgent(t, &stubDelegate{err: cause})

	task := models.NewTask("generate", nil)
	_, err := a.Execute(context.Background(), task)

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want *ExecutionError", err)
	}
	if execErr.AgentID != "test-generator" {
		t.Errorf("AgentID = %q", execErr.AgentID)
	}
	if execErr.TaskID != task.ID {
		t.Errorf("TaskID = %q, want %q", execErr.TaskID, task.ID)
	}
	if !errors.Is(err, cause) {
		t.Error("ExecutionError should wrap the original cause")
	}
}

func TestBaseAgent_PostExecutionPersistsResult(t *testing.T) {
	a, mem := newTestAgent(t, &stubDelegate{})
	task := models.NewTask("generate", nil)
	result := map[string]interface{}{"tests": 7}

	a.PostExecution(context.Background(), task, result)

	key := "skein/test-generator/tasks/" + task.ID + "/result"
	v, ok := mem.Retrieve(key)
	if !ok {
		t.Fatalf("result not stored under %s", key)
	}
	if m := v.(map[string]interface{}); m["tests"] != 7 {
		t.Errorf("stored result = %v", v)
	}

	snap := a.Metrics()
	if snap.TasksCompleted != 1 {
		t.Errorf("TasksCompleted = %d, want 1", snap.TasksCompleted)
	}
}

func TestBaseAgent_PostExecutionLearning(t *testing.T) {
	mem := memory.NewStore()
	a, err := NewBase(Config{
		ID:             "gen",
		Delegate:       &stubDelegate{},
		Memory:         mem,
		EnableLearning: true,
	})
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}

	task := models.NewTask("generate", map[string]interface{}{"x": 1})
	a.PostExecution(context.Background(), task, map[string]interface{}{"ok": true})

	matches, err := mem.SearchPartition(PartitionLearning, "skein/gen/learning/trajectories/")
	if err != nil {
		t.Fatalf("SearchPartition: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("trajectory count = %d, want 1", len(matches))
	}
}

func TestBaseAgent_HandleErrorPersistsError(t *testing.T) {
	a, mem := newTestAgent(t, &stubDelegate{})
	task := models.NewTask("generate", nil)

	a.HandleError(context.Background(), task, errors.New("delegate exploded"))

	key := "skein/test-generator/tasks/" + task.ID + "/error"
	v, ok := mem.Retrieve(key)
	if !ok {
		t.Fatalf("error not stored under %s", key)
	}
	m := v.(map[string]interface{})
	if m["error"] != "delegate exploded" {
		t.Errorf("stored error = %v", m["error"])
	}

	if snap := a.Metrics(); snap.TasksFailed != 1 {
		t.Errorf("TasksFailed = %d, want 1", snap.TasksFailed)
	}
}

func TestBaseAgent_LearnedPatterns(t *testing.T) {
	a, _ := newTestAgent(t, &stubDelegate{})

	a.StoreLearnedPattern("table-tests", map[string]interface{}{"hint": "prefer table tests"})
	a.StoreLearnedPattern("fake-clock", map[string]interface{}{"hint": "inject clocks"})

	patterns, err := a.LearnedPatterns()
	if err != nil {
		t.Fatalf("LearnedPatterns: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("pattern count = %d, want 2", len(patterns))
	}
	if _, ok := patterns["skein/patterns/test-generator/table-tests"]; !ok {
		t.Error("missing table-tests pattern key")
	}

	if snap := a.Metrics(); snap.PatternsLearned != 2 {
		t.Errorf("PatternsLearned = %d, want 2", snap.PatternsLearned)
	}
}

func TestBaseAgent_LearnedPatternsAreScoped(t *testing.T) {
	mem := memory.NewStore()
	a, _ := NewBase(Config{ID: "a", Delegate: &stubDelegate{}, Memory: mem})
	b, _ := NewBase(Config{ID: "b", Delegate: &stubDelegate{}, Memory: mem})

	a.StoreLearnedPattern("p", 1)
	b.StoreLearnedPattern("p", 2)

	patterns, err := a.LearnedPatterns()
	if err != nil {
		t.Fatalf("LearnedPatterns: %v", err)
	}
	if len(patterns) != 1 {
		t.Errorf("agent a sees %d patterns, want only its own", len(patterns))
	}
}

func TestBaseAgent_StoreResultNamespacing(t *testing.T) {
	a, mem := newTestAgent(t, &stubDelegate{})
	a.StoreResult("coverage/latest", 0.81, memory.StoreOptions{})

	if _, ok := mem.Retrieve("skein/test-generator/coverage/latest"); !ok {
		t.Error("StoreResult should prefix keys with namespace and agent id")
	}
}

func TestDelegateFunc(t *testing.T) {
	var d Delegate = DelegateFunc(func(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"echo": instruction}, nil
	})
	result, err := d.Reason(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Reason: %v", err)
	}
	if result["echo"] != "hi" {
		t.Errorf("result = %v", result)
	}
}
