package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/skein-dev/skein/internal/agent"
	"github.com/skein-dev/skein/internal/memory"
)

func newNamedAgent(t *testing.T, mem *memory.Store, id, summary string) agent.Agent {
	t.Helper()
	a, err := agent.NewBase(agent.Config{
		ID:      id,
		Summary: summary,
		Delegate: agent.DelegateFunc(func(ctx context.Context, instruction string, taskContext map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{}, nil
		}),
		Memory: mem,
	})
	if err != nil {
		t.Fatalf("NewBase: %v", err)
	}
	return a
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	mem := memory.NewStore()
	r := NewRegistry()
	r.Register(newNamedAgent(t, mem, "scanner", ""))

	a, err := r.Get("scanner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.ID() != "scanner" {
		t.Errorf("ID = %q", a.ID())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("ghost")

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if notFound.AgentID != "ghost" {
		t.Errorf("AgentID = %q", notFound.AgentID)
	}
}

func TestRegistry_ReplaceIsLastWriteWins(t *testing.T) {
	mem := memory.NewStore()
	r := NewRegistry()
	r.Register(newNamedAgent(t, mem, "scanner", "old"))
	r.Register(newNamedAgent(t, mem, "scanner", "new"))

	if r.Count() != 1 {
		t.Fatalf("Count = %d, want 1", r.Count())
	}
	a, err := r.Get("scanner")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Describe().Summary != "new" {
		t.Errorf("Summary = %q, want the replacement", a.Describe().Summary)
	}
}

func TestRegistry_IDsAreSorted(t *testing.T) {
	mem := memory.NewStore()
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Register(newNamedAgent(t, mem, id, ""))
	}

	want := []string{"a", "b", "c"}
	if got := r.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestRegistry_Capabilities(t *testing.T) {
	mem := memory.NewStore()
	r := NewRegistry()
	r.Register(newNamedAgent(t, mem, "b", "second"))
	r.Register(newNamedAgent(t, mem, "a", "first"))

	caps := r.Capabilities()
	if len(caps) != 2 {
		t.Fatalf("len(caps) = %d, want 2", len(caps))
	}
	if caps[0].ID != "a" || caps[0].Summary != "first" {
		t.Errorf("caps[0] = %+v", caps[0])
	}
}
