package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type stubTool struct {
	name   string
	result ToolResult
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub tool " + t.name }
func (t *stubTool) InputSchema() map[string]any {
	return map[string]any{"type": "object"}
}
func (t *stubTool) Execute(ctx context.Context, toolCtx *ToolContext, input map[string]any) (ToolResult, error) {
	return t.result, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	tool := &stubTool{name: "listTree"}

	if err := r.Register(tool); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&stubTool{name: "listTree"}); err == nil {
		t.Error("expected error on duplicate registration")
	}
	if got := r.Get("listTree"); got != tool {
		t.Error("Get returned wrong tool")
	}
	if r.Get("missing") != nil {
		t.Error("Get should return nil for unknown tool")
	}
	if !r.Has("listTree") || r.Has("missing") {
		t.Error("Has is inconsistent with registration")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&stubTool{name: "readFile"})
	r.MustRegister(&stubTool{name: "grep"})
	r.MustRegister(&stubTool{name: "listTree"})

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	want := []string{"grep", "listTree", "readFile"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d].Name = %q, want %q", i, defs[i].Name, name)
		}
	}
}

func TestEmptyRegistryAdvertisesNothing(t *testing.T) {
	r := NewRegistry()
	if defs := r.Definitions(); len(defs) != 0 {
		t.Errorf("expected no definitions, got %d", len(defs))
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	result, err := r.Dispatch(context.Background(), &ToolContext{}, "deleteRepo", nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !result.IsError {
		t.Error("unknown tool should yield an error result")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if !strings.Contains(payload["error"], "Unknown tool: deleteRepo") {
		t.Errorf("payload = %v", payload)
	}
}

func TestDispatchRoutesToTool(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&stubTool{name: "grep", result: NewToolResult(`{"total":0}`)})

	result, err := r.Dispatch(context.Background(), &ToolContext{}, "grep", map[string]any{"pattern": "x"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.IsError || result.Content != `{"total":0}` {
		t.Errorf("unexpected result: %+v", result)
	}
}
