package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repo_onboarder/pkg/repofs"
	"repo_onboarder/pkg/tools"
)

func newTestContext(t *testing.T) *tools.ToolContext {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"README.md":    "hello repo\n",
		"src/main.txt": "line one\nline two\nline three\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ws, err := repofs.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return tools.NewToolContext(ws)
}

func execute(t *testing.T, tool tools.Tool, toolCtx *tools.ToolContext, input map[string]any) map[string]any {
	t.Helper()
	result, err := tool.Execute(context.Background(), toolCtx, input)
	if err != nil {
		t.Fatalf("%s execute failed: %v", tool.Name(), err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		t.Fatalf("%s payload is not JSON: %v (%s)", tool.Name(), err, result.Content)
	}
	payload["_is_error"] = result.IsError
	return payload
}

func TestToolRegistration(t *testing.T) {
	r := tools.NewRegistry()
	RegisterAll(r)
	for _, name := range []string{"listTree", "readFile", "grep", "readSnippet"} {
		if !r.Has(name) {
			t.Errorf("tool %s not registered", name)
		}
	}
	if r.Count() != 4 {
		t.Errorf("Count = %d, want 4", r.Count())
	}
}

func TestListTreeTool(t *testing.T) {
	toolCtx := newTestContext(t)
	payload := execute(t, &ListTreeTool{}, toolCtx, map[string]any{"path": "."})

	if payload["_is_error"] == true {
		t.Fatalf("unexpected error payload: %v", payload)
	}
	entries := payload["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if payload["total"] != float64(2) {
		t.Errorf("total = %v, want 2", payload["total"])
	}
	first := entries[0].(map[string]any)
	if first["name"] != "src" || first["type"] != "dir" {
		t.Errorf("entries[0] = %v", first)
	}
}

func TestListTreeToolErrors(t *testing.T) {
	toolCtx := newTestContext(t)

	missing := execute(t, &ListTreeTool{}, toolCtx, map[string]any{"path": "nonexistent"})
	if missing["_is_error"] != true {
		t.Fatal("expected error payload")
	}
	if !strings.Contains(missing["error"].(string), "not found") {
		t.Errorf("error = %v", missing["error"])
	}
	// error payloads still carry the result fields, zeroed
	if entries := missing["entries"].([]any); len(entries) != 0 {
		t.Errorf("error payload entries = %v", entries)
	}

	noPath := execute(t, &ListTreeTool{}, toolCtx, map[string]any{})
	if noPath["_is_error"] != true || !strings.Contains(noPath["error"].(string), "Missing required parameter") {
		t.Errorf("payload = %v", noPath)
	}

	escape := execute(t, &ListTreeTool{}, toolCtx, map[string]any{"path": "../secrets"})
	if escape["_is_error"] != true || !strings.Contains(escape["error"].(string), "outside the repository") {
		t.Errorf("payload = %v", escape)
	}
}

func TestReadFileTool(t *testing.T) {
	toolCtx := newTestContext(t)
	payload := execute(t, &ReadFileTool{}, toolCtx, map[string]any{
		"path":   "src/main.txt",
		"offset": float64(1),
		"limit":  float64(1),
	})

	if payload["_is_error"] == true {
		t.Fatalf("unexpected error payload: %v", payload)
	}
	if payload["content"] != "2: line two" {
		t.Errorf("content = %v", payload["content"])
	}
	if payload["start_line"] != float64(2) {
		t.Errorf("start_line = %v, want 2", payload["start_line"])
	}
	if payload["total_lines"] != float64(3) || payload["truncated"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestReadFileToolOffsetIsZeroBased(t *testing.T) {
	toolCtx := newTestContext(t)

	// offset counts skipped lines, so offset=2 starts at line 3.
	skipped := execute(t, &ReadFileTool{}, toolCtx, map[string]any{
		"path":   "src/main.txt",
		"offset": float64(2),
		"limit":  float64(1),
	})
	if skipped["content"] != "3: line three" || skipped["start_line"] != float64(3) {
		t.Errorf("offset=2 payload = %v", skipped)
	}

	// offset=0 and offset=1 must return different windows.
	fromTop := execute(t, &ReadFileTool{}, toolCtx, map[string]any{
		"path":   "src/main.txt",
		"offset": float64(0),
		"limit":  float64(1),
	})
	if fromTop["content"] != "1: line one" || fromTop["start_line"] != float64(1) {
		t.Errorf("offset=0 payload = %v", fromTop)
	}
	skipOne := execute(t, &ReadFileTool{}, toolCtx, map[string]any{
		"path":   "src/main.txt",
		"offset": float64(1),
		"limit":  float64(1),
	})
	if skipOne["content"] == fromTop["content"] {
		t.Error("offset=0 and offset=1 returned the same window")
	}
}

func TestReadFileToolErrors(t *testing.T) {
	toolCtx := newTestContext(t)

	missing := execute(t, &ReadFileTool{}, toolCtx, map[string]any{"path": "nope.txt"})
	if missing["_is_error"] != true || !strings.Contains(missing["error"].(string), "File not found") {
		t.Errorf("payload = %v", missing)
	}
	if missing["content"] != "" || missing["total_lines"] != float64(0) {
		t.Errorf("error payload should carry zeroed fields: %v", missing)
	}

	dir := execute(t, &ReadFileTool{}, toolCtx, map[string]any{"path": "src"})
	if dir["_is_error"] != true || !strings.Contains(dir["error"].(string), "not a file") {
		t.Errorf("payload = %v", dir)
	}
}

func TestGrepTool(t *testing.T) {
	toolCtx := newTestContext(t)
	payload := execute(t, &GrepTool{}, toolCtx, map[string]any{"pattern": "LINE TWO"})

	if payload["_is_error"] == true {
		t.Fatalf("unexpected error payload: %v", payload)
	}
	if payload["total"] != float64(1) {
		t.Fatalf("total = %v", payload["total"])
	}
	if payload["truncated"] != false {
		t.Errorf("truncated = %v, want false", payload["truncated"])
	}
	match := payload["matches"].([]any)[0].(map[string]any)
	if match["path"] != "src/main.txt" || match["line"] != float64(2) {
		t.Errorf("match = %v", match)
	}
}

func TestGrepToolReportsTruncation(t *testing.T) {
	toolCtx := newTestContext(t)

	// "line" matches three lines; a cap of 1 must be flagged.
	payload := execute(t, &GrepTool{}, toolCtx, map[string]any{
		"pattern":     "line",
		"max_results": float64(1),
	})
	if payload["_is_error"] == true {
		t.Fatalf("unexpected error payload: %v", payload)
	}
	if payload["total"] != float64(1) {
		t.Errorf("total = %v, want 1", payload["total"])
	}
	if payload["truncated"] != true {
		t.Errorf("truncated = %v, want true", payload["truncated"])
	}
}

func TestGrepToolMissingPattern(t *testing.T) {
	toolCtx := newTestContext(t)
	payload := execute(t, &GrepTool{}, toolCtx, map[string]any{})
	if payload["_is_error"] != true || !strings.Contains(payload["error"].(string), "Missing required parameter") {
		t.Errorf("payload = %v", payload)
	}
}

func TestReadSnippetTool(t *testing.T) {
	toolCtx := newTestContext(t)
	payload := execute(t, &ReadSnippetTool{}, toolCtx, map[string]any{
		"path":          "src/main.txt",
		"start_line":    float64(2),
		"end_line":      float64(2),
		"context_lines": float64(1),
	})

	if payload["_is_error"] == true {
		t.Fatalf("unexpected error payload: %v", payload)
	}
	rng := payload["range"].(map[string]any)
	if rng["start"] != float64(1) || rng["end"] != float64(3) {
		t.Errorf("range = %v", rng)
	}
	if !strings.HasPrefix(payload["content"].(string), "1: ") {
		t.Errorf("content = %v", payload["content"])
	}
}

func TestToolsWithoutWorkspace(t *testing.T) {
	toolCtx := &tools.ToolContext{}
	for _, tc := range []struct {
		tool  tools.Tool
		input map[string]any
	}{
		{&ListTreeTool{}, map[string]any{"path": "."}},
		{&ReadFileTool{}, map[string]any{"path": "a.txt"}},
		{&GrepTool{}, map[string]any{"pattern": "x"}},
		{&ReadSnippetTool{}, map[string]any{"path": "a.txt", "start_line": float64(1), "end_line": float64(1)}},
	} {
		payload := execute(t, tc.tool, toolCtx, tc.input)
		if payload["_is_error"] != true {
			t.Errorf("%s should report missing workspace", tc.tool.Name())
		}
		if !strings.Contains(payload["error"].(string), "workspace not available") {
			t.Errorf("%s error = %v", tc.tool.Name(), payload["error"])
		}
	}
}
