// Package repo implements the repository inspection tools exposed to the
// model: listTree, readFile, grep and readSnippet. Every result, success
// or failure, is a JSON payload with a fixed field shape so the model can
// rely on the structure.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"repo_onboarder/pkg/repofs"
	"repo_onboarder/pkg/tools"
)

// RegisterAll registers the four repository tools on a registry.
func RegisterAll(r *tools.Registry) {
	r.MustRegister(&ListTreeTool{})
	r.MustRegister(&ReadFileTool{})
	r.MustRegister(&GrepTool{})
	r.MustRegister(&ReadSnippetTool{})
}

// marshalResult encodes a payload as a tool result. Marshal failures are
// infrastructure faults, not model-visible errors.
func marshalResult(payload any, isError bool) (tools.ToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("marshal tool payload: %w", err)
	}
	return tools.ToolResult{Content: string(data), IsError: isError}, nil
}

func stringArg(input map[string]any, key string) (string, bool) {
	v, ok := input[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// intArg reads an integer argument. JSON numbers decode as float64.
func intArg(input map[string]any, key string, fallback int) int {
	v, ok := input[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}

func pathErrorMessage(err error, path, fileOrPath string) string {
	switch {
	case errors.Is(err, repofs.ErrOutsideRoot):
		return fmt.Sprintf("Path is outside the repository: %s", path)
	case errors.Is(err, repofs.ErrNotDir):
		return fmt.Sprintf("Path is not a directory: %s", path)
	case errors.Is(err, repofs.ErrNotFile):
		return fmt.Sprintf("Path is not a file: %s", path)
	case errors.Is(err, repofs.ErrNotFound):
		return fmt.Sprintf("%s not found: %s", fileOrPath, path)
	default:
		return err.Error()
	}
}

// listTree

type listTreePayload struct {
	Error   string             `json:"error,omitempty"`
	Path    string             `json:"path"`
	Entries []repofs.TreeEntry `json:"entries"`
	Total   int                `json:"total"`
}

// ListTreeTool lists the direct children of a repository directory.
type ListTreeTool struct{}

func (t *ListTreeTool) Name() string { return "listTree" }

func (t *ListTreeTool) Description() string {
	return "List the files and directories directly under a path in the repository. Directories come first and carry the count of their visible children."
}

func (t *ListTreeTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path relative to the repository root. Use '.' for the root.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ListTreeTool) Execute(ctx context.Context, toolCtx *tools.ToolContext, input map[string]any) (tools.ToolResult, error) {
	path, ok := stringArg(input, "path")
	if !ok {
		return marshalResult(listTreePayload{
			Error:   "Missing required parameter: path",
			Entries: []repofs.TreeEntry{},
		}, true)
	}
	if !toolCtx.HasWorkspace() {
		return marshalResult(listTreePayload{
			Error:   tools.ErrNoWorkspace.Error(),
			Path:    path,
			Entries: []repofs.TreeEntry{},
		}, true)
	}

	entries, err := toolCtx.Workspace.ListTree(path)
	if err != nil {
		return marshalResult(listTreePayload{
			Error:   pathErrorMessage(err, path, "Path"),
			Path:    path,
			Entries: []repofs.TreeEntry{},
		}, true)
	}
	if entries == nil {
		entries = []repofs.TreeEntry{}
	}
	return marshalResult(listTreePayload{Path: path, Entries: entries, Total: len(entries)}, false)
}

// readFile

type readFilePayload struct {
	Error      string `json:"error,omitempty"`
	Path       string `json:"path"`
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Truncated  bool   `json:"truncated"`
}

// ReadFileTool returns a line-numbered window of a file.
type ReadFileTool struct{}

func (t *ReadFileTool) Name() string { return "readFile" }

func (t *ReadFileTool) Description() string {
	return "Read a window of a file with 1-based line numbers. Use offset and limit to page through large files; truncated tells you whether more lines follow."
}

func (t *ReadFileTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path relative to the repository root.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Number of lines to skip before the window, zero-based. offset=0 starts at line 1. Defaults to 0.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of lines to return. Defaults to 500.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, toolCtx *tools.ToolContext, input map[string]any) (tools.ToolResult, error) {
	path, ok := stringArg(input, "path")
	if !ok {
		return marshalResult(readFilePayload{Error: "Missing required parameter: path"}, true)
	}
	if !toolCtx.HasWorkspace() {
		return marshalResult(readFilePayload{
			Error: tools.ErrNoWorkspace.Error(),
			Path:  path,
		}, true)
	}

	// The wire offset is a zero-based skip count; the accessor takes a
	// 1-based first line.
	offset := intArg(input, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	slice, err := toolCtx.Workspace.ReadFile(path, offset+1, intArg(input, "limit", 0))
	if err != nil {
		return marshalResult(readFilePayload{
			Error: pathErrorMessage(err, path, "File"),
			Path:  path,
		}, true)
	}
	return marshalResult(readFilePayload{
		Path:       slice.Path,
		Content:    slice.Content,
		TotalLines: slice.TotalLines,
		StartLine:  slice.StartLine,
		EndLine:    slice.EndLine,
		Truncated:  slice.Truncated,
	}, false)
}

// grep

type grepPayload struct {
	Error     string             `json:"error,omitempty"`
	Pattern   string             `json:"pattern"`
	Matches   []repofs.GrepMatch `json:"matches"`
	Total     int                `json:"total"`
	Truncated bool               `json:"truncated"`
}

// GrepTool searches repository files for a case-insensitive substring.
type GrepTool struct{}

func (t *GrepTool) Name() string { return "grep" }

func (t *GrepTool) Description() string {
	return "Search all repository files for a case-insensitive substring. Optionally restrict the search with a file glob such as '*.go'. Matching lines come back as capped excerpts."
}

func (t *GrepTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Substring to search for, matched case-insensitively.",
			},
			"file_pattern": map[string]any{
				"type":        "string",
				"description": "Optional glob restricting which files are searched, e.g. '*.go'.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of matches to return. Defaults to 1000.",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GrepTool) Execute(ctx context.Context, toolCtx *tools.ToolContext, input map[string]any) (tools.ToolResult, error) {
	pattern, ok := stringArg(input, "pattern")
	if !ok {
		return marshalResult(grepPayload{
			Error:   "Missing required parameter: pattern",
			Matches: []repofs.GrepMatch{},
		}, true)
	}
	if !toolCtx.HasWorkspace() {
		return marshalResult(grepPayload{
			Error:   tools.ErrNoWorkspace.Error(),
			Pattern: pattern,
			Matches: []repofs.GrepMatch{},
		}, true)
	}

	filePattern, _ := stringArg(input, "file_pattern")
	maxResults := intArg(input, "max_results", 0)
	if maxResults <= 0 {
		maxResults = repofs.DefaultGrepMaxResults
	}
	matches, err := toolCtx.Workspace.Grep(pattern, filePattern, maxResults)
	if err != nil {
		return marshalResult(grepPayload{
			Error:   pathErrorMessage(err, pattern, "Path"),
			Pattern: pattern,
			Matches: []repofs.GrepMatch{},
		}, true)
	}
	if matches == nil {
		matches = []repofs.GrepMatch{}
	}
	return marshalResult(grepPayload{
		Pattern:   pattern,
		Matches:   matches,
		Total:     len(matches),
		Truncated: len(matches) >= maxResults,
	}, false)
}

// readSnippet

type readSnippetPayload struct {
	Error   string           `json:"error,omitempty"`
	Path    string           `json:"path"`
	Content string           `json:"content"`
	Range   repofs.LineRange `json:"range"`
}

// ReadSnippetTool extracts a line range with surrounding context.
type ReadSnippetTool struct{}

func (t *ReadSnippetTool) Name() string { return "readSnippet" }

func (t *ReadSnippetTool) Description() string {
	return "Read a specific line range of a file together with surrounding context lines. The returned range reflects clamping to the file boundaries."
}

func (t *ReadSnippetTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path relative to the repository root.",
			},
			"start_line": map[string]any{
				"type":        "integer",
				"description": "First line of the range of interest, 1-based.",
			},
			"end_line": map[string]any{
				"type":        "integer",
				"description": "Last line of the range of interest, inclusive.",
			},
			"context_lines": map[string]any{
				"type":        "integer",
				"description": "Extra lines to include on each side. Defaults to 10.",
			},
		},
		"required": []string{"path", "start_line", "end_line"},
	}
}

func (t *ReadSnippetTool) Execute(ctx context.Context, toolCtx *tools.ToolContext, input map[string]any) (tools.ToolResult, error) {
	path, ok := stringArg(input, "path")
	if !ok {
		return marshalResult(readSnippetPayload{Error: "Missing required parameter: path"}, true)
	}
	if !toolCtx.HasWorkspace() {
		return marshalResult(readSnippetPayload{
			Error: tools.ErrNoWorkspace.Error(),
			Path:  path,
		}, true)
	}

	start := intArg(input, "start_line", 1)
	end := intArg(input, "end_line", start)
	contextLines := intArg(input, "context_lines", -1)

	snippet, err := toolCtx.Workspace.ReadSnippet(path, start, end, contextLines)
	if err != nil {
		return marshalResult(readSnippetPayload{
			Error: pathErrorMessage(err, path, "File"),
			Path:  path,
		}, true)
	}
	return marshalResult(readSnippetPayload{
		Path:    snippet.Path,
		Content: snippet.Content,
		Range:   snippet.Range,
	}, false)
}
