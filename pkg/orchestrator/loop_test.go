package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/tools"
)

// scriptedProvider replays a fixed sequence of completions and records
// every request it receives.
type scriptedProvider struct {
	responses []llm.CompletionResponse
	requests  []llm.CompletionRequest
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Call(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return llm.CompletionResponse{}, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

func textResponse(text string) llm.CompletionResponse {
	return llm.CompletionResponse{
		Role:       llm.RoleAssistant,
		StopReason: llm.StopReasonEndTurn,
		Content:    []llm.ContentBlock{{Type: llm.ContentTypeText, Text: text}},
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func toolCallResponse(id, name string, input map[string]any) llm.CompletionResponse {
	return llm.CompletionResponse{
		Role:       llm.RoleAssistant,
		StopReason: llm.StopReasonToolUse,
		Content: []llm.ContentBlock{
			{Type: llm.ContentTypeText, Text: "Let me check."},
			{Type: llm.ContentTypeToolUse, ID: id, Name: name, Input: input},
		},
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

type echoTool struct {
	name  string
	calls []map[string]any
}

func (t *echoTool) Name() string                { return t.name }
func (t *echoTool) Description() string         { return "echoes its input" }
func (t *echoTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (t *echoTool) Execute(ctx context.Context, toolCtx *tools.ToolContext, input map[string]any) (tools.ToolResult, error) {
	t.calls = append(t.calls, input)
	return tools.NewToolResult(`{"ok":true}`), nil
}

func initialMessages() []llm.Message {
	return []llm.Message{llm.NewTextMessage(llm.RoleUser, "analyze this repository")}
}

func TestRunCompletesOnFinalText(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{textResponse("The repo is a CLI tool.")}}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	result, err := loop.Run(context.Background(), Request{
		SystemPrompt:    "analyze",
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %s, want completed", result.Outcome)
	}
	if result.FinalText != "The repo is a CLI tool." {
		t.Errorf("FinalText = %q", result.FinalText)
	}
	if result.TotalIterations != 1 {
		t.Errorf("TotalIterations = %d, want 1", result.TotalIterations)
	}
	if result.TotalInputTokens != 10 || result.TotalOutputTokens != 5 {
		t.Errorf("usage = %d/%d", result.TotalInputTokens, result.TotalOutputTokens)
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{
		toolCallResponse("toolu_1", "probe", map[string]any{"path": "."}),
		textResponse("done"),
	}}
	tool := &echoTool{name: "probe"}
	registry := tools.NewRegistry()
	registry.MustRegister(tool)
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeCompleted || result.FinalText != "done" {
		t.Errorf("result = %+v", result)
	}
	if len(tool.calls) != 1 {
		t.Fatalf("tool called %d times, want 1", len(tool.calls))
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "probe" {
		t.Errorf("ToolCalls = %+v", result.ToolCalls)
	}

	// transcript: user, assistant(tool_use), user(tool_result), assistant(text)
	if len(result.Messages) != 4 {
		t.Fatalf("transcript has %d messages, want 4", len(result.Messages))
	}
	toolResult := result.Messages[2].Content[0]
	if toolResult.Type != llm.ContentTypeToolResult || toolResult.ToolUseID != "toolu_1" {
		t.Errorf("tool result turn = %+v", toolResult)
	}
	if err := validateToolPairs(result.Messages); err != nil {
		t.Errorf("transcript invariant broken: %v", err)
	}

	// tools advertised on every request
	for i, req := range provider.requests {
		if len(req.Tools) != 1 || req.Tools[0].Name != "probe" {
			t.Errorf("request %d tools = %+v", i, req.Tools)
		}
	}
}

func TestRunExecutesOnlyFirstToolCall(t *testing.T) {
	multi := llm.CompletionResponse{
		Role:       llm.RoleAssistant,
		StopReason: llm.StopReasonToolUse,
		Content: []llm.ContentBlock{
			{Type: llm.ContentTypeText, Text: "Two at once."},
			{Type: llm.ContentTypeToolUse, ID: "toolu_a", Name: "probe", Input: map[string]any{"n": float64(1)}},
			{Type: llm.ContentTypeToolUse, ID: "toolu_b", Name: "probe", Input: map[string]any{"n": float64(2)}},
		},
	}
	provider := &scriptedProvider{responses: []llm.CompletionResponse{multi, textResponse("done")}}
	tool := &echoTool{name: "probe"}
	registry := tools.NewRegistry()
	registry.MustRegister(tool)
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(tool.calls) != 1 {
		t.Fatalf("tool called %d times, want 1", len(tool.calls))
	}
	if tool.calls[0]["n"] != float64(1) {
		t.Errorf("executed call input = %v, want the first call", tool.calls[0])
	}

	// the dropped second call must not appear in the transcript turn
	assistantTurn := result.Messages[1]
	uses := assistantTurn.GetToolUses()
	if len(uses) != 1 || uses[0].ID != "toolu_a" {
		t.Errorf("assistant turn tool uses = %+v, want only toolu_a", uses)
	}
	if assistantTurn.GetText() != "Two at once." {
		t.Errorf("text blocks should be kept: %q", assistantTurn.GetText())
	}
	if err := validateToolPairs(result.Messages); err != nil {
		t.Errorf("transcript invariant broken: %v", err)
	}
}

func TestRunBudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{
		toolCallResponse("", "probe", map[string]any{"path": "."}),
	}}
	tool := &echoTool{name: "probe"}
	registry := tools.NewRegistry()
	registry.MustRegister(tool)
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   3,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeBudgetExhausted {
		t.Errorf("Outcome = %s, want budget_exhausted", result.Outcome)
	}
	// ceiling is enforced before each request: exactly 3 model calls
	if len(provider.requests) != 3 {
		t.Errorf("provider called %d times, want 3", len(provider.requests))
	}
	// every response carried interim text, so it is salvaged
	if result.FinalText != "Let me check." {
		t.Errorf("FinalText = %q, want salvaged text", result.FinalText)
	}
}

func TestRunBudgetExhaustedWithoutTextUsesPlaceholder(t *testing.T) {
	silent := llm.CompletionResponse{
		Role:       llm.RoleAssistant,
		StopReason: llm.StopReasonToolUse,
		Content: []llm.ContentBlock{
			{Type: llm.ContentTypeToolUse, ID: "", Name: "probe", Input: nil},
		},
	}
	provider := &scriptedProvider{responses: []llm.CompletionResponse{silent}}
	registry := tools.NewRegistry()
	registry.MustRegister(&echoTool{name: "probe"})
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeBudgetExhausted {
		t.Errorf("Outcome = %s", result.Outcome)
	}
	if !strings.Contains(result.FinalText, "incomplete after 2 iterations") {
		t.Errorf("FinalText = %q", result.FinalText)
	}
}

func TestRunBlockedOnEmptyContent(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{{Role: llm.RoleAssistant}}}
	tool := &echoTool{name: "probe"}
	registry := tools.NewRegistry()
	registry.MustRegister(tool)
	loop := NewAgentLoop(provider, registry)

	_, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
	if len(tool.calls) != 0 {
		t.Errorf("no tool must run for a blocked completion, got %d calls", len(tool.calls))
	}
}

func TestRunStalledUsesPlaceholder(t *testing.T) {
	whitespace := llm.CompletionResponse{
		Role:    llm.RoleAssistant,
		Content: []llm.ContentBlock{{Type: llm.ContentTypeText, Text: "   \n"}},
	}
	provider := &scriptedProvider{responses: []llm.CompletionResponse{whitespace}}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeStalled {
		t.Errorf("Outcome = %s, want stalled", result.Outcome)
	}
	if !strings.Contains(result.FinalText, "No answer produced") {
		t.Errorf("FinalText = %q", result.FinalText)
	}
}

func TestRunStalledSalvagesEarlierText(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{
		toolCallResponse("toolu_1", "probe", nil),
		{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentBlock{{Type: llm.ContentTypeText, Text: ""}},
		},
	}}
	registry := tools.NewRegistry()
	registry.MustRegister(&echoTool{name: "probe"})
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeStalled {
		t.Errorf("Outcome = %s, want stalled", result.Outcome)
	}
	if result.FinalText != "Let me check." {
		t.Errorf("FinalText = %q, want salvaged interim text", result.FinalText)
	}
}

func TestRunUnknownToolFeedsErrorBack(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{
		toolCallResponse("toolu_1", "writeFile", map[string]any{"path": "x"}),
		textResponse("understood, giving up on writing"),
	}}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %s", result.Outcome)
	}
	if len(result.ToolCalls) != 1 || !result.ToolCalls[0].Result.IsError {
		t.Errorf("ToolCalls = %+v, want one error result", result.ToolCalls)
	}
	if !strings.Contains(result.ToolCalls[0].Result.Content, "Unknown tool: writeFile") {
		t.Errorf("result content = %q", result.ToolCalls[0].Result.Content)
	}
}

func TestRunGeneratesMissingToolUseIDs(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{
		toolCallResponse("", "probe", nil),
		textResponse("done"),
	}}
	registry := tools.NewRegistry()
	registry.MustRegister(&echoTool{name: "probe"})
	loop := NewAgentLoop(provider, registry)

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	uses := result.Messages[1].GetToolUses()
	if len(uses) != 1 || uses[0].ID == "" {
		t.Fatalf("tool_use ID was not generated: %+v", uses)
	}
	if !strings.HasPrefix(uses[0].ID, "toolu_") {
		t.Errorf("generated ID = %q", uses[0].ID)
	}
	if err := validateToolPairs(result.Messages); err != nil {
		t.Errorf("transcript invariant broken: %v", err)
	}
}

func TestRunProviderErrorIsFatal(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("transport down")}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	_, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if err == nil || !strings.Contains(err.Error(), "transport down") {
		t.Errorf("err = %v", err)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{responses: []llm.CompletionResponse{textResponse("never")}}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	_, err := loop.Run(ctx, Request{
		InitialMessages: initialMessages(),
		MaxIterations:   10,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(provider.requests) != 0 {
		t.Errorf("provider should not be called after cancellation")
	}
}

func TestRunEmptyRegistryAdvertisesNoTools(t *testing.T) {
	provider := &scriptedProvider{responses: []llm.CompletionResponse{textResponse("from context alone")}}
	loop := NewAgentLoop(provider, tools.NewRegistry())

	result, err := loop.Run(context.Background(), Request{
		InitialMessages: initialMessages(),
		MaxIterations:   5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %s", result.Outcome)
	}
	if len(provider.requests[0].Tools) != 0 {
		t.Errorf("tools advertised = %+v, want none", provider.requests[0].Tools)
	}
}

func TestTruncateMessagesPreservesToolPairs(t *testing.T) {
	messages := []llm.Message{llm.NewTextMessage(llm.RoleUser, "start")}
	for i := 0; i < 20; i++ {
		id := generateToolUseID()
		messages = append(messages, llm.Message{
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{
				{Type: llm.ContentTypeToolUse, ID: id, Name: "probe"},
			},
		})
		messages = append(messages, llm.NewToolResultMessage(id, "probe", `{}`, false))
	}

	truncated := truncateMessages(messages, 10)
	if len(truncated) >= len(messages) {
		t.Fatalf("nothing truncated: %d -> %d", len(messages), len(truncated))
	}
	if truncated[0].GetText() != "start" {
		t.Error("first message must be kept")
	}
	if err := validateToolPairs(truncated); err != nil {
		t.Errorf("truncation broke tool pairs: %v", err)
	}
}

func TestValidateToolPairsDetectsOrphans(t *testing.T) {
	messages := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "start"),
		llm.NewToolResultMessage("toolu_ghost", "probe", `{}`, false),
	}
	if err := validateToolPairs(messages); err == nil {
		t.Error("expected orphan detection")
	}
}
