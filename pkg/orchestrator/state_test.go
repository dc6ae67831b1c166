package orchestrator

import (
	"testing"

	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/tools"
)

func TestStateAccumulates(t *testing.T) {
	state := NewState([]llm.Message{llm.NewTextMessage(llm.RoleUser, "go")})

	state.IncrementIteration()
	state.IncrementIteration()
	state.UpdateUsage(llm.Usage{InputTokens: 10, OutputTokens: 4})
	state.UpdateUsage(llm.Usage{InputTokens: 7, OutputTokens: 3})
	state.AddMessage(llm.NewTextMessage(llm.RoleAssistant, "working"))
	state.AddToolCall("grep", map[string]any{"pattern": "x"}, tools.NewToolResult(`{}`))

	result := state.ToResult("answer", OutcomeCompleted)
	if result.TotalIterations != 2 {
		t.Errorf("TotalIterations = %d", result.TotalIterations)
	}
	if result.TotalInputTokens != 17 || result.TotalOutputTokens != 7 {
		t.Errorf("usage = %d/%d", result.TotalInputTokens, result.TotalOutputTokens)
	}
	if len(result.Messages) != 2 {
		t.Errorf("messages = %d", len(result.Messages))
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "grep" {
		t.Errorf("ToolCalls = %+v", result.ToolCalls)
	}
	if result.FinalText != "answer" || result.Outcome != OutcomeCompleted {
		t.Errorf("result = %+v", result)
	}
}

func TestStateRememberText(t *testing.T) {
	state := NewState(nil)
	state.RememberText("first")
	state.RememberText("")
	if state.LastText != "first" {
		t.Errorf("LastText = %q, empty text must not overwrite", state.LastText)
	}
	state.RememberText("second")
	if state.LastText != "second" {
		t.Errorf("LastText = %q", state.LastText)
	}
}

func TestStateCopiesInitialMessages(t *testing.T) {
	initial := []llm.Message{llm.NewTextMessage(llm.RoleUser, "go")}
	state := NewState(initial)
	state.AddMessage(llm.NewTextMessage(llm.RoleAssistant, "ok"))
	if len(initial) != 1 {
		t.Error("state must not share the caller's slice")
	}
}
