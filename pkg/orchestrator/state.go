package orchestrator

import (
	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/tools"
)

// State tracks the transcript and counters during a run.
type State struct {
	// Messages contains the conversation transcript.
	Messages []llm.Message

	// Iterations counts model requests issued so far.
	Iterations int

	// InputTokens tracks cumulative input tokens.
	InputTokens int

	// OutputTokens tracks cumulative output tokens.
	OutputTokens int

	// ToolCalls records all executed tool calls.
	ToolCalls []ToolCallRecord

	// LastText is the most recent non-empty assistant text, kept for
	// salvage when the run ends without a proper final answer.
	LastText string
}

// NewState creates a new run state seeded with the initial messages.
func NewState(messages []llm.Message) *State {
	return &State{
		Messages:  append([]llm.Message{}, messages...),
		ToolCalls: []ToolCallRecord{},
	}
}

// AddMessage appends a message to the transcript.
func (s *State) AddMessage(msg llm.Message) {
	s.Messages = append(s.Messages, msg)
}

// AddToolCall records an executed tool call.
func (s *State) AddToolCall(name string, input map[string]any, result tools.ToolResult) {
	s.ToolCalls = append(s.ToolCalls, ToolCallRecord{
		Name:   name,
		Input:  input,
		Result: result,
	})
}

// UpdateUsage accumulates token usage.
func (s *State) UpdateUsage(usage llm.Usage) {
	s.InputTokens += usage.InputTokens
	s.OutputTokens += usage.OutputTokens
}

// IncrementIteration bumps the model request counter.
func (s *State) IncrementIteration() {
	s.Iterations++
}

// RememberText stores a non-empty assistant text for later salvage.
func (s *State) RememberText(text string) {
	if text != "" {
		s.LastText = text
	}
}

// ToResult converts the state into a Result with the given final text
// and outcome.
func (s *State) ToResult(finalText string, outcome Outcome) Result {
	return Result{
		FinalText:         finalText,
		Outcome:           outcome,
		Messages:          s.Messages,
		TotalIterations:   s.Iterations,
		TotalInputTokens:  s.InputTokens,
		TotalOutputTokens: s.OutputTokens,
		ToolCalls:         s.ToolCalls,
	}
}
