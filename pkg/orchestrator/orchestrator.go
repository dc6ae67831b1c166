// Package orchestrator runs the agentic loop: it alternates model
// completions with tool executions over a growing transcript until the
// model produces a final answer or the iteration budget runs out.
package orchestrator

import (
	"context"
	"errors"

	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/tools"
)

// ErrBlocked is returned when the model yields a completion with no
// content at all. That indicates an upstream refusal and is not
// recoverable by re-asking.
var ErrBlocked = errors.New("model returned a completion with no content")

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeCompleted means the model produced a final text answer.
	OutcomeCompleted Outcome = "completed"

	// OutcomeStalled means the model produced content with neither a
	// usable answer nor a tool call.
	OutcomeStalled Outcome = "stalled"

	// OutcomeBudgetExhausted means the iteration ceiling was reached
	// before the model finished.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
)

// Orchestrator manages the agent loop with tool calling.
type Orchestrator interface {
	// Run executes the agent loop and returns the final result.
	Run(ctx context.Context, req Request) (Result, error)
}

// Request contains all inputs for an orchestrator run.
type Request struct {
	// SystemPrompt is the system message for the run, normally taken
	// from a prompt profile.
	SystemPrompt string

	// InitialMessages seed the transcript. At least one user message
	// is expected.
	InitialMessages []llm.Message

	// MaxIterations caps the number of model requests. The cap is
	// checked before each request, so a run issues at most this many
	// completions. Default: 50.
	MaxIterations int

	// MaxMessages limits the transcript size sent to the provider.
	// When exceeded, older messages (except the first) are truncated
	// with tool pairs kept intact. Default: 50.
	MaxMessages int

	// CompactConfig configures model-driven transcript summarization.
	// When enabled, long transcripts are summarized instead of truncated.
	CompactConfig CompactConfig

	// ToolContext provides execution context for tools. A nil context
	// is replaced with an empty one; repository tools then report the
	// missing workspace as error payloads.
	ToolContext *tools.ToolContext

	// Callbacks for observing the run.
	OnMessage    func(llm.Message)
	OnToolCall   func(name string, input map[string]any)
	OnToolResult func(name string, result tools.ToolResult)
}

// Result contains the output of an orchestrator run.
type Result struct {
	// FinalText is the answer handed back to the caller. For stalled
	// or budget-exhausted runs this is salvaged text or a labeled
	// placeholder, never empty.
	FinalText string

	// Outcome classifies the run ending.
	Outcome Outcome

	// Messages contains the full transcript.
	Messages []llm.Message

	// TotalIterations is the number of model requests issued.
	TotalIterations int

	// TotalInputTokens is the cumulative input token count.
	TotalInputTokens int

	// TotalOutputTokens is the cumulative output token count.
	TotalOutputTokens int

	// ToolCalls records every executed tool call in order.
	ToolCalls []ToolCallRecord
}

// ToolCallRecord records a single tool call and its result.
type ToolCallRecord struct {
	Name   string
	Input  map[string]any
	Result tools.ToolResult
}
