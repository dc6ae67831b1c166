package orchestrator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"repo_onboarder/pkg/llm"
	"repo_onboarder/pkg/tools"
)

const (
	defaultMaxIterations = 50
	defaultMaxMessages   = 50

	stalledPlaceholder = "No answer produced. The model ended the conversation without a usable response."
)

func budgetPlaceholder(iterations int) string {
	return fmt.Sprintf("Analysis incomplete after %d iterations. The iteration budget was exhausted before the model produced a final answer.", iterations)
}

// generateToolUseID generates a unique ID for tool_use blocks that have
// empty IDs. Gemini does not return call IDs, but the transcript pairs
// tool_use and tool_result by ID.
func generateToolUseID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("toolu_%d", time.Now().UnixNano())
	}
	return "toolu_" + hex.EncodeToString(b)
}

// validateToolPairs checks that all tool_results have matching tool_uses
// in the messages. Returns an error if any orphaned tool_results are found.
func validateToolPairs(messages []llm.Message) error {
	toolUseIDs := make(map[string]bool)
	for _, msg := range messages {
		for _, block := range msg.Content {
			if block.Type == llm.ContentTypeToolUse && block.ID != "" {
				toolUseIDs[block.ID] = true
			}
		}
	}

	var orphans []string
	for i, msg := range messages {
		for _, block := range msg.Content {
			if block.Type == llm.ContentTypeToolResult {
				if block.ToolUseID == "" {
					orphans = append(orphans, fmt.Sprintf("msg[%d]:empty_id", i))
				} else if !toolUseIDs[block.ToolUseID] {
					orphans = append(orphans, fmt.Sprintf("msg[%d]:%s", i, block.ToolUseID))
				}
			}
		}
	}

	if len(orphans) > 0 {
		return fmt.Errorf("found %d orphaned tool_results: %v", len(orphans), orphans)
	}
	return nil
}

// AgentLoop implements the Orchestrator interface.
type AgentLoop struct {
	// Provider is the model backend for completion calls.
	Provider llm.Provider

	// Registry contains all available tools. An empty registry puts
	// the loop in context-only mode.
	Registry *tools.Registry
}

// NewAgentLoop creates a new agent loop orchestrator.
func NewAgentLoop(provider llm.Provider, registry *tools.Registry) *AgentLoop {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &AgentLoop{
		Provider: provider,
		Registry: registry,
	}
}

// Run executes the agent loop until the model produces a final answer,
// the run blocks or stalls, or the iteration budget is exhausted.
func (l *AgentLoop) Run(ctx context.Context, req Request) (Result, error) {
	state := NewState(req.InitialMessages)

	toolCtx := req.ToolContext
	if toolCtx == nil {
		toolCtx = &tools.ToolContext{}
	}

	toolDefs := l.Registry.Definitions()
	log.Printf("[orchestrator] starting agent loop: tools=%v max_iterations=%d",
		l.Registry.Names(), req.MaxIterations)

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	maxMessages := req.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}

	var compactor *Compactor
	if req.CompactConfig.Enabled {
		compactor = NewCompactor(l.Provider, req.CompactConfig)
		log.Printf("[orchestrator] compaction enabled: threshold=%d keep_recent=%d",
			req.CompactConfig.Threshold, req.CompactConfig.KeepRecent)
	}

	// Track all tool_use IDs to detect and fix duplicates from the model.
	seenToolUseIDs := make(map[string]bool)

	// The budget is enforced here, before each model request.
	for state.Iterations < maxIterations {
		select {
		case <-ctx.Done():
			log.Printf("[orchestrator] context cancelled at iteration %d", state.Iterations)
			return state.ToResult(state.LastText, OutcomeStalled), ctx.Err()
		default:
		}

		state.IncrementIteration()
		log.Printf("[orchestrator] === iteration %d/%d ===", state.Iterations, maxIterations)

		messages := state.Messages

		if compactor != nil && compactor.ShouldCompact(messages) {
			log.Printf("[orchestrator] triggering compaction: %d messages exceed threshold %d",
				len(messages), req.CompactConfig.Threshold)
			compactedMessages, err := compactor.Compact(ctx, messages)
			if err != nil {
				log.Printf("[orchestrator] WARNING: compaction failed: %v, falling back to truncation", err)
			} else {
				messages = compactedMessages
				state.Messages = messages
				log.Printf("[orchestrator] compaction succeeded: reduced to %d messages", len(messages))
			}
		}

		if len(messages) > maxMessages {
			messages = truncateMessages(messages, maxMessages)
		}

		if err := validateToolPairs(messages); err != nil {
			log.Printf("[orchestrator] ERROR: message validation failed: %v", err)
			// Recover by sending the full untruncated transcript.
			messages = state.Messages
		}

		resp, err := l.Provider.Call(ctx, llm.CompletionRequest{
			System:   req.SystemPrompt,
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			log.Printf("[orchestrator] ERROR: model call failed: %v", err)
			return state.ToResult(state.LastText, OutcomeStalled), fmt.Errorf("model call failed: %w", err)
		}

		log.Printf("[orchestrator] response: stop_reason=%s content_blocks=%d usage={in:%d out:%d}",
			resp.StopReason, len(resp.Content), resp.Usage.InputTokens, resp.Usage.OutputTokens)

		state.UpdateUsage(resp.Usage)

		// A completion with no content at all is an upstream refusal.
		// No tool runs for it and re-asking cannot help.
		if !resp.HasContent() {
			log.Printf("[orchestrator] ERROR: blocked, completion has no content at iteration %d", state.Iterations)
			return state.ToResult(state.LastText, OutcomeStalled), ErrBlocked
		}

		// Repair empty and duplicate tool_use IDs before the turn enters
		// the transcript; pairing relies on them being unique.
		for i := range resp.Content {
			if resp.Content[i].Type == llm.ContentTypeToolUse {
				origID := resp.Content[i].ID
				if origID == "" || seenToolUseIDs[origID] {
					newID := generateToolUseID()
					if origID == "" {
						log.Printf("[orchestrator] generated ID %s for tool %s", newID, resp.Content[i].Name)
					} else {
						log.Printf("[orchestrator] replaced duplicate ID %s -> %s for tool %s",
							origID, newID, resp.Content[i].Name)
					}
					resp.Content[i].ID = newID
				}
				seenToolUseIDs[resp.Content[i].ID] = true
			}
		}

		text := strings.TrimSpace(resp.GetText())
		state.RememberText(text)
		toolUses := resp.GetToolUses()

		// Exactly one tool call is executed per iteration. Extra calls
		// are dropped from the transcript turn; the model re-requests
		// them on the next round since no result ever arrives.
		if len(toolUses) > 0 {
			use := toolUses[0]
			if len(toolUses) > 1 {
				log.Printf("[orchestrator] model requested %d tool calls, executing only %s id=%s",
					len(toolUses), use.Name, use.ID)
			}

			assistantMsg := assistantTurnWithSingleCall(resp, use.ID)
			state.AddMessage(assistantMsg)
			if req.OnMessage != nil {
				req.OnMessage(assistantMsg)
			}

			result := l.executeTool(ctx, toolCtx, use, req)
			state.AddToolCall(use.Name, use.Input, result)

			resultPreview := result.Content
			if len(resultPreview) > 200 {
				resultPreview = resultPreview[:200] + "..."
			}
			log.Printf("[orchestrator] tool result: %s -> is_error=%v content=%s",
				use.Name, result.IsError, resultPreview)

			state.AddMessage(llm.NewToolResultMessage(use.ID, use.Name, result.Content, result.IsError))
			continue
		}

		// No tool call: record the turn as-is.
		assistantMsg := resp.ToMessage()
		state.AddMessage(assistantMsg)
		if req.OnMessage != nil {
			req.OnMessage(assistantMsg)
		}

		if text != "" {
			log.Printf("[orchestrator] final answer after %d iterations (%d chars)", state.Iterations, len(text))
			return state.ToResult(text, OutcomeCompleted), nil
		}

		// Content present but no usable text and no tool call.
		log.Printf("[orchestrator] WARNING: stalled at iteration %d, no text and no tool call", state.Iterations)
		finalText := state.LastText
		if finalText == "" {
			finalText = stalledPlaceholder
		}
		return state.ToResult(finalText, OutcomeStalled), nil
	}

	log.Printf("[orchestrator] iteration budget (%d) exhausted", maxIterations)
	finalText := state.LastText
	if finalText == "" {
		finalText = budgetPlaceholder(maxIterations)
	}
	return state.ToResult(finalText, OutcomeBudgetExhausted), nil
}

// assistantTurnWithSingleCall builds the assistant transcript turn for a
// completion, keeping all text blocks but only the tool_use with keepID.
func assistantTurnWithSingleCall(resp llm.CompletionResponse, keepID string) llm.Message {
	content := make([]llm.ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		switch block.Type {
		case llm.ContentTypeToolUse:
			if block.ID == keepID {
				content = append(content, block)
			}
		default:
			content = append(content, block)
		}
	}
	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: content,
	}
}

// executeTool runs one tool call. Execution failures become error results
// so the model sees them and can adjust.
func (l *AgentLoop) executeTool(ctx context.Context, toolCtx *tools.ToolContext, use llm.ContentBlock, req Request) tools.ToolResult {
	log.Printf("[orchestrator] calling tool: %s id=%s input=%v", use.Name, use.ID, use.Input)

	if req.OnToolCall != nil {
		req.OnToolCall(use.Name, use.Input)
	}

	result, err := l.Registry.Dispatch(ctx, toolCtx, use.Name, use.Input)
	if err != nil {
		log.Printf("[orchestrator] ERROR: tool %s execution error: %v", use.Name, err)
		result = tools.NewErrorResult(err)
	}

	if req.OnToolResult != nil {
		req.OnToolResult(use.Name, result)
	}
	return result
}

// truncateMessages truncates the transcript while preserving
// tool_use/tool_result pairs. It keeps the first message (initial prompt)
// and the most recent messages, expanding the kept range by fixed-point
// iteration until every kept tool_result has its tool_use.
func truncateMessages(messages []llm.Message, maxMessages int) []llm.Message {
	if len(messages) <= maxMessages {
		return messages
	}

	keepFrom := len(messages) - maxMessages + 1
	if keepFrom < 1 {
		keepFrom = 1
	}

	collectToolUseIDs := func(from int) map[string]bool {
		ids := make(map[string]bool)
		for _, block := range messages[0].Content {
			if block.Type == llm.ContentTypeToolUse && block.ID != "" {
				ids[block.ID] = true
			}
		}
		for i := from; i < len(messages); i++ {
			for _, block := range messages[i].Content {
				if block.Type == llm.ContentTypeToolUse && block.ID != "" {
					ids[block.ID] = true
				}
			}
		}
		return ids
	}

	for iteration := 0; iteration < 100; iteration++ {
		changed := false
		toolUseIDs := collectToolUseIDs(keepFrom)

		for i := keepFrom; i < len(messages) && !changed; i++ {
			for _, block := range messages[i].Content {
				if block.Type != llm.ContentTypeToolResult || block.ToolUseID == "" {
					continue
				}
				if toolUseIDs[block.ToolUseID] {
					continue
				}
				// Expand the kept range to include the matching tool_use.
				for j := keepFrom - 1; j >= 1 && !changed; j-- {
					for _, b := range messages[j].Content {
						if b.Type == llm.ContentTypeToolUse && b.ID == block.ToolUseID {
							log.Printf("[orchestrator] truncation: including msg %d for tool_use %s", j, block.ToolUseID)
							keepFrom = j
							changed = true
							break
						}
					}
				}
				break
			}
		}

		if !changed {
			break
		}
	}

	result := make([]llm.Message, 0, len(messages)-keepFrom+1)
	result = append(result, messages[0])
	result = append(result, messages[keepFrom:]...)

	log.Printf("[orchestrator] truncating transcript: %d -> %d messages", len(messages), len(result))
	return result
}
