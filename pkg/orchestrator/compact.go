package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"repo_onboarder/pkg/llm"
)

// CompactConfig holds configuration for transcript compaction.
type CompactConfig struct {
	Enabled    bool
	Threshold  int // Trigger compact when messages exceed this
	KeepRecent int // Keep this many recent messages after compact
}

// DefaultCompactConfig returns sensible defaults for compaction.
func DefaultCompactConfig() CompactConfig {
	return CompactConfig{
		Enabled:    true,
		Threshold:  30,
		KeepRecent: 10,
	}
}

// compactSummaryPrompt is the system prompt for generating transcript summaries.
const compactSummaryPrompt = `You are a conversation summarizer. Create a concise but complete summary of an ongoing repository analysis conversation so the analysis can continue from the summary alone.

Your summary MUST include:
1. **Original Task**: what the analysis set out to answer or document
2. **Repository Findings**: directories, files and code paths already examined, with what was learned from each
3. **Key Decisions**: conclusions already drawn about the repository's structure or behavior
4. **Pending Work**: what still needs to be examined or written
5. **Important Context**: error payloads, dead ends, or constraints worth remembering

Format the summary as a structured document. Do NOT include raw tool outputs; summarize what they revealed.`

// Compactor summarizes the middle of a long transcript with a model call,
// keeping the first message and the most recent ones verbatim.
type Compactor struct {
	provider llm.Provider
	config   CompactConfig
}

// NewCompactor creates a new Compactor.
func NewCompactor(provider llm.Provider, config CompactConfig) *Compactor {
	return &Compactor{
		provider: provider,
		config:   config,
	}
}

// ShouldCompact returns true if the transcript should be compacted.
func (c *Compactor) ShouldCompact(messages []llm.Message) bool {
	if !c.config.Enabled {
		return false
	}
	return len(messages) > c.config.Threshold
}

// Compact summarizes the conversation and returns a compacted message list.
// It keeps the first message (initial prompt), generates a summary of the
// middle, and keeps the most recent messages.
func (c *Compactor) Compact(ctx context.Context, messages []llm.Message) ([]llm.Message, error) {
	if len(messages) <= c.config.KeepRecent+1 {
		return messages, nil
	}

	log.Printf("[compact] starting compaction: %d messages, threshold=%d, keep_recent=%d",
		len(messages), c.config.Threshold, c.config.KeepRecent)

	summarizeEnd := len(messages) - c.config.KeepRecent
	if summarizeEnd <= 1 {
		return messages, nil
	}

	messagesToSummarize := messages[1:summarizeEnd]
	conversationText := formatMessagesForSummary(messagesToSummarize)

	log.Printf("[compact] summarizing %d messages (%d chars)", len(messagesToSummarize), len(conversationText))

	summary, err := c.generateSummary(ctx, conversationText)
	if err != nil {
		log.Printf("[compact] ERROR: failed to generate summary: %v", err)
		// Fall back to simple truncation
		return truncateMessages(messages, c.config.KeepRecent+1), nil
	}

	log.Printf("[compact] generated summary: %d chars", len(summary))

	result := make([]llm.Message, 0, c.config.KeepRecent+2)
	result = append(result, messages[0])
	result = append(result, llm.Message{
		Role: llm.RoleAssistant,
		Content: []llm.ContentBlock{
			{
				Type: llm.ContentTypeText,
				Text: fmt.Sprintf("[Conversation Summary - %d messages compacted]\n\n%s", len(messagesToSummarize), summary),
			},
		},
	})

	recentMessages := messages[summarizeEnd:]
	recentMessages = ensureToolPairsIntact(recentMessages, messages[:summarizeEnd])
	result = append(result, recentMessages...)

	log.Printf("[compact] compaction complete: %d -> %d messages", len(messages), len(result))
	return result, nil
}

// generateSummary calls the model to summarize the conversation.
func (c *Compactor) generateSummary(ctx context.Context, conversationText string) (string, error) {
	req := llm.CompletionRequest{
		System: compactSummaryPrompt,
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "Please summarize the following conversation:\n\n"+conversationText),
		},
		// No tools for summary generation
		Tools: nil,
	}

	resp, err := c.provider.Call(ctx, req)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	summary := resp.GetText()
	if summary == "" {
		return "", fmt.Errorf("summary generation returned empty response")
	}
	return summary, nil
}

// formatMessagesForSummary converts messages to a readable text format
// for summarization.
func formatMessagesForSummary(messages []llm.Message) string {
	var sb strings.Builder

	for i, msg := range messages {
		role := "User"
		if msg.Role == llm.RoleAssistant {
			role = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("--- Message %d (%s) ---\n", i+1, role))

		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentTypeText:
				if block.Text != "" {
					sb.WriteString(block.Text)
					sb.WriteString("\n")
				}
			case llm.ContentTypeToolUse:
				sb.WriteString(fmt.Sprintf("[Tool Call: %s]\n", block.Name))
			case llm.ContentTypeToolResult:
				content := block.Content
				if len(content) > 500 {
					content = content[:500] + "... (truncated)"
				}
				if block.IsError {
					sb.WriteString(fmt.Sprintf("[Tool Error: %s]\n", content))
				} else {
					sb.WriteString(fmt.Sprintf("[Tool Result: %s]\n", content))
				}
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// ensureToolPairsIntact prepends older messages whose tool_use blocks are
// referenced by tool_results in the kept recent messages.
func ensureToolPairsIntact(recentMessages []llm.Message, olderMessages []llm.Message) []llm.Message {
	recentToolUseIDs := make(map[string]bool)
	for _, msg := range recentMessages {
		for _, block := range msg.Content {
			if block.Type == llm.ContentTypeToolUse && block.ID != "" {
				recentToolUseIDs[block.ID] = true
			}
		}
	}

	orphanedResults := make(map[string]bool)
	for _, msg := range recentMessages {
		for _, block := range msg.Content {
			if block.Type == llm.ContentTypeToolResult && block.ToolUseID != "" {
				if !recentToolUseIDs[block.ToolUseID] {
					orphanedResults[block.ToolUseID] = true
				}
			}
		}
	}

	if len(orphanedResults) == 0 {
		return recentMessages
	}

	var toolUseMessages []llm.Message
	for _, msg := range olderMessages {
		for _, block := range msg.Content {
			if block.Type == llm.ContentTypeToolUse && orphanedResults[block.ID] {
				toolUseMessages = append(toolUseMessages, msg)
				break
			}
		}
	}

	if len(toolUseMessages) == 0 {
		return recentMessages
	}

	log.Printf("[compact] including %d older messages to preserve tool pairs", len(toolUseMessages))

	result := make([]llm.Message, 0, len(toolUseMessages)+len(recentMessages))
	result = append(result, toolUseMessages...)
	result = append(result, recentMessages...)
	return result
}
