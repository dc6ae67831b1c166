package llm

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType represents the type of content block.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// StopReason represents why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// ContentBlock represents a content block in a message.
type ContentBlock struct {
	Type ContentType `json:"type"`

	// For text content
	Text string `json:"text,omitempty"`

	// For tool_use content
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// For tool_result content. Name is also set on tool_result blocks so
	// providers that address results by function name (Gemini) can encode them.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Message represents a message in the conversation transcript.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextMessage creates a new text message.
func NewTextMessage(role Role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: ContentTypeText, Text: text},
		},
	}
}

// NewToolResultMessage creates a new tool result message.
func NewToolResultMessage(toolUseID, name, content string, isError bool) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentBlock{
			{
				Type:      ContentTypeToolResult,
				ToolUseID: toolUseID,
				Name:      name,
				Content:   content,
				IsError:   isError,
			},
		},
	}
}

// GetText extracts concatenated text from all text content blocks.
func (m Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			if result != "" {
				result += "\n"
			}
			result += block.Text
		}
	}
	return result
}

// GetToolUses extracts all tool use blocks from the message.
func (m Message) GetToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// ToolDefinition defines a tool advertised to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// CompletionRequest represents one completion request to a provider.
type CompletionRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse represents one completion from a provider.
type CompletionResponse struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage represents token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToMessage converts the response to a Message for the transcript.
func (r CompletionResponse) ToMessage() Message {
	return Message{
		Role:    RoleAssistant,
		Content: r.Content,
	}
}

// GetText extracts concatenated text from all text content blocks.
func (r CompletionResponse) GetText() string {
	return r.ToMessage().GetText()
}

// GetToolUses extracts all tool use blocks from the response.
func (r CompletionResponse) GetToolUses() []ContentBlock {
	return r.ToMessage().GetToolUses()
}

// HasToolUse checks if the response contains tool use blocks.
func (r CompletionResponse) HasToolUse() bool {
	return r.StopReason == StopReasonToolUse || len(r.GetToolUses()) > 0
}

// HasContent reports whether the response carries any content at all.
// A response with no content blocks indicates an upstream refusal
// (safety filter, quota) and is not recoverable by re-asking.
func (r CompletionResponse) HasContent() bool {
	return len(r.Content) > 0
}
