package llm

import (
	"context"
	"fmt"
)

// Provider is the unified interface for model completion calls.
// It abstracts the differences between the Gemini and Claude backends.
//
// Providers own bounded retry with backoff for transient transport errors;
// a persistently failing transport surfaces as an error from Call and is
// fatal for the invocation that issued it.
type Provider interface {
	// Call sends a request to the model and returns the completion.
	Call(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the provider name (e.g., "gemini", "claude").
	Name() string
}

// ProviderType identifies the model provider backend.
type ProviderType string

const (
	// ProviderGemini uses the Gemini generateContent API.
	ProviderGemini ProviderType = "gemini"

	// ProviderClaude uses the Claude messages API.
	ProviderClaude ProviderType = "claude"
)

// ProviderConfig contains configuration for creating a provider.
type ProviderConfig struct {
	// Type specifies which provider to use.
	Type ProviderType

	// BaseURL is the API base URL.
	BaseURL string

	// APIKey is the API authentication key.
	APIKey string

	// Model is the model identifier.
	Model string

	// MaxTokens limits the response token count.
	MaxTokens int

	// TimeoutSeconds is the request timeout in seconds.
	TimeoutSeconds int

	// MaxAttempts is the maximum retry count for transient transport errors.
	MaxAttempts int
}

// NewProvider creates a provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return NewGeminiProvider(cfg), nil
	case ProviderClaude:
		return NewClaudeProvider(cfg), nil
	case "":
		// Default to Gemini if not specified
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
