package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geminiAPIPathFmt         = "/v1beta/models/%s:generateContent"
	defaultGeminiMaxAttempts = 5
	defaultGeminiBackoffSec  = 2
	defaultGeminiMaxTokens   = 8192
)

// GeminiProvider implements Provider for the Gemini generateContent API.
type GeminiProvider struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	MaxAttempts int
	HTTPClient  *http.Client
	Backoff     func(int) time.Duration
	Sleep       func(time.Duration)
}

// NewGeminiProvider creates a new Gemini API provider.
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultGeminiMaxAttempts
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultGeminiMaxTokens
	}

	return &GeminiProvider{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
		MaxAttempts: maxAttempts,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Call sends a CompletionRequest to the Gemini API and returns the response.
// It converts between the transcript message format and the Gemini wire format.
func (p *GeminiProvider) Call(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if strings.TrimSpace(p.BaseURL) == "" {
		return CompletionResponse{}, errors.New("Gemini API base URL is empty")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return CompletionResponse{}, errors.New("Gemini API key is empty")
	}

	model := req.Model
	if model == "" {
		model = p.Model
	}
	if strings.TrimSpace(model) == "" {
		return CompletionResponse{}, errors.New("Gemini API model is empty")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.MaxTokens
	}

	geminiReq := p.convertToGeminiRequest(req, maxTokens)

	log.Printf("[gemini-provider] calling API: model=%s max_tokens=%d contents=%d tools=%d",
		model, maxTokens, len(geminiReq.Contents), len(req.Tools))

	payload, err := json.Marshal(geminiReq)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultGeminiMaxAttempts
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = geminiDefaultBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: p.Timeout}
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		log.Printf("[gemini-provider] API request attempt %d/%d", attempt, maxAttempts)
		respBody, status, err := p.doRequest(ctx, client, model, payload)
		log.Printf("[gemini-provider] API response: status=%d body_size=%d err=%v", status, len(respBody), err)

		if err == nil && status < 400 {
			resp, parseErr := parseGeminiResponse(respBody, model)
			if parseErr != nil {
				log.Printf("[gemini-provider] ERROR: failed to parse response: %v", parseErr)
				return CompletionResponse{}, parseErr
			}
			log.Printf("[gemini-provider] parsed response: stop_reason=%s content_blocks=%d",
				resp.StopReason, len(resp.Content))
			return resp, nil
		}
		lastErr = wrapGeminiAPIError(respBody, status, err)
		log.Printf("[gemini-provider] ERROR: attempt %d failed: %v", attempt, lastErr)
		if attempt == maxAttempts || !shouldRetryGemini(status, err) {
			log.Printf("[gemini-provider] giving up after %d attempts", attempt)
			return CompletionResponse{}, lastErr
		}
		backoffDuration := backoff(attempt)
		log.Printf("[gemini-provider] retrying in %v", backoffDuration)
		sleep(backoffDuration)
	}
	return CompletionResponse{}, lastErr
}

// Gemini wire types

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	Tools             []geminiToolSet  `json:"tools,omitempty"`
	GenerationConfig  geminiGenConfig  `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *GeminiProvider) convertToGeminiRequest(req CompletionRequest, maxTokens int) geminiRequest {
	out := geminiRequest{
		GenerationConfig: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	if strings.TrimSpace(req.System) != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	for _, msg := range req.Messages {
		content := geminiContent{Role: geminiRole(msg.Role)}
		for _, block := range msg.Content {
			switch block.Type {
			case ContentTypeText:
				if block.Text != "" {
					content.Parts = append(content.Parts, geminiPart{Text: block.Text})
				}
			case ContentTypeToolUse:
				content.Parts = append(content.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{
						Name: block.Name,
						Args: block.Input,
					},
				})
			case ContentTypeToolResult:
				content.Parts = append(content.Parts, geminiPart{
					FunctionResponse: &geminiFunctionResp{
						Name:     block.Name,
						Response: toolResultToResponse(block),
					},
				})
			}
		}
		if len(content.Parts) > 0 {
			out.Contents = append(out.Contents, content)
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDecl, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		out.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	return out
}

// toolResultToResponse converts a tool_result block into the object Gemini
// requires for functionResponse. Tool payloads are JSON objects already; a
// non-object payload is wrapped.
func toolResultToResponse(block ContentBlock) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(block.Content), &decoded); err == nil && decoded != nil {
		return decoded
	}
	if block.IsError {
		return map[string]any{"error": block.Content}
	}
	return map[string]any{"output": block.Content}
}

func geminiRole(role Role) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

func parseGeminiResponse(body []byte, model string) (CompletionResponse, error) {
	if len(body) == 0 {
		return CompletionResponse{}, errors.New("API returned empty response body")
	}
	var raw geminiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return CompletionResponse{}, fmt.Errorf("parse response: %w", err)
	}

	resp := CompletionResponse{
		Role:  RoleAssistant,
		Model: model,
		Usage: Usage{
			InputTokens:  raw.UsageMetadata.PromptTokenCount,
			OutputTokens: raw.UsageMetadata.CandidatesTokenCount,
		},
		StopReason: StopReasonEndTurn,
	}

	// No candidates or a candidate without content means the backend refused
	// to answer (safety filter, quota). Surface an empty-content response and
	// let the loop classify it.
	if len(raw.Candidates) == 0 {
		return resp, nil
	}
	candidate := raw.Candidates[0]
	if candidate.Content == nil {
		return resp, nil
	}

	hasFunctionCall := false
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			hasFunctionCall = true
			resp.Content = append(resp.Content, ContentBlock{
				Type:  ContentTypeToolUse,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		case part.Text != "":
			resp.Content = append(resp.Content, ContentBlock{
				Type: ContentTypeText,
				Text: part.Text,
			})
		}
	}

	switch {
	case hasFunctionCall:
		resp.StopReason = StopReasonToolUse
	case candidate.FinishReason == "MAX_TOKENS":
		resp.StopReason = StopReasonMaxTokens
	}

	return resp, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, client *http.Client, model string, payload []byte) ([]byte, int, error) {
	endpoint, err := buildGeminiEndpoint(p.BaseURL, model)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("x-goog-api-key", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[gemini-provider] HTTP request failed: %v", err)
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return body, resp.StatusCode, nil
}

func buildGeminiEndpoint(baseURL, model string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.Path = base.Path + fmt.Sprintf(geminiAPIPathFmt, model)
	return base.String(), nil
}

func wrapGeminiAPIError(body []byte, status int, err error) error {
	if err != nil {
		return err
	}
	if status == 0 {
		return errors.New("Gemini API request failed")
	}

	var errResp geminiResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil && errResp.Error.Message != "" {
		return fmt.Errorf("Gemini API error %d: %s - %s", status, errResp.Error.Status, errResp.Error.Message)
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("Gemini API error: %d %s", status, msg)
}

func shouldRetryGemini(status int, err error) bool {
	if err != nil {
		return true
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status >= 500
}

func geminiDefaultBackoff(attempt int) time.Duration {
	base := float64(defaultGeminiBackoffSec) * float64(time.Second)
	factor := math.Pow(2, float64(attempt-1))
	jitter := 0.5 + rand.Float64()
	return time.Duration(base * factor * jitter)
}
