// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"repo_onboarder/pkg/llm"
)

// Config holds runtime configuration.
type Config struct {
	ListenAddr    string
	IPAllowlist   []string
	DBPath        string
	WorkspaceBase string
	SessionTTLSec int
	MaxWorkers    int
	GitHubToken   string

	LLMProvider       string
	LLMAPIBaseURL     string
	LLMAPIKey         string
	LLMAPIModel       string
	LLMMaxTokens      int
	LLMTimeoutSeconds int
	LLMMaxAttempts    int

	ProfileOverrides string
	LogJSON          bool
}

const (
	defaultListenAddr    = ":8080"
	defaultDBPath        = "./repo_onboarder.db"
	defaultWorkspaceBase = "./workspaces"
	defaultSessionTTLSec = 3600
	defaultMaxWorkers    = 2
	defaultLLMProvider   = "gemini"
	defaultLLMTimeout    = 300
	defaultLLMAttempts   = 5
)

// Load loads configuration from environment variables.
func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

// LoadFromEnv loads configuration from a getenv-like function.
func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		ListenAddr:    getOrDefault(getenv, "LISTEN_ADDR", defaultListenAddr),
		IPAllowlist:   parseList(getenv("IP_ALLOWLIST")),
		DBPath:        getOrDefault(getenv, "DB_PATH", defaultDBPath),
		WorkspaceBase: getOrDefault(getenv, "WORKSPACE_BASE", defaultWorkspaceBase),
		SessionTTLSec: getIntOrDefault(getenv, "SESSION_TTL_SECONDS", defaultSessionTTLSec),
		MaxWorkers:    getIntOrDefault(getenv, "MAX_WORKERS", defaultMaxWorkers),
		GitHubToken:   getenv("GITHUB_TOKEN"),

		LLMProvider:       getOrDefault(getenv, "LLM_PROVIDER", defaultLLMProvider),
		LLMAPIBaseURL:     getenv("LLM_API_BASE_URL"),
		LLMAPIKey:         getenv("LLM_API_KEY"),
		LLMAPIModel:       getenv("LLM_API_MODEL"),
		LLMMaxTokens:      getIntOrDefault(getenv, "LLM_MAX_TOKENS", 0),
		LLMTimeoutSeconds: getIntOrDefault(getenv, "LLM_TIMEOUT_SECONDS", defaultLLMTimeout),
		LLMMaxAttempts:    getIntOrDefault(getenv, "LLM_MAX_ATTEMPTS", defaultLLMAttempts),

		ProfileOverrides: getenv("PROFILE_OVERRIDES"),
		LogJSON:          getBoolOrDefault(getenv, "LOG_JSON", false),
	}

	if cfg.LLMAPIBaseURL == "" || cfg.LLMAPIKey == "" || cfg.LLMAPIModel == "" {
		return Config{}, errors.New("LLM_API_BASE_URL, LLM_API_KEY, and LLM_API_MODEL are required")
	}
	switch llm.ProviderType(cfg.LLMProvider) {
	case llm.ProviderGemini, llm.ProviderClaude:
	default:
		return Config{}, errors.New("LLM_PROVIDER must be gemini or claude")
	}

	return cfg, nil
}

// ProviderConfig builds the provider configuration from the loaded
// environment.
func (c Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Type:           llm.ProviderType(c.LLMProvider),
		BaseURL:        c.LLMAPIBaseURL,
		APIKey:         c.LLMAPIKey,
		Model:          c.LLMAPIModel,
		MaxTokens:      c.LLMMaxTokens,
		TimeoutSeconds: c.LLMTimeoutSeconds,
		MaxAttempts:    c.LLMMaxAttempts,
	}
}

func getOrDefault(getenv func(string) string, key, def string) string {
	val := getenv(key)
	if val == "" {
		return def
	}
	return val
}

func getIntOrDefault(getenv func(string) string, key string, def int) int {
	val := getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getBoolOrDefault(getenv func(string) string, key string, def bool) bool {
	val := strings.ToLower(getenv(key))
	if val == "" {
		return def
	}
	return val == "true" || val == "1" || val == "yes"
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	if strings.Contains(value, ",") {
		parts = strings.Split(value, ",")
	} else {
		parts = strings.Fields(value)
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
