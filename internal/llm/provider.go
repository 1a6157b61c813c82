// Package llm provides a unified interface over the generative model
// providers (Gemini, OpenAI, Anthropic, Ollama) and a router with
// fallback between them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrContextLength = errors.New("llm: context length exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrNoProviders   = errors.New("llm: no providers configured")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
	FinishSafety FinishReason = "safety"
	FinishOther  FinishReason = "other"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response represents a complete response from the LLM.
type Response struct {
	Content      string        `json:"content"`
	FinishReason FinishReason  `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Latency      time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatOptions configures a single chat request.
type ChatOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Provider is the interface that all LLM backends implement.
// Implementations are safe for concurrent use once constructed.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "ollama").
	Name() string

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// Models returns the list of well-known models for this provider.
	Models() []string
}

// ProviderConfig holds common configuration for creating an LLM provider.
type ProviderConfig struct {
	APIKey      string        `json:"api_key,omitempty"`
	BaseURL     string        `json:"base_url,omitempty"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultProviderConfig returns defaults for provider configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Model:       "gemini-2.5-flash",
		Temperature: 0.2,
		MaxTokens:   8192,
		Timeout:     120 * time.Second,
	}
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if len(truncated) > 100 {
		truncated = truncated[:100] + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %d tokens, %v",
		r.Provider, r.Model, truncated, r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}

// splitSystem separates system messages (joined by blank lines) from the
// conversation turns.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}

// classifyStatus maps an upstream HTTP status to one of the package sentinels.
func classifyStatus(provider string, status int, msg string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %s", ErrNoAPIKey, provider, msg)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: %s", ErrRateLimit, provider, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", ErrInvalidModel, provider, msg)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "api key"):
		return fmt.Errorf("%w: %s: %s", ErrNoAPIKey, provider, msg)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "context"):
		return fmt.Errorf("%w: %s: %s", ErrContextLength, provider, msg)
	case status >= 500:
		return fmt.Errorf("%w: %s: HTTP %d: %s", ErrProviderDown, provider, status, msg)
	}
	return fmt.Errorf("%s: HTTP %d: %s", provider, status, msg)
}

func resolveModel(opts *ChatOptions, fallback string) string {
	if opts != nil && opts.Model != "" {
		return opts.Model
	}
	return fallback
}

func resolveTemperature(opts *ChatOptions, fallback float64) float64 {
	if opts != nil && opts.Temperature > 0 {
		return opts.Temperature
	}
	return fallback
}

func resolveMaxTokens(opts *ChatOptions, fallback int) int {
	if opts != nil && opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return fallback
}
