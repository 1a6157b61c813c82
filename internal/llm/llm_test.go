package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/stockbrief/internal/config"
	"github.com/seenimoa/stockbrief/internal/logging"
)

// ════════════════════════════════════════════════════════════════════
// provider.go: Types & Helpers
// ════════════════════════════════════════════════════════════════════

func TestMessageConstructors(t *testing.T) {
	assert.Equal(t, Message{Role: RoleSystem, Content: "You are an analyst."}, SystemMessage("You are an analyst."))
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, UserMessage("hello"))
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hi"}, AssistantMessage("hi"))
}

func TestResponseString(t *testing.T) {
	r := &Response{
		Provider: "gemini", Model: "gemini-2.5-flash",
		Content: "short answer",
		Usage:   Usage{TotalTokens: 50},
		Latency: 100 * time.Millisecond,
	}
	s := r.String()
	assert.Contains(t, s, "gemini/gemini-2.5-flash")
	assert.Contains(t, s, "50 tokens")

	r.Content = strings.Repeat("x", 200)
	assert.Contains(t, r.String(), "...")
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		SystemMessage("one"),
		UserMessage("question"),
		SystemMessage("two"),
	})
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleUser, turns[0].Role)
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus("x", 401, "bad key"), ErrNoAPIKey)
	assert.ErrorIs(t, classifyStatus("x", 403, "denied"), ErrNoAPIKey)
	assert.ErrorIs(t, classifyStatus("x", 400, "API key not valid"), ErrNoAPIKey)
	assert.ErrorIs(t, classifyStatus("x", 429, "quota"), ErrRateLimit)
	assert.ErrorIs(t, classifyStatus("x", 404, "no such model"), ErrInvalidModel)
	assert.ErrorIs(t, classifyStatus("x", 400, "context window exceeded"), ErrContextLength)
	assert.ErrorIs(t, classifyStatus("x", 503, "overloaded"), ErrProviderDown)

	err := classifyStatus("x", 418, "teapot")
	assert.Contains(t, err.Error(), "HTTP 418")
	assert.False(t, isNonRetryable(err))
}

func TestResolveHelpers(t *testing.T) {
	assert.Equal(t, "m", resolveModel(nil, "m"))
	assert.Equal(t, "o", resolveModel(&ChatOptions{Model: "o"}, "m"))
	assert.Equal(t, 0.5, resolveTemperature(&ChatOptions{}, 0.5))
	assert.Equal(t, 0.9, resolveTemperature(&ChatOptions{Temperature: 0.9}, 0.5))
	assert.Equal(t, 10, resolveMaxTokens(nil, 10))
	assert.Equal(t, 20, resolveMaxTokens(&ChatOptions{MaxTokens: 20}, 10))
}

// ════════════════════════════════════════════════════════════════════
// gemini.go
// ════════════════════════════════════════════════════════════════════

func TestGeminiProviderNew(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewGeminiProvider(context.Background(), "AIza-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
	assert.Contains(t, p.Models(), "gemini-2.5-flash")
}

func TestGeminiChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req, "systemInstruction")
		contents, _ := req["contents"].([]any)
		assert.Len(t, contents, 1, "system message must not be sent as a turn")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "AA"}, {"text": "PL"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 2, "totalTokenCount": 14},
			"modelVersion": "gemini-2.5-flash"
		}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "AIza-test",
		WithGeminiBaseURL(server.URL),
		WithGeminiGeneration(0.2, 256),
	)
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), []Message{
		SystemMessage("Answer with a ticker."),
		UserMessage("Apple"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", resp.Content)
	assert.Equal(t, ProviderGemini, resp.Provider)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestGeminiChatNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates": [{"finishReason": "SAFETY"}]}`)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "AIza-test", WithGeminiBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []Message{UserMessage("Apple")}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiErrorHandling(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{429, `{"error": {"code": 429, "message": "Resource exhausted", "status": "RESOURCE_EXHAUSTED"}}`, ErrRateLimit},
		{404, `{"error": {"code": 404, "message": "models/nope is not found", "status": "NOT_FOUND"}}`, ErrInvalidModel},
		{500, `{"error": {"code": 500, "message": "internal", "status": "INTERNAL"}}`, ErrProviderDown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p, err := NewGeminiProvider(context.Background(), "AIza-test", WithGeminiBaseURL(server.URL))
			require.NoError(t, err)
			_, err = p.Chat(context.Background(), []Message{UserMessage("Apple")}, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGeminiRequiresUserTurn(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), "AIza-test")
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), []Message{SystemMessage("only system")}, nil)
	assert.Error(t, err)
}

// ════════════════════════════════════════════════════════════════════
// anthropic.go
// ════════════════════════════════════════════════════════════════════

func TestAnthropicProviderNew(t *testing.T) {
	_, err := NewAnthropicProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewAnthropicProvider("sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
	assert.NotEmpty(t, p.Models())
}

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-20250514", req["model"])
		assert.Contains(t, req, "system")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_01", "type": "message", "role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "### 1) Company Overview"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 40, "output_tokens": 9}
		}`)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider("sk-ant-test", WithAnthropicBaseURL(server.URL))
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), []Message{
		SystemMessage("You are an expert financial analyst."),
		UserMessage("Report please"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "### 1) Company Overview", resp.Content)
	assert.Equal(t, ProviderAnthropic, resp.Provider)
	assert.Equal(t, 49, resp.Usage.TotalTokens)
	assert.Equal(t, FinishStop, resp.FinishReason)
}

func TestAnthropicErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`)
	}))
	defer server.Close()

	p, err := NewAnthropicProvider("sk-ant-bad", WithAnthropicBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.True(t, isNonRetryable(err))
}

// ════════════════════════════════════════════════════════════════════
// openai.go
// ════════════════════════════════════════════════════════════════════

func TestOpenAIProviderNew(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	p, err := NewOpenAIProvider("sk-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
}

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		msgs, _ := req["messages"].([]any)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "VOD.L"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 3, "total_tokens": 33}
		}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	require.NoError(t, err)

	resp, err := p.Chat(context.Background(), []Message{
		SystemMessage("ticker only"),
		UserMessage("Vodafone"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "VOD.L", resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 33, resp.Usage.TotalTokens)
}

func TestOpenAIErrorHandling(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	assert.ErrorIs(t, err, ErrRateLimit)
	assert.Equal(t, int32(1), calls.Load(), "the SDK must not retry on its own")
}

// ════════════════════════════════════════════════════════════════════
// ollama.go
// ════════════════════════════════════════════════════════════════════

func TestOllamaProviderNew(t *testing.T) {
	p, err := NewOllamaProvider("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", p.baseURL)
	assert.Equal(t, ProviderOllama, p.Name())
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5:7b", req.Model)
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 512, req.Options.NumPredict)

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "qwen2.5:7b",
			Message:         ollamaMessage{Role: "assistant", Content: "RELIANCE.NS"},
			Done:            true,
			PromptEvalCount: 15,
			EvalCount:       8,
		})
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL, WithOllamaGeneration(0, 512))
	resp, err := p.Chat(context.Background(), []Message{UserMessage("Reliance Industries")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "RELIANCE.NS", resp.Content)
	assert.Equal(t, 23, resp.Usage.TotalTokens)
}

func TestOllamaHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL, WithOllamaModel("nope"))
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestOllamaEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: "  "}, Done: true})
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL)
	_, err := p.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// ════════════════════════════════════════════════════════════════════
// router.go: Router tests
// ════════════════════════════════════════════════════════════════════

// mockProvider implements Provider for testing the router.
type mockProvider struct {
	name     string
	chatFunc func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)
}

func (m *mockProvider) Name() string     { return m.name }
func (m *mockProvider) Models() []string { return []string{m.name + "-model"} }
func (m *mockProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if m.chatFunc != nil {
		return m.chatFunc(ctx, messages, opts)
	}
	return &Response{Content: "mock response", Provider: m.name}, nil
}

func quietRouter(primary string, opts ...RouterOption) *Router {
	return NewRouter(primary, append(opts, WithLogger(logging.Discard()))...)
}

func TestRouterBasic(t *testing.T) {
	r := quietRouter("primary")
	r.RegisterProvider(&mockProvider{name: "primary"})

	p, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, "primary", p.Name())
	assert.Equal(t, []string{"primary"}, r.ProviderNames())
	assert.Equal(t, "router/primary", r.Name())
}

func TestRouterPrimaryMissing(t *testing.T) {
	r := quietRouter("ghost")
	_, err := r.Primary()
	assert.ErrorIs(t, err, ErrNoProviders)

	_, err = r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRouterNoRetryByDefault(t *testing.T) {
	var calls int
	r := quietRouter("main")
	r.RegisterProvider(&mockProvider{
		name: "main",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			return nil, fmt.Errorf("%w: down", ErrProviderDown)
		},
	})

	_, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrProviderDown)
	assert.Equal(t, 1, calls)
}

func TestRouterRetries(t *testing.T) {
	var calls int
	r := quietRouter("main", WithMaxRetries(2), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(&mockProvider{
		name: "main",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			if calls < 3 {
				return nil, ErrRateLimit
			}
			return &Response{Content: "ok"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestRouterFallback(t *testing.T) {
	var calls int
	var backupModel string
	r := quietRouter("primary", WithFallbacks("backup"))
	r.RegisterProvider(&mockProvider{
		name: "primary",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			return nil, fmt.Errorf("%w: primary down", ErrProviderDown)
		},
	})
	r.RegisterProvider(&mockProvider{
		name: "backup",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			calls++
			backupModel = opts.Model
			return &Response{Content: "from backup", Provider: "backup"}, nil
		},
	})

	resp, err := r.Chat(context.Background(), []Message{UserMessage("test")}, &ChatOptions{Model: "primary-only", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, 2, calls)
	assert.Empty(t, backupModel, "primary model name must not leak to the fallback")
}

func TestRouterAllFail(t *testing.T) {
	r := quietRouter("a", WithFallbacks("b"))
	for _, name := range []string{"a", "b"} {
		r.RegisterProvider(&mockProvider{
			name: name,
			chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
				return nil, fmt.Errorf("%w: %s", ErrProviderDown, "x")
			},
		})
	}

	_, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.ErrorIs(t, err, ErrProviderDown)
}

func TestRouterNonRetryableStopsChain(t *testing.T) {
	var backupCalled bool
	r := quietRouter("a", WithFallbacks("b"), WithMaxRetries(3))
	r.RegisterProvider(&mockProvider{
		name: "a",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			return nil, fmt.Errorf("%w: invalid", ErrNoAPIKey)
		},
	})
	r.RegisterProvider(&mockProvider{
		name: "b",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			backupCalled = true
			return &Response{Content: "b"}, nil
		},
	})

	_, err := r.Chat(context.Background(), []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.False(t, backupCalled)
}

func TestRouterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := quietRouter("a", WithFallbacks("b"))
	r.RegisterProvider(&mockProvider{
		name: "a",
		chatFunc: func(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
			cancel()
			return nil, ctx.Err()
		},
	})
	r.RegisterProvider(&mockProvider{name: "b"})

	_, err := r.Chat(ctx, []Message{UserMessage("x")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouterModelsInChainOrder(t *testing.T) {
	r := quietRouter("a", WithFallbacks("b", "a"))
	r.RegisterProvider(&mockProvider{name: "b"})
	r.RegisterProvider(&mockProvider{name: "a"})

	assert.Equal(t, []string{"a-model", "b-model"}, r.Models())
	assert.Equal(t, []string{"a", "b"}, r.ProviderNames())
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Primary:    "gemini",
		Fallbacks:  []string{"anthropic", "ollama"},
		GeminiKey:  "AIza-test",
		Model:      "gemini-2.5-flash",
		OllamaURL:  "http://localhost:11434",
		TimeoutSec: 5,
	}}

	r, err := NewRouterFromConfig(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	// anthropic has no key and is skipped
	assert.Equal(t, []string{"gemini", "ollama"}, r.ProviderNames())
}

func TestNewRouterFromConfigPrimaryWithoutKey(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{Primary: "openai"}}
	_, err := NewRouterFromConfig(context.Background(), cfg, logging.Discard())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
