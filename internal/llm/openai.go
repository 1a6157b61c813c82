package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// openaiModels lists commonly available OpenAI models.
var openaiModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
}

// OpenAIProvider implements Provider over the Chat Completions API. It also
// serves OpenAI-compatible endpoints through WithOpenAIBaseURL.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*openaiSettings)

type openaiSettings struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openaiSettings) { s.model = model }
}

// WithOpenAIBaseURL points the SDK at a different endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *openaiSettings) { s.baseURL = url }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(s *openaiSettings) { s.httpClient = client }
}

// WithOpenAIGeneration sets default temperature and output token limit.
func WithOpenAIGeneration(temperature float64, maxTokens int) OpenAIOption {
	return func(s *openaiSettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := openaiSettings{
		model:      "gpt-4o-mini",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(s.httpClient),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}

	return &OpenAIProvider{
		client:      openai.NewClient(reqOpts...),
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string     { return ProviderOpenAI }
func (p *OpenAIProvider) Models() []string { return openaiModels }

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := resolveModel(opts, p.model)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if t := resolveTemperature(opts, p.temperature); t > 0 {
		params.Temperature = openai.Float(t)
	}
	if n := resolveMaxTokens(opts, p.maxTokens); n > 0 {
		params.MaxCompletionTokens = openai.Int(int64(n))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	finish := FinishStop
	switch choice.FinishReason {
	case "length":
		finish = FinishLength
	case "content_filter":
		finish = FinishSafety
	}
	return &Response{
		Content:      choice.Message.Content,
		FinishReason: finish,
		Model:        resp.Model,
		Provider:     ProviderOpenAI,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderOpenAI, apiErr.StatusCode, apiErr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: openai: %v", ErrProviderDown, err)
}
