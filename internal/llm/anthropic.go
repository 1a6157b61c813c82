package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicModels lists commonly available Claude models.
var anthropicModels = []string{
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
	"claude-3-5-haiku-20241022",
}

// AnthropicProvider implements Provider over the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(s *anthropicSettings) { s.model = model }
}

// WithAnthropicBaseURL points the SDK at a different endpoint.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(s *anthropicSettings) { s.baseURL = url }
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(s *anthropicSettings) { s.httpClient = client }
}

// WithAnthropicGeneration sets default temperature and output token limit.
func WithAnthropicGeneration(temperature float64, maxTokens int) AnthropicOption {
	return func(s *anthropicSettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := anthropicSettings{
		model:      "claude-sonnet-4-20250514",
		maxTokens:  4096,
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

	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string     { return ProviderAnthropic }
func (p *AnthropicProvider) Models() []string { return anthropicModels }

// Chat sends a Messages API request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := resolveModel(opts, p.model)

	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, fmt.Errorf("anthropic: at least one user message is required")
	}

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(resolveMaxTokens(opts, p.maxTokens)),
		Messages:  msgs,
	}
	if t := resolveTemperature(opts, p.temperature); t > 0 {
		params.Temperature = anthropic.Float(t)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: anthropic returned no text", ErrEmptyResponse)
	}

	finish := FinishStop
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		finish = FinishLength
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	return &Response{
		Content:      sb.String(),
		FinishReason: finish,
		Model:        string(resp.Model),
		Provider:     ProviderAnthropic,
		Latency:      time.Since(start),
		Usage: Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}

func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderAnthropic, apiErr.StatusCode, apiErr.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: anthropic: %v", ErrProviderDown, err)
}
