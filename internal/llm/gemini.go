package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiModels lists commonly available Gemini models.
var geminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash",
}

// GeminiProvider implements Provider over the Google Gen AI SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) { s.model = model }
}

// WithGeminiBaseURL points the SDK at a different endpoint.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// WithGeminiHTTPClient sets a custom HTTP client.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(s *geminiSettings) { s.httpClient = client }
}

// WithGeminiGeneration sets default temperature and output token limit.
func WithGeminiGeneration(temperature float64, maxTokens int) GeminiOption {
	return func(s *geminiSettings) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// NewGeminiProvider creates a Gemini provider. The SDK client is built once
// here and shared by every request.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	s := geminiSettings{
		model:      "gemini-2.5-flash",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(&s)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       s.model,
		temperature: s.temperature,
		maxTokens:   s.maxTokens,
	}, nil
}

func (p *GeminiProvider) Name() string     { return ProviderGemini }
func (p *GeminiProvider) Models() []string { return geminiModels }

// Chat sends a generate content request to Gemini.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model := resolveModel(opts, p.model)

	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, fmt.Errorf("gemini: at least one user message is required")
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	gc := &genai.GenerateContentConfig{}
	if t := resolveTemperature(opts, p.temperature); t > 0 {
		gc.Temperature = genai.Ptr(float32(t))
	}
	if n := resolveMaxTokens(opts, p.maxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return nil, p.wrapError(err)
	}

	text, finish := geminiText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned no text (finish reason %s)", ErrEmptyResponse, finish)
	}

	r := &Response{
		Content:      text,
		FinishReason: finish,
		Model:        model,
		Provider:     ProviderGemini,
		Latency:      time.Since(start),
	}
	if resp.ModelVersion != "" {
		r.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		r.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return r, nil
}

// geminiText joins the text parts of the first candidate that has any.
func geminiText(resp *genai.GenerateContentResponse) (string, FinishReason) {
	if resp == nil {
		return "", FinishOther
	}
	finish := FinishOther
	for _, c := range resp.Candidates {
		finish = geminiFinish(c.FinishReason)
		if c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), finish
		}
	}
	return "", finish
}

func geminiFinish(r genai.FinishReason) FinishReason {
	switch r {
	case genai.FinishReasonStop:
		return FinishStop
	case genai.FinishReasonMaxTokens:
		return FinishLength
	case genai.FinishReasonSafety:
		return FinishSafety
	}
	return FinishOther
}

func (p *GeminiProvider) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(ProviderGemini, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(ProviderGemini, apiErrPtr.Code, apiErrPtr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: gemini: %v", ErrProviderDown, err)
}
