package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/config"
)

// Router routes LLM requests to the primary provider and walks the
// configured fallback chain when it fails. It is built once at startup
// and shared by all requests.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	logger     logrus.FieldLogger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router logger.
func WithLogger(l logrus.FieldLogger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a new LLM router with the given primary provider.
// By default a failed call is not retried.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Provider),
		primary:    primary,
		maxRetries: 0,
		retryDelay: 1 * time.Second,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "llm_router")
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
// It tries the primary provider first, then falls back in order.
// opts.Model only applies to the primary; fallbacks use their own default.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	tried := 0
	for i, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		tried++

		callOpts := opts
		if i > 0 && opts != nil && opts.Model != "" {
			o := *opts
			o.Model = ""
			callOpts = &o
		}

		resp, err := r.chatWithRetry(ctx, provider, messages, callOpts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.logger.WithError(err).WithField("provider", providerName).Warn("provider failed")

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Don't fallback on certain errors
		if isNonRetryable(err) {
			return nil, err
		}
	}
	if tried == 0 {
		return nil, fmt.Errorf("%w: none of %v registered", ErrNoProviders, chain)
	}
	if tried == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// Name returns the name of the primary provider (satisfies Provider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Models returns the union of models from all registered providers (satisfies Provider).
func (r *Router) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []string
	seen := make(map[string]bool)
	for _, name := range r.chainLocked() {
		p, ok := r.providers[name]
		if !ok {
			continue
		}
		for _, m := range p.Models() {
			if !seen[m] {
				seen[m] = true
				all = append(all, m)
			}
		}
	}
	return all
}

// ProviderNames returns the registered providers in chain order.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for _, name := range r.chainLocked() {
		if _, ok := r.providers[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chainLocked()
}

func (r *Router) chainLocked() []string {
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		dup := false
		for _, c := range chain {
			if c == fb {
				dup = true
				break
			}
		}
		if !dup {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider Provider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// Don't retry non-retryable errors
		if isNonRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that another attempt cannot fix.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig creates a Router from the application config. The
// primary provider must be constructible; fallbacks without credentials are
// skipped with a warning.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Router, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	router := NewRouter(cfg.LLM.Primary,
		WithFallbacks(cfg.LLM.Fallbacks...),
		WithMaxRetries(cfg.LLM.MaxRetries),
		WithRetryDelay(time.Second),
		WithLogger(logger),
	)

	for i, name := range router.providerChain() {
		model, baseURL := config.DefaultModel(name), ""
		if i == 0 {
			model, baseURL = cfg.LLM.Model, cfg.LLM.BaseURL
		}
		p, err := newProvider(ctx, cfg, name, model, baseURL)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("llm: primary provider %s: %w", name, err)
			}
			logger.WithError(err).WithField("provider", name).Warn("skipping fallback provider")
			continue
		}
		router.RegisterProvider(p)
	}
	return router, nil
}

func newProvider(ctx context.Context, cfg *config.Config, name, model, baseURL string) (Provider, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSec) * time.Second
	httpClient := &http.Client{Timeout: timeout}
	temp, maxTokens := cfg.LLM.Temperature, cfg.LLM.MaxTokens

	switch name {
	case ProviderGemini:
		opts := []GeminiOption{
			WithGeminiModel(model),
			WithGeminiHTTPClient(httpClient),
			WithGeminiGeneration(temp, maxTokens),
		}
		if baseURL != "" {
			opts = append(opts, WithGeminiBaseURL(baseURL))
		}
		return NewGeminiProvider(ctx, cfg.LLM.GeminiKey, opts...)
	case ProviderOpenAI:
		opts := []OpenAIOption{
			WithOpenAIModel(model),
			WithOpenAIHTTPClient(httpClient),
			WithOpenAIGeneration(temp, maxTokens),
		}
		if baseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(baseURL))
		}
		return NewOpenAIProvider(cfg.LLM.OpenAIKey, opts...)
	case ProviderAnthropic:
		opts := []AnthropicOption{
			WithAnthropicModel(model),
			WithAnthropicHTTPClient(httpClient),
			WithAnthropicGeneration(temp, maxTokens),
		}
		if baseURL != "" {
			opts = append(opts, WithAnthropicBaseURL(baseURL))
		}
		return NewAnthropicProvider(cfg.LLM.AnthropicKey, opts...)
	case ProviderOllama:
		url := cfg.LLM.OllamaURL
		if baseURL != "" {
			url = baseURL
		}
		return NewOllamaProvider(url,
			WithOllamaModel(model),
			WithOllamaGeneration(temp, maxTokens),
		)
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProviders, name)
}
