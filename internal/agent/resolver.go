// Package agent runs the company → ticker → summary → report pipeline.
// The resolver and generator each own one model conversation; the
// orchestrator sequences them and turns failures into user-facing text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/agent/prompts"
	"github.com/seenimoa/stockbrief/internal/llm"
	"github.com/seenimoa/stockbrief/pkg/models"
	"github.com/seenimoa/stockbrief/pkg/utils"
)

// ErrEmptyCompany is returned for an empty or whitespace-only company name.
var ErrEmptyCompany = errors.New("agent: empty company name")

// ErrTickerResolution is returned when the model call for a ticker fails.
var ErrTickerResolution = errors.New("agent: ticker resolution failed")

// Resolver asks the model for the ticker symbol of a company.
type Resolver struct {
	provider llm.Provider
	opts     *llm.ChatOptions
	logger   logrus.FieldLogger
}

// NewResolver creates a resolver. opts may be nil.
func NewResolver(provider llm.Provider, opts *llm.ChatOptions, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{provider: provider, opts: opts, logger: logger.WithField("component", "resolver")}
}

// Resolve returns the symbol for company. Transport and model errors wrap
// ErrTickerResolution; a reply that is not one symbol wraps
// utils.ErrMalformedTicker. No symbol is guessed on failure.
func (r *Resolver) Resolve(ctx context.Context, company string) (models.Ticker, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", ErrEmptyCompany
	}

	resp, err := r.provider.Chat(ctx, []llm.Message{llm.UserMessage(prompts.Ticker(company))}, r.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTickerResolution, err)
	}

	ticker, err := utils.ExtractTicker(resp.Content)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"company": company,
			"reply":   truncate(resp.Content, 80),
		}).Warn("unusable ticker reply")
		return "", fmt.Errorf("agent: resolve %q: %w", company, err)
	}
	return ticker, nil
}

// truncate shortens s to n runes for logging.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
