package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/agent/prompts"
	"github.com/seenimoa/stockbrief/internal/llm"
	"github.com/seenimoa/stockbrief/internal/report"
	"github.com/seenimoa/stockbrief/pkg/models"
)

// ErrGeneration is returned when no usable report could be produced.
var ErrGeneration = errors.New("agent: report generation failed")

// Generator asks the model for the five-section assessment of a summary.
type Generator struct {
	provider llm.Provider
	opts     *llm.ChatOptions
	strict   bool
	logger   logrus.FieldLogger
}

// NewGenerator creates a generator. In strict mode a reply without the five
// headings or a verdict is an error.
func NewGenerator(provider llm.Provider, opts *llm.ChatOptions, strict bool, logger logrus.FieldLogger) *Generator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Generator{provider: provider, opts: opts, strict: strict, logger: logger.WithField("component", "generator")}
}

// Generate returns the report for summary. Markdown holds the model's reply
// unmodified; the parsed shape fills the remaining fields.
func (g *Generator) Generate(ctx context.Context, ticker models.Ticker, summary string, headlines []models.Headline) (*models.AssessmentReport, error) {
	messages := []llm.Message{
		llm.SystemMessage(prompts.AnalystSystem),
		llm.UserMessage(prompts.Report(summary, headlines)),
	}

	resp, err := g.provider.Chat(ctx, messages, g.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	rep := report.Parse(resp.Content)
	rep.Markdown = resp.Content
	rep.Ticker = ticker
	rep.Model = resp.Model
	rep.Provider = resp.Provider

	if err := report.Validate(rep); err != nil {
		if g.strict {
			return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		g.logger.WithError(err).WithField("ticker", ticker).Warn("report shape check failed")
	}
	if resp.FinishReason == llm.FinishLength {
		g.logger.WithField("ticker", ticker).Warn("report truncated at token limit")
	}
	return rep, nil
}
