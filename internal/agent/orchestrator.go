package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/llm"
	"github.com/seenimoa/stockbrief/pkg/models"
)

// User-facing messages returned in place of a report.
const (
	MsgEmptyCompany = "Please enter a company name."
	MsgGeneration   = "Sorry, there was an error getting the AI assessment."
)

// MsgResolution is the message for a company whose ticker could not be found.
func MsgResolution(company string) string {
	return fmt.Sprintf("Sorry, I could not find a ticker symbol for %q.", company)
}

// MsgFetch is the message for a ticker without retrievable data.
func MsgFetch(ticker models.Ticker) string {
	return fmt.Sprintf("Sorry, financial data for %s could not be retrieved.", ticker)
}

// SummaryFetcher returns the financial summary of a ticker.
type SummaryFetcher interface {
	Fetch(ctx context.Context, ticker models.Ticker) (*models.FinancialSummary, error)
}

// HeadlineSource returns recent headlines for a ticker.
type HeadlineSource interface {
	GetHeadlines(ctx context.Context, ticker models.Ticker, limit int) ([]models.Headline, error)
}

// OrchestratorConfig holds configuration for creating an Orchestrator.
type OrchestratorConfig struct {
	Provider      llm.Provider
	Fetcher       SummaryFetcher
	Headlines     HeadlineSource // optional
	HeadlineLimit int            // 0 disables headlines
	ChatOptions   *llm.ChatOptions
	StrictReport  bool
	Logger        logrus.FieldLogger
}

// Orchestrator sequences resolver, fetcher and generator for one company.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	resolver      *Resolver
	fetcher       SummaryFetcher
	generator     *Generator
	headlines     HeadlineSource
	headlineLimit int
	logger        logrus.FieldLogger
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		resolver:      NewResolver(cfg.Provider, cfg.ChatOptions, logger),
		fetcher:       cfg.Fetcher,
		generator:     NewGenerator(cfg.Provider, cfg.ChatOptions, cfg.StrictReport, logger),
		headlines:     cfg.Headlines,
		headlineLimit: cfg.HeadlineLimit,
		logger:        logger.WithField("component", "orchestrator"),
	}
}

// Resolver returns the ticker resolver.
func (o *Orchestrator) Resolver() *Resolver { return o.resolver }

// Fetcher returns the summary fetcher.
func (o *Orchestrator) Fetcher() SummaryFetcher { return o.fetcher }

// Run executes the pipeline and returns the report markdown or a
// user-facing message. It never returns an error.
func (o *Orchestrator) Run(ctx context.Context, company string) string {
	return o.Analyze(ctx, company).Message
}

// Analyze executes the pipeline and returns its structured outcome. A failed
// stage stops the run; its error is in Err and Message explains it.
func (o *Orchestrator) Analyze(ctx context.Context, company string) *models.Analysis {
	start := time.Now()
	q := models.CompanyQuery{Name: company}
	a := &models.Analysis{
		RunID:   uuid.NewString(),
		Company: q.Trimmed(),
		Stage:   models.StageInput,
	}
	log := o.logger.WithFields(logrus.Fields{
		"run_id":  a.RunID,
		"company": a.Company,
	})
	defer func() {
		a.Duration = time.Since(start)
		entry := log.WithFields(logrus.Fields{
			"ticker":  a.Ticker,
			"stage":   a.Stage,
			"elapsed": a.Duration.Round(time.Millisecond).String(),
		})
		if a.Err != nil {
			entry.WithError(a.Err).Warn("analysis failed")
			return
		}
		entry.Info("analysis complete")
	}()

	if q.IsEmpty() {
		a.Message, a.Err = MsgEmptyCompany, ErrEmptyCompany
		return a
	}

	a.Stage = models.StageResolve
	ticker, err := o.resolver.Resolve(ctx, a.Company)
	if err != nil {
		a.Message, a.Err = MsgResolution(a.Company), err
		return a
	}
	a.Ticker = ticker
	log.WithField("ticker", ticker).Debug("ticker resolved")

	a.Stage = models.StageFetch
	summary, err := o.fetcher.Fetch(ctx, ticker)
	if err != nil {
		a.Message, a.Err = MsgFetch(ticker), err
		return a
	}
	a.Summary = summary

	headlines := o.recentHeadlines(ctx, ticker, log)

	a.Stage = models.StageGenerate
	rep, err := o.generator.Generate(ctx, ticker, summary.Text(), headlines)
	if err != nil {
		a.Message, a.Err = MsgGeneration, err
		return a
	}
	a.Report = rep
	a.Stage = models.StageDone
	a.Message = rep.Markdown
	return a
}

// recentHeadlines is best effort: failures are logged and yield nil.
func (o *Orchestrator) recentHeadlines(ctx context.Context, ticker models.Ticker, log logrus.FieldLogger) []models.Headline {
	if o.headlines == nil || o.headlineLimit <= 0 {
		return nil
	}
	items, err := o.headlines.GetHeadlines(ctx, ticker, o.headlineLimit)
	if err != nil {
		log.WithError(err).Warn("headlines unavailable")
		return nil
	}
	return items
}
