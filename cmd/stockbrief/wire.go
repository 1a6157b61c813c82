package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/agent"
	"github.com/seenimoa/stockbrief/internal/analysis/fundamental"
	"github.com/seenimoa/stockbrief/internal/config"
	"github.com/seenimoa/stockbrief/internal/datasource"
	"github.com/seenimoa/stockbrief/internal/llm"
)

// newFetcher builds the summary fetcher over Yahoo quoteSummary, with the
// finance-go quote as a secondary source when enabled.
func newFetcher(cfg *config.Config, logger logrus.FieldLogger) *fundamental.Fetcher {
	client := &http.Client{Timeout: time.Duration(cfg.DataSource.TimeoutSec) * time.Second}

	sources := []datasource.InfoSource{
		datasource.NewYFinance(
			datasource.WithYahooBaseURL(cfg.DataSource.YahooBaseURL),
			datasource.WithYahooCookieURL(cfg.DataSource.YahooCookieURL),
			datasource.WithYahooHTTPClient(client),
			datasource.WithYahooRateLimit(cfg.DataSource.RateLimit),
			datasource.WithYahooLogger(logger),
		),
	}
	if cfg.DataSource.UseEquity {
		sources = append(sources, datasource.NewEquity())
	}
	return fundamental.NewFetcher(datasource.NewAggregator(logger, sources...))
}

// newOrchestrator constructs the model client once and the pipeline around it.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*agent.Orchestrator, error) {
	router, err := llm.NewRouterFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("LLM setup failed: %w", err)
	}

	var headlines agent.HeadlineSource
	if cfg.Analysis.Headlines > 0 {
		client := &http.Client{Timeout: time.Duration(cfg.DataSource.TimeoutSec) * time.Second}
		headlines = datasource.NewHeadlines(cfg.DataSource.RSSBaseURL, client)
	}

	return agent.NewOrchestrator(agent.OrchestratorConfig{
		Provider:      router,
		Fetcher:       newFetcher(cfg, logger),
		Headlines:     headlines,
		HeadlineLimit: cfg.Analysis.Headlines,
		ChatOptions: &llm.ChatOptions{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		StrictReport: cfg.Analysis.StrictReport,
		Logger:       logger,
	}), nil
}
