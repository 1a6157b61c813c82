// stockbrief: AI investment assessments for listed companies.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/stockbrief/api"
	"github.com/seenimoa/stockbrief/internal/config"
	"github.com/seenimoa/stockbrief/internal/logging"
	"github.com/seenimoa/stockbrief/internal/report"
	"github.com/seenimoa/stockbrief/pkg/models"
	"github.com/seenimoa/stockbrief/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	logger *logrus.Logger
)

// errAnalysisFailed marks a run that printed a user-facing message instead of a report.
var errAnalysisFailed = errors.New("analysis failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockbrief",
	Short: "stockbrief: AI investment assessments for listed companies",
	Long: `stockbrief resolves a company name to its ticker symbol, fetches a
fundamentals snapshot from Yahoo Finance and asks a generative model for a
five-part report ending in a BUY, HOLD or SELL recommendation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger = logging.New(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(tickerCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stockbrief %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [company name]",
	Short: "Generate an investment assessment for a company",
	Long: `Resolve the company's ticker, fetch its financial summary and print the
five-part assessment as markdown (or HTML with --html). --pdf also writes the
report to a PDF file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredential(); err != nil {
			return err
		}
		orch, err := newOrchestrator(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		company := strings.Join(args, " ")
		a := orch.Analyze(cmd.Context(), company)
		if !a.OK() {
			fmt.Fprintln(os.Stderr, a.Message)
			return fmt.Errorf("%w: %w", errAnalysisFailed, a.Err)
		}

		asHTML, _ := cmd.Flags().GetBool("html")
		if asHTML {
			html, err := report.ToHTML(a.Report.Markdown)
			if err != nil {
				return err
			}
			fmt.Println(html)
		} else {
			fmt.Println(report.StripCodeFences(a.Report.Markdown))
		}

		if path, _ := cmd.Flags().GetString("pdf"); path != "" {
			data, err := report.PDF(a.Report.Markdown, fmt.Sprintf("Analysis for %s – %s", a.Company, a.Ticker))
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			fmt.Fprintf(os.Stderr, "PDF written to %s\n", path)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("pdf", "", "also write the report to this PDF file")
	analyzeCmd.Flags().Bool("html", false, "print the report as HTML instead of markdown")
}

// --- Ticker Command ---

var tickerCmd = &cobra.Command{
	Use:   "ticker [company name]",
	Short: "Resolve a company name to its ticker symbol",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredential(); err != nil {
			return err
		}
		orch, err := newOrchestrator(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		ticker, err := orch.Resolver().Resolve(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(ticker)
		return nil
	},
}

// --- Summary Command ---

var summaryCmd = &cobra.Command{
	Use:   "summary [ticker]",
	Short: "Print the financial summary block for a ticker",
	Long: `Print the fixed-order financial summary that is sent to the model.
No model call is made. --exchange NSE|BSE|LSE appends the Yahoo suffix to a
plain code (e.g. "summary RELIANCE --exchange NSE" fetches RELIANCE.NS).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exchange, _ := cmd.Flags().GetString("exchange")
		ticker := models.Ticker(utils.ToYahooSymbol(args[0], exchange))
		if !ticker.Valid() {
			return fmt.Errorf("invalid ticker %q", args[0])
		}

		text, err := newFetcher(cfg, logger).FetchText(cmd.Context(), ticker)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	summaryCmd.Flags().String("exchange", "", "exchange of a plain code: NSE, BSE or LSE")
}

// --- Serve Command (HTTP server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form and HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredential(); err != nil {
			return err
		}
		orch, err := newOrchestrator(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}
		fmt.Printf("Starting stockbrief server on %s\n", cfg.Addr())
		return api.NewServer(cfg, orch, logger).ListenAndServe(cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and API key status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  stockbrief: System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Provider:  %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
		if len(cfg.LLM.Fallbacks) > 0 {
			fmt.Printf("    Fallbacks:     %s\n", strings.Join(cfg.LLM.Fallbacks, ", "))
		}
		fmt.Printf("    Data Source:   %s (finance-go fallback: %t)\n", cfg.DataSource.YahooBaseURL, cfg.DataSource.UseEquity)
		fmt.Printf("    Strict Report: %t\n", cfg.Analysis.StrictReport)
		fmt.Printf("    Headlines:     %d\n", cfg.Analysis.Headlines)
		fmt.Printf("    API Server:    %s\n", cfg.Addr())
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			name := k.Name + ":"
			if k.Primary {
				name = k.Name + " *:"
			}
			fmt.Printf("    %-25s %s\n", name, status)
		}
		if err := cfg.RequireCredential(); err != nil {
			fmt.Printf("\n  ! %v\n", err)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
