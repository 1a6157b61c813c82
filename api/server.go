// Package api provides the HTTP server for stockbrief.
//
// It serves the analysis form at / and a small JSON API under /api/v1 for
// full analyses, ticker resolution, financial summaries and PDF reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/stockbrief/internal/agent"
	"github.com/seenimoa/stockbrief/internal/config"
	"github.com/seenimoa/stockbrief/web"
)

// DefaultRequestTimeout bounds a request when api.request_timeout is unset.
const DefaultRequestTimeout = 120 * time.Second

// Server is the HTTP server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	orch   *agent.Orchestrator
	pages  *template.Template
	logger logrus.FieldLogger
}

// NewServer creates a configured server with all routes and middleware.
// The orchestrator is built by the caller so the model client is created
// once at startup and shared by every request.
func NewServer(cfg *config.Config, orch *agent.Orchestrator, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	srv := &Server{
		cfg:    cfg,
		orch:   orch,
		pages:  web.Templates(),
		logger: logger.WithField("component", "api"),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then shuts down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.requestTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg == nil || s.cfg.API.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(s.cfg.API.RequestTimeout) * time.Second
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&requestLogger{logger: s.logger}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout()))

	// Health check
	r.Get("/health", s.handleHealth)

	// Form page
	r.Get("/", s.handleIndex)
	r.Post("/", s.handleIndexSubmit)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(s.corsOptions()))

		r.Get("/health", s.handleHealth)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/ticker", s.handleTicker)
		r.Get("/summary/{ticker}", s.handleSummary)
		r.Get("/report.pdf", s.handleReportPDF)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// AnalyzeRequest is the body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	CompanyName string `json:"company_name"`
}

// TickerResponse is the data of GET /api/v1/ticker.
type TickerResponse struct {
	Company string `json:"company"`
	Ticker  string `json:"ticker"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
