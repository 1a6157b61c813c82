package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/stockbrief/internal/agent"
	"github.com/seenimoa/stockbrief/internal/config"
	"github.com/seenimoa/stockbrief/internal/datasource"
	"github.com/seenimoa/stockbrief/internal/report"
	"github.com/seenimoa/stockbrief/pkg/models"
	"github.com/seenimoa/stockbrief/pkg/utils"
	"github.com/seenimoa/stockbrief/web"
)

// pageData feeds the index template.
type pageData struct {
	CompanyName    string
	Ticker         models.Ticker
	Result         template.HTML
	Recommendation models.Recommendation
	BadgeClass     string
	Failed         bool
}

// ============================================================
// Form page
// ============================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, pageData{})
}

// handleIndexSubmit runs the pipeline for the posted company name and renders
// the report, or the user-facing message in its place, as HTML.
func (s *Server) handleIndexSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	company := strings.TrimSpace(r.PostFormValue("company_name"))

	a := s.orch.Analyze(r.Context(), company)

	data := pageData{
		CompanyName: company,
		Ticker:      a.Ticker,
		Failed:      !a.OK(),
	}
	html, err := report.ToHTML(a.Message)
	if err != nil {
		s.logger.WithError(err).WithField("run_id", a.RunID).Error("markdown render failed")
		html = template.HTML("<pre>" + template.HTMLEscapeString(a.Message) + "</pre>")
	}
	data.Result = html
	if a.OK() {
		data.Recommendation = a.Report.Recommendation
		data.BadgeClass = report.RecommendationClass(a.Report.Recommendation)
	}
	s.renderPage(w, data)
}

func (s *Server) renderPage(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := s.pages.ExecuteTemplate(w, web.IndexTemplate, data); err != nil {
		s.logger.WithError(err).Error("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ============================================================
// API handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := s.orch.Analyze(r.Context(), req.CompanyName)
	if !a.OK() {
		writeJSON(w, analysisStatus(a), APIResponse{
			Success: false,
			Data:    a,
			Error:   a.Message,
		})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    a,
	})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(r.URL.Query().Get("company"))
	if company == "" {
		writeError(w, http.StatusBadRequest, agent.MsgEmptyCompany)
		return
	}

	ticker, err := s.orch.Resolver().Resolve(r.Context(), company)
	if err != nil {
		s.logger.WithError(err).WithField("company", company).Warn("ticker lookup failed")
		writeError(w, http.StatusUnprocessableEntity, agent.MsgResolution(company))
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    TickerResponse{Company: company, Ticker: ticker.String()},
	})
}

// handleSummary writes the plain-text financial summary block of a ticker.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ticker := models.Ticker(utils.NormalizeTicker(chi.URLParam(r, "ticker")))
	if !ticker.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ticker %q", chi.URLParam(r, "ticker")))
		return
	}

	summary, err := s.orch.Fetcher().Fetch(r.Context(), ticker)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("summary fetch failed")
		writeError(w, fetchStatus(err), agent.MsgFetch(ticker))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, summary.Text()) //nolint:errcheck
}

// handleReportPDF runs the full pipeline and returns the report as a PDF.
func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	a := s.orch.Analyze(r.Context(), r.URL.Query().Get("company"))
	if !a.OK() {
		writeError(w, analysisStatus(a), a.Message)
		return
	}

	title := fmt.Sprintf("Analysis for %s – %s", a.Company, a.Ticker)
	data, err := report.PDF(a.Report.Markdown, title)
	if err != nil {
		s.logger.WithError(err).WithField("run_id", a.RunID).Error("pdf render failed")
		writeError(w, http.StatusInternalServerError, "failed to render PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ToLower(a.Ticker.String())+"-report.pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// handleGetConfigKeys returns the masked status of the provider API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// analysisStatus maps the stage a failed run stopped at to an HTTP status.
func analysisStatus(a *models.Analysis) int {
	switch a.Stage {
	case models.StageInput:
		return http.StatusBadRequest
	case models.StageResolve:
		return http.StatusUnprocessableEntity
	case models.StageFetch:
		return fetchStatus(a.Err)
	default:
		return http.StatusBadGateway
	}
}

func fetchStatus(err error) int {
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
