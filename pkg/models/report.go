package models

import (
	"strconv"
	"time"
)

// Recommendation is the terminal verdict of an assessment report.
type Recommendation string

const (
	Buy  Recommendation = "BUY"
	Hold Recommendation = "HOLD"
	Sell Recommendation = "SELL"
)

// Recommendations lists the accepted verdicts.
var Recommendations = []Recommendation{Buy, Hold, Sell}

// ParseRecommendation maps an exact upper-case token to a verdict.
func ParseRecommendation(s string) (Recommendation, bool) {
	for _, r := range Recommendations {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// ReportSections are the required report headings, in order.
var ReportSections = []string{
	"Company Overview",
	"Financials",
	"Valuation",
	"Growth Prospects",
	"Final Recommendation",
}

// SectionHeading returns the numbered markdown heading of section i (0-based),
// e.g. "### 1) Company Overview".
func SectionHeading(i int) string {
	return "### " + strconv.Itoa(i+1) + ") " + ReportSections[i]
}

// AssessmentReport is the model-written five-section report.
type AssessmentReport struct {
	Ticker         Ticker         `json:"ticker"`
	Markdown       string         `json:"markdown"`
	Sections       []string       `json:"sections,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Justification  string         `json:"justification,omitempty"`
	Model          string         `json:"model,omitempty"`
	Provider       string         `json:"provider,omitempty"`

	// Verdicts are the distinct standalone verdicts in the final section.
	// More than one means the report contradicts itself.
	Verdicts []Recommendation `json:"-"`
}

// Stage names the pipeline step an analysis reached.
type Stage string

const (
	StageInput    Stage = "input"
	StageResolve  Stage = "resolve"
	StageFetch    Stage = "fetch"
	StageGenerate Stage = "generate"
	StageDone     Stage = "done"
)

// Analysis is the outcome of one pipeline run. Message is always set: it is
// the report markdown on success, a user-facing sentence otherwise.
type Analysis struct {
	RunID    string            `json:"run_id"`
	Company  string            `json:"company"`
	Ticker   Ticker            `json:"ticker,omitempty"`
	Summary  *FinancialSummary `json:"summary,omitempty"`
	Report   *AssessmentReport `json:"report,omitempty"`
	Stage    Stage             `json:"stage"`
	Message  string            `json:"message"`
	Err      error             `json:"-"`
	Duration time.Duration     `json:"duration"`
}

// OK reports whether the run produced a report.
func (a *Analysis) OK() bool {
	return a.Stage == StageDone && a.Err == nil && a.Report != nil
}
