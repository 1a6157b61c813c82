// Package prompts holds the instruction templates sent to the generative model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// ── Ticker Resolution ──

// Ticker asks for a single ticker symbol of company, following the
// market's exchange suffix convention.
func Ticker(company string) string {
	return fmt.Sprintf(`In one word give the ticker symbol of %s name so I can input it into yfinance.
Keep in mind the where the company is based. For instance a company listed on LSE will be XYZ.L,
while a company listed on NIFTY will be XYZ.NS.
Do not include any other information, just the ticker symbol.`, strings.TrimSpace(company))
}

// ── Report Generation ──

// AnalystSystem is the system message for report generation.
const AnalystSystem = "You are an expert financial analyst."

// sectionInstructions follow models.ReportSections one to one.
var sectionInstructions = []string{
	"Based on the financial summary, provide a brief overview of the company, including its name, sector, industry, and country. Mention its size based on market capitalization and number of employees.",
	"Analyze the company's financial health and profitability. Discuss key metrics like revenue, gross profit, net income, and various margins (gross, operating, profit). Also, comment on its balance sheet by looking at the current ratio, quick ratio, debt to equity, and cash levels.",
	"Evaluate the company's valuation based on the provided metrics. Discuss the P/E ratios (trailing and forward), PEG ratio, Price-to-Sales, and Price-to-Book. Explain whether the company appears to be overvalued, undervalued, or fairly valued compared to potential industry benchmarks.",
	"Assess the company's future growth potential. Examine metrics such as forward P/E, forward EPS, and free cash flow. Mention any dividend yield or payout ratio as a potential indicator of a mature vs. growth-oriented company.",
	"Based on all the preceding analysis, provide a clear and definitive final recommendation. The recommendation must be one of the following and must stand alone as the final output of this section: **BUY**, **HOLD**, or **SELL**. After the recommendation, provide a short summary (2-3 sentences) of the primary reasons for your conclusion.",
}

// Report builds the five-part report instruction. summary is embedded
// verbatim; headlines, when present, follow it as extra context.
func Report(summary string, headlines []models.Headline) string {
	var sb strings.Builder
	sb.WriteString("Your task is to perform an in-depth analysis of the company's financial data provided below and present your findings in a structured, five-part report.\n\n")
	sb.WriteString("---\nFINANCIAL SUMMARY\n")
	sb.WriteString(summary)
	if !strings.HasSuffix(summary, "\n") {
		sb.WriteString("\n")
	}

	if len(headlines) > 0 {
		sb.WriteString("\nRecent Headlines\n")
		for _, h := range headlines {
			sb.WriteString("- ")
			if h.Published != "" {
				sb.WriteString(h.Published)
				sb.WriteString(": ")
			}
			sb.WriteString(h.Title)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n*Recognize the region of the company and use the appropriate currency symbol (e.g., $ for USD, ₹ for INR, £ for GBP, etc.) when discussing financial figures.*\n---\n\n")
	sb.WriteString(`Your report should be titled "Analysis for (given company)". Please follow this exact structure for your response, using the provided headings:`)
	sb.WriteString("\n")

	for i := range models.ReportSections {
		sb.WriteString("\n")
		sb.WriteString(models.SectionHeading(i))
		sb.WriteString("\n")
		sb.WriteString(sectionInstructions[i])
		sb.WriteString("\n")
	}
	return sb.String()
}
