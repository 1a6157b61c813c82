// Package fundamental renders a company's provider record into the fixed
// financial summary handed to the report prompt.
package fundamental

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seenimoa/stockbrief/internal/datasource"
	"github.com/seenimoa/stockbrief/pkg/models"
)

// Missing is printed for a metric the provider did not supply.
const Missing = "None"

// ErrNoTicker is returned when Fetch is called without a symbol.
var ErrNoTicker = errors.New("fundamental: empty ticker")

type fieldSpec struct {
	label, key string
}

type sectionSpec struct {
	title  string
	fields []fieldSpec
}

// schema is the order of the summary. Labels and keys are part of the
// prompt contract and must not change.
var schema = []sectionSpec{
	{"", []fieldSpec{
		{"Name", "longName"},
		{"Sector", "sector"},
		{"Industry", "industry"},
		{"Country", "country"},
		{"Full Time Employees", "fullTimeEmployees"},
	}},
	{"Valuation Metrics", []fieldSpec{
		{"Market Cap", "marketCap"},
		{"Enterprise Value", "enterpriseValue"},
		{"Trailing P/E Ratio", "trailingPE"},
		{"Forward P/E Ratio", "forwardPE"},
		{"PEG Ratio (5 yr expected)", "pegRatio"},
		{"Price-to-Sales (TTM)", "priceToSalesTrailing12Months"},
		{"Price-to-Book", "priceToBook"},
		{"EV/EBITDA", "enterpriseToEbitda"},
		{"EV/Revenue", "enterpriseToRevenue"},
	}},
	{"Profitability & Margins", []fieldSpec{
		{"Revenue", "totalRevenue"},
		{"Gross Profit", "grossProfits"},
		{"Net Income", "netIncomeToCommon"},
		{"Profit Margin", "profitMargins"},
		{"Gross Margin", "grossMargins"},
		{"Operating Margin", "operatingMargins"},
		{"Return on Assets (ROA)", "returnOnAssets"},
		{"Return on Equity (ROE)", "returnOnEquity"},
	}},
	{"Balance Sheet Ratios", []fieldSpec{
		{"Current Ratio", "currentRatio"},
		{"Quick Ratio", "quickRatio"},
		{"Debt to Equity", "debtToEquity"},
		{"Total Cash", "totalCash"},
		{"Total Debt", "totalDebt"},
		{"Book Value per Share", "bookValue"},
	}},
	{"Earnings & Per Share", []fieldSpec{
		{"EPS (TTM)", "trailingEps"},
		{"Forward EPS", "forwardEps"},
		{"Free Cash Flow", "freeCashflow"},
		{"Operating Cash Flow", "operatingCashflow"},
		{"Dividend Yield", "dividendYield"},
		{"Dividend Rate", "dividendRate"},
		{"Payout Ratio", "payoutRatio"},
	}},
	{"Stock Performance", []fieldSpec{
		{"52-Week High", "fiftyTwoWeekHigh"},
		{"52-Week Low", "fiftyTwoWeekLow"},
		{"Beta", "beta"},
		{"Shares Outstanding", "sharesOutstanding"},
		{"Float Shares", "floatShares"},
		{"Short Ratio", "shortRatio"},
		{"Implied Volatility", "impliedVolatility"},
	}},
}

// Keys returns every provider key of the summary in render order.
func Keys() []string {
	var keys []string
	for _, sec := range schema {
		for _, f := range sec.fields {
			keys = append(keys, f.key)
		}
	}
	return keys
}

// Build renders info into the fixed summary for ticker. It is a pure
// function: the same inputs always give the same summary.
func Build(ticker models.Ticker, info models.Info) *models.FinancialSummary {
	s := &models.FinancialSummary{
		Ticker:   models.Ticker(strings.ToUpper(string(ticker))),
		Sections: make([]models.SummarySection, 0, len(schema)),
	}
	for _, sec := range schema {
		out := models.SummarySection{
			Title:  sec.title,
			Fields: make([]models.SummaryField, 0, len(sec.fields)),
		}
		for _, f := range sec.fields {
			out.Fields = append(out.Fields, models.SummaryField{
				Label: f.label,
				Key:   f.key,
				Value: FormatValue(info.Get(f.key)),
			})
		}
		s.Sections = append(s.Sections, out)
	}
	return s
}

// FormatValue prints a provider value. Numbers use their shortest exact
// decimal form without exponent; nil prints as Missing.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Missing
	case string:
		return x
	case json.Number:
		return formatNumber(x)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func formatNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return formatFloat(f, 64)
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// Fetcher retrieves a provider record and renders its summary.
type Fetcher struct {
	source datasource.InfoSource
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source datasource.InfoSource) *Fetcher {
	return &Fetcher{source: source}
}

// Fetch returns the summary for ticker. Provider failures, including an
// unknown symbol, are returned wrapped.
func (f *Fetcher) Fetch(ctx context.Context, ticker models.Ticker) (*models.FinancialSummary, error) {
	if ticker == "" {
		return nil, ErrNoTicker
	}
	info, err := f.source.GetInfo(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fundamental: fetch %s: %w", ticker, err)
	}
	return Build(ticker, info), nil
}

// FetchText is Fetch rendered as the plain-text block.
func (f *Fetcher) FetchText(ctx context.Context, ticker models.Ticker) (string, error) {
	s, err := f.Fetch(ctx, ticker)
	if err != nil {
		return "", err
	}
	return s.Text(), nil
}
