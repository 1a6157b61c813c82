package models

import (
	"strings"
)

// Info is a provider metadata record keyed by the provider's canonical
// camelCase field names (longName, marketCap, trailingPE, ...).
// Missing keys are the norm. Values are string, json.Number, float64 or int64.
type Info map[string]any

// Get returns the value stored under key, or nil.
func (i Info) Get(key string) any {
	if i == nil {
		return nil
	}
	return i[key]
}

// Has reports whether key holds a non-nil value.
func (i Info) Has(key string) bool {
	return i.Get(key) != nil
}

// Merge copies keys from other that are missing in i. Existing values win.
func (i Info) Merge(other Info) {
	for k, v := range other {
		if v == nil || i.Has(k) {
			continue
		}
		i[k] = v
	}
}

// SummaryField is one labeled metric of a financial summary.
type SummaryField struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SummarySection groups fields under a title. The identity block has no title.
type SummarySection struct {
	Title  string         `json:"title,omitempty"`
	Fields []SummaryField `json:"fields"`
}

// FinancialSummary is the fixed-order financial summary of one ticker.
type FinancialSummary struct {
	Ticker   Ticker           `json:"ticker"`
	Sections []SummarySection `json:"sections"`
}

// SummaryTitle is the header line of a rendered summary.
func SummaryTitle(t Ticker) string {
	return "Company Financial Summary – " + strings.ToUpper(string(t))
}

// Text renders the summary as a plain-text block: the header line, then each
// section separated by a blank line, one "Label: Value" per field.
func (s *FinancialSummary) Text() string {
	var sb strings.Builder
	sb.WriteString(SummaryTitle(s.Ticker))
	sb.WriteString("\n")
	for _, sec := range s.Sections {
		sb.WriteString("\n")
		if sec.Title != "" {
			sb.WriteString(sec.Title)
			sb.WriteString("\n")
		}
		for _, f := range sec.Fields {
			sb.WriteString(f.Label)
			sb.WriteString(": ")
			sb.WriteString(f.Value)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Field looks up a field by its provider key.
func (s *FinancialSummary) Field(key string) (SummaryField, bool) {
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return SummaryField{}, false
}

// Headline is a recent news item about a ticker.
type Headline struct {
	Title     string `json:"title"`
	Link      string `json:"link,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Published string `json:"published,omitempty"`
}
