// Package report turns the model-written assessment into presentable forms:
// HTML for the web page, a parsed shape for validation, and PDF for export.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// gfm renders GitHub Flavored Markdown. Raw HTML in the source is
// suppressed; the model's output is untrusted.
var gfm = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// ToHTML converts report markdown to an HTML fragment.
func ToHTML(markdown string) (template.HTML, error) {
	markdown = StripCodeFences(markdown)
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := gfm.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("report: render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// StripCodeFences removes a code fence wrapping the whole content, as in
// "```markdown\n...\n```". An unclosed opening fence is dropped as well.
func StripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	firstNewline := strings.Index(content, "\n")
	if firstNewline == -1 {
		return content
	}

	if strings.HasSuffix(content, "```") {
		end := strings.LastIndex(content, "\n```")
		if end < firstNewline {
			end = len(content) - 3
		}
		if end <= firstNewline {
			return ""
		}
		return strings.TrimSpace(content[firstNewline+1 : end])
	}

	inner := strings.TrimSpace(content[firstNewline+1:])
	return strings.TrimSpace(strings.TrimRight(inner, "`"))
}

// RecommendationClass is the CSS class for a verdict badge.
func RecommendationClass(r models.Recommendation) string {
	switch r {
	case models.Buy:
		return "buy"
	case models.Sell:
		return "sell"
	case models.Hold:
		return "hold"
	default:
		return "neutral"
	}
}
