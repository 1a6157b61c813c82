package report

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/seenimoa/stockbrief/pkg/models"
)

// ErrMalformedReport is returned when a report lacks the required headings
// or a recommendation.
var ErrMalformedReport = errors.New("report: malformed assessment")

var (
	// headingNumber strips a leading "1)", "1.", "Section 1:" and similar.
	headingNumber  = regexp.MustCompile(`(?i)^\s*(?:section\s+)?\d+\s*[).:\-]?\s*`)
	verdictPattern = regexp.MustCompile(`\b(BUY|HOLD|SELL)\b`)
	// leadVerdict matches a paragraph that opens with the verdict on its own,
	// e.g. "SELL", "Recommendation: BUY - ...", "HOLD. The ...".
	leadVerdict = regexp.MustCompile(`^(?i:(?:final\s+)?recommendation\s*[:\-–]\s*)?(BUY|HOLD|SELL)(?:\s*[.!:\-–—]|\s*$)`)
)

// verdictMark is a standalone verdict and the body offset just past it.
type verdictMark struct {
	verdict models.Recommendation
	end     int
}

// Parse extracts the report shape from markdown: the required sections found
// in order, the verdict of the final section and the text after it.
//
// The verdict is the one that stands alone: an emphasized token such as
// **HOLD**, or a paragraph opening with the token. Conflicting standalone
// verdicts leave Recommendation empty. Without any standalone verdict a bare
// mention is used only if the section names no other verdict.
// Parse never fails; use Validate to enforce the shape.
func Parse(markdown string) *models.AssessmentReport {
	source := []byte(StripCodeFences(markdown))
	doc := gfm.Parser().Parse(text.NewReader(source))

	r := &models.AssessmentReport{Markdown: string(source)}

	var (
		body       strings.Builder
		marks      []verdictMark
		finalLevel int
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			if finalLevel > 0 && h.Level <= finalLevel {
				finalLevel = -1 // final section closed
			}
			next := len(r.Sections)
			if next < len(models.ReportSections) && headingMatches(nodeText(h, source), models.ReportSections[next]) {
				r.Sections = append(r.Sections, models.ReportSections[next])
				if next == len(models.ReportSections)-1 {
					finalLevel = h.Level
				}
			}
			continue
		}
		if finalLevel <= 0 {
			continue
		}
		if body.Len() > 0 {
			body.WriteByte('\n')
		}
		offset := body.Len()
		block, emphasized := blockText(n, source)
		for _, m := range emphasized {
			marks = append(marks, verdictMark{m.verdict, offset + m.end})
		}
		if _, ok := n.(*ast.Paragraph); ok {
			if loc := leadVerdict.FindStringSubmatchIndex(block); loc != nil {
				marks = append(marks, verdictMark{models.Recommendation(block[loc[2]:loc[3]]), offset + loc[3]})
			}
		}
		body.WriteString(block)
	}

	section := body.String()
	for _, m := range marks {
		if !containsVerdict(r.Verdicts, m.verdict) {
			r.Verdicts = append(r.Verdicts, m.verdict)
		}
	}
	switch {
	case len(r.Verdicts) == 1:
		first := marks[0]
		for _, m := range marks[1:] {
			if m.end < first.end {
				first = m
			}
		}
		r.Recommendation = first.verdict
		r.Justification = cleanJustification(section[first.end:])
	case len(r.Verdicts) == 0:
		// No standalone verdict: accept a bare mention only when it is the
		// single verdict named in the section.
		all := verdictPattern.FindAllStringSubmatchIndex(section, -1)
		if len(all) > 0 && allSame(section, all) {
			r.Recommendation = models.Recommendation(section[all[0][2]:all[0][3]])
			r.Justification = cleanJustification(section[all[0][1]:])
		}
	}
	return r
}

// Validate checks that r has all sections in order and a recommendation.
func Validate(r *models.AssessmentReport) error {
	if r == nil {
		return fmt.Errorf("%w: empty report", ErrMalformedReport)
	}
	if len(r.Sections) != len(models.ReportSections) {
		missing := models.ReportSections[len(r.Sections)]
		return fmt.Errorf("%w: found %d of %d sections, missing %q",
			ErrMalformedReport, len(r.Sections), len(models.ReportSections), missing)
	}
	if len(r.Verdicts) > 1 {
		return fmt.Errorf("%w: conflicting recommendations %v in %s", ErrMalformedReport, r.Verdicts, models.ReportSections[len(models.ReportSections)-1])
	}
	if _, ok := models.ParseRecommendation(string(r.Recommendation)); !ok {
		return fmt.Errorf("%w: no BUY, HOLD or SELL in %s", ErrMalformedReport, models.ReportSections[len(models.ReportSections)-1])
	}
	return nil
}

func headingMatches(heading, section string) bool {
	h := strings.TrimSpace(headingNumber.ReplaceAllString(heading, ""))
	h = strings.TrimRight(h, ": ")
	return strings.EqualFold(h, section)
}

func cleanJustification(s string) string {
	s = strings.TrimLeft(s, " *_:.-–—\n")
	return strings.Join(strings.Fields(s), " ")
}

// nodeText returns the plain text of a block, line breaks as spaces and
// nested blocks separated by newlines.
func nodeText(n ast.Node, source []byte) string {
	s, _ := blockText(n, source)
	return s
}

// blockText is nodeText that also reports emphasized verdicts, each with the
// offset just past it in the returned text.
func blockText(n ast.Node, source []byte) (string, []verdictMark) {
	var (
		sb     strings.Builder
		marks  []verdictMark
		starts []int
	)
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch {
			case c.Kind() == ast.KindEmphasis:
				start := starts[len(starts)-1]
				starts = starts[:len(starts)-1]
				word := strings.Trim(sb.String()[start:], " .:!")
				if v, ok := models.ParseRecommendation(word); ok {
					marks = append(marks, verdictMark{v, sb.Len()})
				}
			case c.Type() == ast.TypeBlock && c != n && sb.Len() > 0:
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Emphasis:
			starts = append(starts, sb.Len())
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	raw := sb.String()
	trimmed := strings.TrimSpace(raw)
	lead := len(raw) - len(strings.TrimLeft(raw, " \t\n\r"))
	for i := range marks {
		marks[i].end = min(max(marks[i].end-lead, 0), len(trimmed))
	}
	return trimmed, marks
}

func containsVerdict(vs []models.Recommendation, v models.Recommendation) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// allSame reports whether every verdict match in s names the same verdict.
func allSame(s string, matches [][]int) bool {
	first := s[matches[0][2]:matches[0][3]]
	for _, m := range matches[1:] {
		if s[m[2]:m[3]] != first {
			return false
		}
	}
	return true
}
