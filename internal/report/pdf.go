package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// currencyFallbacks replaces symbols the core PDF fonts cannot encode.
var currencyFallbacks = strings.NewReplacer(
	"₹", "Rs. ",
	"₩", "KRW ",
	"₽", "RUB ",
	"元", "CNY ",
)

// PDF renders report markdown to an A4 document. title becomes the
// document title and the first line of the page.
func PDF(markdown, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(title, true)
	pdf.SetCreator("stockbrief", true)
	pdf.AddPage()

	r := &pdfRenderer{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		font:   "Arial",
		size:   10,
		source: []byte(StripCodeFences(markdown)),
	}

	if title != "" {
		pdf.SetFont(r.font, "B", 16)
		pdf.MultiCell(0, 8, r.encode(title), "", "L", false)
		pdf.Ln(2)
	}
	r.updateFont()

	doc := gfm.Parser().Parse(text.NewReader(r.source))
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("report: render pdf: %w", err)
	}
	if pdf.Err() {
		return nil, fmt.Errorf("report: render pdf: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	font      string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) encode(s string) string {
	return r.tr(currencyFallbacks.Replace(s))
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 11.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont(r.font, "B", size)
		} else {
			r.pdf.Ln(7)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			s := string(node.Segment.Value(r.source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				s += " "
			}
			r.pdf.Write(5, r.encode(s))
		}
	case *ast.String:
		if entering {
			r.pdf.Write(5, r.encode(string(node.Value)))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", r.size)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					r.pdf.Write(5, r.encode(string(t.Segment.Value(r.source))))
				}
			}
			r.updateFont()
			return ast.WalkSkipChildren, nil
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.pdf.SetFont("Courier", "", 9)
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				r.pdf.MultiCell(0, 4.5, r.encode(strings.TrimRight(string(seg.Value(r.source)), "\n")), "", "L", false)
			}
			r.updateFont()
			r.pdf.Ln(2)
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(15 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}
