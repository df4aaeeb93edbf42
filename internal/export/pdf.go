package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/mapachekurt/llm-council/internal/council"
)

// pageBreakY is the cursor height past which a new section starts a new page.
const pageBreakY = 250

// PDF writes result as an A4 PDF document.
func PDF(w io.Writer, question string, result *council.Result) error {
	if result == nil {
		return errNilResult
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("LLM Council - page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, sanitizeText(question), "", "C", false)
	pdf.Ln(5)

	section(pdf, "Final Answer")
	if result.Stage3.Model != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.Cell(0, 6, sanitizeText("Chairman: "+result.Stage3.Model))
		pdf.Ln(6)
	}
	body(pdf, result.Stage3.Content)

	section(pdf, "Aggregate Rankings")
	if len(result.Metadata.AggregateRankings) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No rankings could be parsed.")
		pdf.Ln(8)
	} else {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(220, 220, 220)
		pdf.CellFormat(15, 7, "#", "1", 0, "C", true, 0, "")
		pdf.CellFormat(105, 7, "Model", "1", 0, "", true, 0, "")
		pdf.CellFormat(25, 7, "Avg", "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, 7, "Votes", "1", 1, "C", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for i, entry := range result.Metadata.AggregateRankings {
			pdf.CellFormat(15, 6, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
			pdf.CellFormat(105, 6, sanitizeText(entry.Model), "1", 0, "", false, 0, "")
			pdf.CellFormat(25, 6, scoreText(entry.AverageScore), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprint(entry.Votes), "1", 1, "C", false, 0, "")
		}
		pdf.Ln(5)
	}

	labels := result.Metadata.LabelToModel
	section(pdf, "Stage 1: Individual Responses")
	for _, resp := range result.Stage1 {
		header(pdf, responseHeading(resp.Model, labels), 200, 230, 255)
		body(pdf, resp.Content)
	}

	section(pdf, "Stage 2: Peer Evaluations")
	for _, ev := range result.Stage2 {
		header(pdf, ev.Model, 200, 255, 200)
		body(pdf, ev.EvaluationText)
		if len(ev.ParsedRanking) > 0 {
			var sb strings.Builder
			for i, label := range ev.ParsedRanking {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, rankingLine(label, labels))
			}
			pdf.SetFont("Arial", "B", 9)
			pdf.Cell(0, 6, "Extracted ranking:")
			pdf.Ln(6)
			body(pdf, strings.TrimSuffix(sb.String(), "\n"))
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return pdf.Output(w)
}

func section(pdf *gofpdf.Fpdf, title string) {
	if pdf.GetY() > pageBreakY {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func header(pdf *gofpdf.Fpdf, text string, r, g, b int) {
	if pdf.GetY() > pageBreakY {
		pdf.AddPage()
	}
	pdf.SetFillColor(r, g, b)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, sanitizeText(text), "", 1, "", true, 0, "")
	pdf.SetFillColor(255, 255, 255)
}

func body(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(0, 5, sanitizeText(text), "", "", false)
	pdf.Ln(4)
}

var pdfReplacer = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'",
	"\u201c", "\"", "\u201d", "\"",
	"\u2013", "-", "\u2014", "--",
	"\u2026", "...",
	"\u2022", "*",
	"\u00a0", " ",
	"\u2192", "->",
)

// sanitizeText maps common typographic characters to ASCII and drops anything
// the core fonts cannot render.
func sanitizeText(s string) string {
	s = pdfReplacer.Replace(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || (r >= 0x20 && r < 0x7f) {
			return r
		}
		return '?'
	}, s)
}
