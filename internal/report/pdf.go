package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Layout constants. A4 page, dark blue headings matching the web UI.
const (
	headingR, headingG, headingB = 20, 40, 90
	lineHeight                   = 5.5
)

// Render produces the report as a self-contained PDF document with
// fixed section order: overview, plan, allocation, status analysis,
// usage summary, operation history. Sections without content are
// omitted, never rendered as empty placeholders.
func (r *Report) Render() ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 18)
	// The core Helvetica fonts are cp1252; model output is UTF-8 and
	// must be translated before drawing or accented characters come
	// out as two garbage glyphs.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Title.
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(headingR, headingG, headingB)
	pdf.CellFormat(0, 12, "Project Management Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 6, "Generated: "+r.GeneratedAt.Format("January 2, 2006 at 15:04 UTC"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Overview.
	if r.Project != nil || r.Status != nil {
		heading(pdf, "Project Overview")
		if r.Project != nil {
			labeled(pdf, tr, "Description", r.Project.Description)
			labeled(pdf, tr, "Team", r.Project.Team)
		}
		if r.Status != nil {
			labeled(pdf, tr, "Reported Status", r.Status.Status)
			labeled(pdf, tr, "Deliverables", r.Status.Deliverables)
		}
		pdf.Ln(3)
	}

	// Pipeline output sections, fixed order, omitted when absent.
	if r.Plan != nil {
		heading(pdf, "Project Plan")
		paragraph(pdf, tr, r.Plan.Output())
		pdf.Ln(3)
	}
	if r.Allocation != nil {
		heading(pdf, "Task Allocation")
		paragraph(pdf, tr, r.Allocation.Output())
		pdf.Ln(3)
	}
	if r.Analysis != nil {
		heading(pdf, "Status Analysis")
		paragraph(pdf, tr, r.Analysis.Output())
		pdf.Ln(3)
	}

	// Usage summary.
	heading(pdf, "Token Usage Summary")
	summaryRow(pdf, "Metric", "Value", true)
	summaryRow(pdf, "Total Tokens Used", fmt.Sprintf("%d", r.Totals.Tokens), false)
	summaryRow(pdf, "Estimated Cost", fmt.Sprintf("$%.4f", r.Totals.CostUSD), false)
	summaryRow(pdf, "Operations Performed", fmt.Sprintf("%d", r.Totals.Operations), false)
	pdf.Ln(5)

	// Operation history.
	if len(r.History) > 0 {
		heading(pdf, "Operation History")
		historyRow(pdf, "Time (UTC)", "Operation", "Tokens", "Cost", true)
		for _, rec := range r.History {
			historyRow(pdf,
				rec.Timestamp.Format("15:04:05"),
				tr(rec.Operation),
				fmt.Sprintf("%d", rec.Tokens),
				fmt.Sprintf("$%.4f", rec.CostUSD),
				false,
			)
		}
	}

	// Footer.
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, "Generated by Kazi", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(headingR, headingG, headingB)
	pdf.CellFormat(0, 9, text, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

func labeled(pdf *fpdf.Fpdf, tr func(string) string, label, text string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(38, lineHeight, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, tr(text), "", "L", false)
}

func paragraph(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, tr(text), "", "L", false)
}

func summaryRow(pdf *fpdf.Fpdf, metric, value string, header bool) {
	styleRow(pdf, header)
	pdf.CellFormat(60, 7, metric, "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 7, value, "1", 1, "L", true, 0, "")
}

func historyRow(pdf *fpdf.Fpdf, timestamp, operation, tokens, cost string, header bool) {
	styleRow(pdf, header)
	pdf.CellFormat(28, 7, timestamp, "1", 0, "L", true, 0, "")
	pdf.CellFormat(70, 7, operation, "1", 0, "L", true, 0, "")
	pdf.CellFormat(28, 7, tokens, "1", 0, "R", true, 0, "")
	pdf.CellFormat(28, 7, cost, "1", 1, "R", true, 0, "")
}

func styleRow(pdf *fpdf.Fpdf, header bool) {
	if header {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(headingR, headingG, headingB)
		pdf.SetTextColor(255, 255, 255)
	} else {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetFillColor(245, 245, 235)
		pdf.SetTextColor(0, 0, 0)
	}
}
