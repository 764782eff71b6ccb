package app

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"ldaengine/domain/run"
	"ldaengine/internal/lda"
	"ldaengine/internal/masterlist"
)

// ReportSummary describes a generated LDA sheet in markdown.
func ReportSummary(r *lda.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.SheetName)
	fmt.Fprintf(&b, "| Table | Rows |\n|---|---|\n")
	for i, name := range r.Tables {
		rows := r.PrimaryRows
		if i > 0 {
			rows = r.FailingRows
		}
		fmt.Fprintf(&b, "| %s | %d |\n", name, rows)
	}
	fmt.Fprintf(&b, "\n- Students out of attendance: %d\n", r.PrimaryRows)
	if len(r.Tables) > 1 {
		fmt.Fprintf(&b, "- Failing students: %d\n", r.FailingRows)
	}
	fmt.Fprintf(&b, "- Outreach messages: %d\n", r.Messages)
	if len(r.Columns) > 0 {
		fmt.Fprintf(&b, "- Columns: %s\n", strings.Join(r.Columns, ", "))
	}
	return b.String()
}

// MergeSummary describes a Master List merge in markdown.
func MergeSummary(r *masterlist.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Sheet)
	if r.Created {
		b.WriteString("Sheet created.\n\n")
	}
	fmt.Fprintf(&b, "- New students: %d\n", r.NewRows)
	fmt.Fprintf(&b, "- Returning students: %d\n", r.ExistingRows)
	fmt.Fprintf(&b, "- Rows cleared: %d\n", r.ClearedRows)
	return b.String()
}

// RunSummary prefixes a run's stored summary with its ledger fields.
func RunSummary(rn *run.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rn.ID)
	fmt.Fprintf(&b, "- Kind: %s\n- Workbook: `%s`\n- Status: **%s**\n", rn.Kind, rn.Workbook, rn.Status)
	fmt.Fprintf(&b, "- Started: %s\n", rn.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if rn.FinishedAt != nil {
		fmt.Fprintf(&b, "- Duration: %s\n", rn.Duration())
	}
	if rn.Error != "" {
		fmt.Fprintf(&b, "\n> %s\n", rn.Error)
	}
	if rn.Summary != "" {
		b.WriteString("\n")
		b.WriteString(rn.Summary)
	}
	return b.String()
}

// RenderSummaryHTML converts summary markdown to an HTML fragment.
func RenderSummaryHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
