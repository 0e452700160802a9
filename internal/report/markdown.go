package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/cssfp/internal/model"
)

// MarkdownWriter outputs reports as GitHub flavored Markdown with tables,
// alerts and a mermaid pie chart of the risk per semantic group.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeVerdict(md, report)
	w.writeClaims(md, report)
	w.writeAssociations(md, report)
	w.writeInaccessible(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("CSS Fingerprinting Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Page", "`" + report.Page + "`"},
			{"Scan Date", report.Timestamp.Format("2006-01-02 15:04:05 MST")},
			{"Stylesheets", fmt.Sprintf("%d readable, %d inaccessible",
				report.Summary.SheetsAccessible, report.Summary.SheetsInaccessible)},
			{"Rules Scanned", strconv.Itoa(report.Summary.TotalRulesScanned)},
			{"Sources / Sinks", fmt.Sprintf("%d / %d", report.Summary.TotalSources, report.Summary.TotalSinks)},
			{"Associations", strconv.Itoa(report.Summary.TotalAssociations)},
			{"Style Tags / Inline Styles", fmt.Sprintf("%d / %d", report.StyleTags, report.InlineStyleCount)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeVerdict(md *markdown.Markdown, report *model.Report) {
	md.H2("Verdict")
	md.PlainText("")

	switch report.RiskLevel {
	case model.RiskHigh:
		md.Cautionf("%s: risk score %d (high). Conditional requests disclose %d trait(s).",
			report.Verdict, report.RiskScore, len(report.ClaimDetails))
	case model.RiskMedium:
		md.Warningf("%s: risk score %d (medium). Conditional requests disclose %d trait(s).",
			report.Verdict, report.RiskScore, len(report.ClaimDetails))
	case model.RiskLow:
		md.Importantf("%s: risk score %d (low).", report.Verdict, report.RiskScore)
	default:
		if report.Summary.TotalSinks > 0 {
			md.Note("Rules load external resources, but none depends on a client trait.")
		} else {
			md.Tip("No rule loads an external resource.")
		}
	}
	md.PlainText("")

	if len(report.ClaimDetails) > 0 {
		w.writePieChart(md, report)
	}
}

// writePieChart writes the risk carried by each semantic group.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Risk by Semantic Group"),
		piechart.WithShowData(true),
	)

	var order []string
	risk := make(map[string]int)
	for _, cd := range report.ClaimDetails {
		if _, ok := risk[cd.SemanticGroup]; !ok {
			order = append(order, cd.SemanticGroup)
		}
		risk[cd.SemanticGroup] += cd.Risk
	}
	for _, group := range order {
		if risk[group] > 0 {
			chart.LabelAndIntValue(titleCase(group), uint64(risk[group])) //nolint:gosec // risk is positive
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeClaims(md *markdown.Markdown, report *model.Report) {
	md.H2("Disclosed Traits")
	md.PlainText("")

	if len(report.ClaimDetails) == 0 {
		md.PlainText("No trait is disclosed to a remote server.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.ClaimDetails))
	for i, cd := range report.ClaimDetails {
		rows[i] = []string{
			titleCase(cd.SemanticGroup),
			cd.Claim,
			"`" + cd.Keyword + "`",
			cd.Category,
			strconv.Itoa(cd.Risk),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Group", "Claim", "Keyword", "Category", "Risk"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, cd := range report.ClaimDetails {
		if cd.Explanation != "" {
			md.Details(cd.Claim, cd.Explanation)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeAssociations(md *markdown.Markdown, report *model.Report) {
	correlated := report.CorrelatedAssociations()

	md.H2("Correlated Requests")
	md.PlainText("")

	if len(correlated) == 0 {
		md.PlainText("No request is conditioned on a client trait.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(correlated))
	for i, a := range correlated {
		rows[i] = []string{
			truncateString(sheetLabel(a.Sheet), 40),
			"#" + strconv.Itoa(a.SinkRuleIndex),
			"`" + truncateString(a.SinkURL, 60) + "`",
			matchSummary(a.MatchedSources),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Sheet", "Rule", "Sink URL", "Matched Sources"},
		Rows:   rows,
	})
	md.PlainText("")
}

// titleCase turns a semantic group into a heading, "user preference" into
// "User Preference". A Caser is not safe for concurrent use, so each call
// makes its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// matchSummary lists each matched source as "keyword (reason, #index)".
func matchSummary(sources []model.MatchedSource) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("%s (%s, #%d)", s.Keyword, s.Reason, s.RuleIndex)
	}
	return strings.Join(parts, ", ")
}

func (w *MarkdownWriter) writeInaccessible(md *markdown.Markdown, report *model.Report) {
	if len(report.Inaccessible) == 0 {
		return
	}
	md.H2("Inaccessible Stylesheets")
	md.PlainText("")
	md.PlainText("The rules of these sheets could not be read, usually because they are cross-origin without CORS approval.")
	md.PlainText("")
	md.BulletList(report.Inaccessible...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [cssfp](https://github.com/nao1215/cssfp)*")
}
