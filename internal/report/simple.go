package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/cssfp/internal/model"
)

// SimpleWriter outputs a plain text report for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing to show.
	showEmpty bool

	// verbose adds explanations and the uncorrelated sinks.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeClaims(&sb, report)
	w.writeAssociations(&sb, report)
	w.writeInaccessible(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	rule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                     CSS FINGERPRINTING REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Page:       %s\n", report.Page)
	fmt.Fprintf(sb, "Scan Date:  %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Verdict:    %s\n", strings.ToUpper(report.Verdict))
	fmt.Fprintf(sb, "Risk:       %d (%s)\n", report.RiskScore, report.RiskLevel)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.Report) {
	s := report.Summary
	section(sb, "SUMMARY")
	fmt.Fprintf(sb, "  SHEETS:        %d readable, %d inaccessible\n", s.SheetsAccessible, s.SheetsInaccessible)
	fmt.Fprintf(sb, "  RULES:         %d\n", s.TotalRulesScanned)
	fmt.Fprintf(sb, "  SOURCES:       %d\n", s.TotalSources)
	fmt.Fprintf(sb, "  SINKS:         %d\n", s.TotalSinks)
	fmt.Fprintf(sb, "  ASSOCIATIONS:  %d (%d correlated)\n", s.TotalAssociations, len(report.CorrelatedAssociations()))
	fmt.Fprintf(sb, "  STYLE TAGS:    %d\n", report.StyleTags)
	fmt.Fprintf(sb, "  INLINE STYLES: %d\n", report.InlineStyleCount)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeClaims(sb *strings.Builder, report *model.Report) {
	if len(report.ClaimDetails) == 0 && !w.showEmpty {
		return
	}
	section(sb, "DISCLOSED TRAITS")

	if len(report.ClaimDetails) == 0 {
		sb.WriteString("  No traits disclosed\n\n")
		return
	}
	for _, cd := range report.ClaimDetails {
		fmt.Fprintf(sb, "  [%s] %s: %s\n", riskIndicator(cd.Risk), cd.SemanticGroup, cd.Claim)
		fmt.Fprintf(sb, "    Keyword: %s (%s), risk %d\n", cd.Keyword, cd.Category, cd.Risk)
		if w.verbose && cd.Explanation != "" {
			fmt.Fprintf(sb, "    %s\n", cd.Explanation)
		}
	}
	sb.WriteString("\n")
}

// riskIndicator marks heavier claims more loudly.
func riskIndicator(risk int) string {
	switch {
	case risk >= 4:
		return "!!!"
	case risk >= 3:
		return "!!"
	case risk >= 2:
		return "!"
	default:
		return "-"
	}
}

func (w *SimpleWriter) writeAssociations(sb *strings.Builder, report *model.Report) {
	associations := report.Associations
	if !w.verbose {
		associations = report.CorrelatedAssociations()
	}
	if len(associations) == 0 && !w.showEmpty {
		return
	}
	section(sb, "REQUESTS")

	if len(associations) == 0 {
		sb.WriteString("  No conditional requests\n\n")
		return
	}
	for _, a := range associations {
		fmt.Fprintf(sb, "  * %s\n", a.SinkURL)
		fmt.Fprintf(sb, "    Rule: %s #%d\n", sheetLabel(a.Sheet), a.SinkRuleIndex)
		if !a.IsCorrelated() {
			sb.WriteString("    Not linked to a source\n")
			continue
		}
		for _, m := range a.MatchedSources {
			fmt.Fprintf(sb, "    <- %s %s (%s, rule #%d)\n", m.Category, m.Keyword, m.Reason, m.RuleIndex)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeInaccessible(sb *strings.Builder, report *model.Report) {
	if len(report.Inaccessible) == 0 && !w.showEmpty {
		return
	}
	section(sb, "INACCESSIBLE STYLESHEETS")
	if len(report.Inaccessible) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for _, href := range report.Inaccessible {
		fmt.Fprintf(sb, "  [?] %s\n", href)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by cssfp\n")
	sb.WriteString("https://github.com/nao1215/cssfp\n")
	rule(sb, "=")
}
