package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/cssfp/internal/model"
)

// JSONWriter outputs the report contract as JSON, the same document that is
// saved as a css_dump_*.json file. URLs are written unescaped, so a sink
// such as "t.png?a=1&b=2" stays readable.
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
// Output is one line per report unless an indent option is given.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as JSON followed by a newline.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	return w.encode(report)
}

// encode buffers the document so that a marshal error writes nothing.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport wraps a report with the version of the tool that produced it.
type JSONReport struct {
	// Version is the cssfp version.
	Version string `json:"version"`

	// Report is the scan report.
	Report *model.Report `json:"report"`

	// Correlated lists only the associations that matched a source.
	Correlated []model.Association `json:"correlated"`
}

// NewJSONReport creates a JSONReport wrapper.
func NewJSONReport(report *model.Report, version string) *JSONReport {
	return &JSONReport{
		Version:    version,
		Report:     report,
		Correlated: report.CorrelatedAssociations(),
	}
}

// FullJSONWriter outputs reports inside a JSONReport wrapper.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a FullJSONWriter.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the wrapped report.
func (w *FullJSONWriter) Write(report *model.Report) (int, error) {
	return w.encode(NewJSONReport(report, w.version))
}
