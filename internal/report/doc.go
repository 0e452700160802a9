// Package report renders scan reports and delivers them.
//
// Writers implement the Writer interface and can be combined with
// MultiWriter:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter and FullJSONWriter: the report document, bare or wrapped
//     with the tool version
//   - MarkdownWriter: tables, alerts and a mermaid pie chart
//
// SaveDump stores a report as a css_dump_*.json file, the same document a
// browser extension would download.
package report
