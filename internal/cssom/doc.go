// Package cssom holds the stylesheet forest handed to the analyzer.
//
// A Document is produced by a host: the CSS text parser, the page collector,
// or a JSON export of a live page's CSSOM (ReadDump). Every rule carries its
// model.RuleType, resolved once by the host (see Classify), and every rule
// list is read through CSSRules so that a list which cannot be read reports
// an error instead of aborting the walk.
package cssom
