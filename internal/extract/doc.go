// Package extract provides the text helpers used to classify style rules:
// literal url(...) references, @import targets, the condition text of a rule
// and excerpt truncation.
//
// The helpers never fail. Empty or malformed input yields empty output.
package extract
