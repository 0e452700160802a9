// Package model defines the data structures shared by cssfp packages.
//
// This package contains the following main types:
//   - RuleType: the kind of a style rule node (style, import, media, ...)
//   - RuleEntry: the flattened record of one visited rule, with its
//     SourceDescriptors and SinkDescriptors
//   - Association: a sink URL linked to the MatchedSources that gate it
//   - ClaimDetail: one unique disclosed trait with its risk and explanation
//   - Report: the result of scanning one document
//
// It also holds the per semantic group risk table (RiskFor, ExplanationFor)
// and the RiskLevel thresholds.
//
// The models serialize to the JSON layout consumed by report writers,
// the dump files and the report database.
package model
