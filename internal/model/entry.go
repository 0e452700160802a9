package model

// Source categories. A category names the construct a source was found in.
const (
	CategoryMedia     = "@media"
	CategorySupports  = "@supports"
	CategoryContainer = "@container"
	CategoryFontFace  = "@font-face"
	CategoryImport    = "@import"
)

// Descriptor reasons.
const (
	// ReasonKeywordMatch marks a source found by dictionary keyword lookup.
	ReasonKeywordMatch = "keyword_match"
	// ReasonURLSink marks a sink built from literal URLs in the rule text.
	ReasonURLSink = "url_sink"
	// ReasonImportPlaceholder marks an import sink without a parseable target.
	ReasonImportPlaceholder = "import_placeholder"
)

// ImportPlaceholderURL stands in for the target of an @import rule whose
// URL could not be extracted. The import still causes a fetch, so it is
// still reported as a sink.
const ImportPlaceholderURL = "(import)"

// SourceDescriptor is one environment trait a rule can learn.
type SourceDescriptor struct {
	Reason        string `json:"reason"`
	Category      string `json:"category"`
	Keyword       string `json:"keyword"`
	SemanticGroup string `json:"semanticGroup"`
	Claim         string `json:"claim"`
	Excerpt       string `json:"excerpt"`
}

// SinkDescriptor lists the outbound URLs a rule fetches when it applies.
type SinkDescriptor struct {
	Reason string   `json:"reason"`
	URLs   []string `json:"urls"`
}

// RuleEntry is the flattened record of one visited rule node.
// Sources and Sinks only reflect the node's own text; the relationship to
// other nodes is kept through Selector and Group.
type RuleEntry struct {
	Type     RuleType           `json:"type"`
	Selector string             `json:"selector"`
	CSSText  string             `json:"cssText"`
	Group    string             `json:"group"`
	URLs     []string           `json:"urls"`
	Sources  []SourceDescriptor `json:"sources"`
	Sinks    []SinkDescriptor   `json:"sinks"`
}

// HasSources reports whether the entry carries at least one source.
func (e *RuleEntry) HasSources() bool {
	return len(e.Sources) > 0
}

// HasSinks reports whether the entry carries at least one sink.
func (e *RuleEntry) HasSinks() bool {
	return len(e.Sinks) > 0
}

// Match reasons, in the order they are tried.
const (
	MatchSameRule     = "same-rule"
	MatchSameSelector = "same-selector"
	MatchSameGroup    = "same-group"
)

// MatchedSource is a source linked to a sink, together with how it was linked.
type MatchedSource struct {
	RuleIndex     int    `json:"ruleIndex"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
	Keyword       string `json:"keyword"`
	Claim         string `json:"claim"`
	SemanticGroup string `json:"semanticGroup"`
	Excerpt       string `json:"excerpt"`
}

// Association links one sink URL of one rule to the sources that gate it.
// MatchedSources is empty when no correlation strategy found anything.
type Association struct {
	Sheet          string          `json:"sheet"`
	SinkRuleIndex  int             `json:"sinkRuleIndex"`
	SinkURL        string          `json:"sinkUrl"`
	MatchedSources []MatchedSource `json:"matchedSources"`
}

// IsCorrelated reports whether at least one source was linked to the sink.
func (a *Association) IsCorrelated() bool {
	return len(a.MatchedSources) > 0
}

// ClaimDetail is one unique disclosed trait with its weight and explanation.
type ClaimDetail struct {
	Category      string `json:"category"`
	SemanticGroup string `json:"semanticGroup"`
	Keyword       string `json:"keyword"`
	Claim         string `json:"claim"`
	Risk          int    `json:"risk"`
	Explanation   string `json:"explanation"`
}
