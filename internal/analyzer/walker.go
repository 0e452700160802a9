package analyzer

import (
	"log/slog"
	"slices"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/extract"
	"github.com/nao1215/cssfp/internal/model"
)

// Walker flattens the rule tree of a stylesheet into entries.
type Walker struct {
	classifier *Classifier

	// maxRules caps the entries collected from one sheet.
	maxRules int

	// excerptLen caps the cssText stored with each entry.
	excerptLen int

	logger *slog.Logger
}

// NewWalker creates a Walker. Non-positive caps fall back to the defaults.
func NewWalker(classifier *Classifier, maxRules, excerptLen int, logger *slog.Logger) *Walker {
	if classifier == nil {
		classifier = NewClassifier(DefaultSourceExcerptLength)
	}
	if maxRules <= 0 {
		maxRules = DefaultMaxRulesPerSheet
	}
	if excerptLen <= 0 {
		excerptLen = DefaultExcerptLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		classifier: classifier,
		maxRules:   maxRules,
		excerptLen: excerptLen,
		logger:     logger,
	}
}

// WalkSheet returns the entries of a sheet in depth-first document order.
// It fails only when the sheet's top-level rule list cannot be read; an
// unreadable nested list is skipped and its parent entry kept.
// Collection stops silently once maxRules entries have been gathered.
func (w *Walker) WalkSheet(sheet *cssom.StyleSheet) ([]model.RuleEntry, error) {
	rules, err := sheet.CSSRules()
	if err != nil {
		return nil, err
	}
	out := make([]model.RuleEntry, 0, min(len(rules), w.maxRules))
	w.walk(rules, "", &out)
	return out, nil
}

func (w *Walker) walk(rules []*cssom.Rule, groupContext string, out *[]model.RuleEntry) {
	for _, rule := range rules {
		if len(*out) >= w.maxRules {
			return
		}
		if rule == nil {
			continue
		}

		// A rule's own condition scopes itself and its descendants.
		group := extract.ConditionText(rule)
		if group == "" {
			group = groupContext
		}

		*out = append(*out, w.entry(rule, group))

		children, err := rule.CSSRules()
		if err != nil {
			w.logger.Debug("skipping unreadable nested rules",
				"type", rule.Type.String(),
				"error", err)
			continue
		}
		if len(children) > 0 {
			w.walk(children, group, out)
		}
	}
}

func (w *Walker) entry(rule *cssom.Rule, group string) model.RuleEntry {
	e := model.RuleEntry{
		Type:     rule.Type,
		Selector: rule.SelectorText,
		CSSText:  extract.Truncate(rule.CSSText, w.excerptLen),
		Group:    group,
		URLs:     []string{},
		Sources:  w.classifier.Sources(rule),
		Sinks:    w.classifier.Sinks(rule),
	}
	if e.Sources == nil {
		e.Sources = []model.SourceDescriptor{}
	}
	if e.Sinks == nil {
		e.Sinks = []model.SinkDescriptor{}
	}
	if len(e.Sinks) > 0 {
		e.URLs = slices.Clone(e.Sinks[0].URLs)
	}
	return e
}
