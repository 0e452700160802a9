package analyzer

import (
	"strings"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/dictionary"
	"github.com/nao1215/cssfp/internal/extract"
	"github.com/nao1215/cssfp/internal/model"
)

// Classifier turns one rule node into its source and sink descriptors.
// It only looks at the node's own text; nothing is inherited from parents.
type Classifier struct {
	// sourceExcerptLen caps the excerpt stored with each source.
	sourceExcerptLen int
}

// NewClassifier creates a Classifier with the given source excerpt cap.
// A non-positive cap falls back to DefaultSourceExcerptLength.
func NewClassifier(sourceExcerptLen int) *Classifier {
	if sourceExcerptLen <= 0 {
		sourceExcerptLen = DefaultSourceExcerptLength
	}
	return &Classifier{sourceExcerptLen: sourceExcerptLen}
}

// Sources returns the deduplicated sources of a rule.
//
// Conditional rules are matched on their condition text only, never on their
// body, so a declaration that merely mentions a feature name is not a source.
// Font-face rules are matched on their whole text, and import rules on their
// attached media text.
func (c *Classifier) Sources(rule *cssom.Rule) []model.SourceDescriptor {
	if rule == nil {
		return nil
	}

	var out []model.SourceDescriptor
	switch rule.Type {
	case model.RuleMedia:
		out = c.match(model.CategoryMedia, dictionary.Media(), extract.ConditionText(rule))
	case model.RuleSupports:
		out = c.match(model.CategorySupports, dictionary.Supports(), extract.ConditionText(rule))
	case model.RuleContainer:
		out = c.match(model.CategoryContainer, dictionary.Container(), extract.ConditionText(rule))
	case model.RuleFontFace:
		out = c.match(model.CategoryFontFace, dictionary.FontFace(), rule.CSSText)
	case model.RuleImport:
		out = c.importSources(rule.MediaText)
	default:
		return nil
	}
	return dedupSources(out)
}

// match looks the text up in a table. The excerpt is the lower-cased text
// the keywords were found in.
func (c *Classifier) match(category string, table dictionary.Table, text string) []model.SourceDescriptor {
	hits := table.Match(text)
	if len(hits) == 0 {
		return nil
	}
	excerpt := extract.Truncate(strings.ToLower(strings.TrimSpace(text)), c.sourceExcerptLen)
	out := make([]model.SourceDescriptor, 0, len(hits))
	for _, h := range hits {
		out = append(out, model.SourceDescriptor{
			Reason:        model.ReasonKeywordMatch,
			Category:      category,
			Keyword:       h.Keyword,
			SemanticGroup: h.Group,
			Claim:         h.Claim,
			Excerpt:       excerpt,
		})
	}
	return out
}

// importSources reports every media keyword of an @import media list.
// An import without media text is unconditional and has no source.
func (c *Classifier) importSources(mediaText string) []model.SourceDescriptor {
	media := strings.ToLower(strings.TrimSpace(mediaText))
	if media == "" {
		return nil
	}
	excerpt := extract.Truncate(media, c.sourceExcerptLen)
	var out []model.SourceDescriptor
	for _, key := range dictionary.ImportMediaKeys() {
		if !strings.Contains(media, key) {
			continue
		}
		out = append(out, model.SourceDescriptor{
			Reason:        model.ReasonKeywordMatch,
			Category:      model.CategoryImport,
			Keyword:       key,
			SemanticGroup: model.GroupImportCondition,
			Claim:         "conditional import via " + key,
			Excerpt:       excerpt,
		})
	}
	return out
}

// Sinks returns the sink of a rule, or nil when the rule fetches nothing.
// A rule has at most one sink descriptor listing all of its URLs. The text
// of a block rule holding nested rules includes its children; only its
// prelude is inspected so that a child's url() is not counted twice.
func (c *Classifier) Sinks(rule *cssom.Rule) []model.SinkDescriptor {
	if rule == nil {
		return nil
	}
	text := rule.CSSText
	if holdsRules(rule) {
		text = extract.Prelude(text)
	}
	urls := extract.SinkURLs(text)
	if len(urls) > 0 {
		return []model.SinkDescriptor{{Reason: model.ReasonURLSink, URLs: urls}}
	}
	if rule.Type == model.RuleImport {
		return []model.SinkDescriptor{{
			Reason: model.ReasonImportPlaceholder,
			URLs:   []string{model.ImportPlaceholderURL},
		}}
	}
	return nil
}

// holdsRules reports whether the body of a rule is a list of rules rather
// than declarations. Imports are excluded: their text never contains the
// imported sheet.
func holdsRules(rule *cssom.Rule) bool {
	switch rule.Type {
	case model.RuleImport:
		return false
	case model.RuleMedia, model.RuleSupports, model.RuleContainer, model.RuleKeyframes:
		return true
	default:
		return len(rule.Rules) > 0 || rule.RulesErr != nil
	}
}

// dedupSources keeps the first source of every (category, keyword) pair.
func dedupSources(in []model.SourceDescriptor) []model.SourceDescriptor {
	if len(in) < 2 {
		return in
	}
	type key struct{ category, keyword string }
	seen := make(map[key]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		k := key{s.Category, s.Keyword}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
