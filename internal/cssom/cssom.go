package cssom

import (
	"errors"

	"github.com/nao1215/cssfp/internal/model"
)

// ErrRulesUnreadable is returned when a rule list cannot be read, for example
// because the stylesheet came from another origin without CORS approval.
var ErrRulesUnreadable = errors.New("css rules are not readable")

// Document is the stylesheet forest of one page.
type Document struct {
	// URL is the address of the page.
	URL string
	// Sheets holds the stylesheets in document order.
	Sheets []*StyleSheet
	// StyleTags is the number of <style> elements.
	StyleTags int
	// InlineStyleCount is the number of elements with a style attribute.
	InlineStyleCount int
}

// StyleSheet is one stylesheet of a document.
type StyleSheet struct {
	// Href is the sheet URL, empty for a <style> element.
	Href string
	// Rules holds the top-level rules. It is nil for a sheet without rules.
	Rules []*Rule
	// Err is set when the rule list cannot be read.
	Err error
}

// CSSRules returns the top-level rules or the reason they cannot be read.
func (s *StyleSheet) CSSRules() ([]*Rule, error) {
	if s == nil {
		return nil, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Rules, nil
}

// Inaccessible returns a sheet whose rule list cannot be read.
func Inaccessible(href string, err error) *StyleSheet {
	if err == nil {
		err = ErrRulesUnreadable
	}
	return &StyleSheet{Href: href, Err: err}
}

// Rule is one node of a rule tree.
type Rule struct {
	// Type is the kind of the rule, assigned when the tree is built.
	Type model.RuleType
	// SelectorText is the selector of a style rule.
	SelectorText string
	// CSSText is the serialized text of the rule.
	CSSText string
	// ConditionText is the condition of a @media, @supports or @container rule.
	ConditionText string
	// MediaText is the media list of an @import rule.
	MediaText string
	// Rules holds nested rules: grouping rule children, or the rules of the
	// sheet an @import pulled in.
	Rules []*Rule
	// RulesErr is set when the nested rules cannot be read.
	RulesErr error
}

// CSSRules returns the nested rules or the reason they cannot be read.
func (r *Rule) CSSRules() ([]*Rule, error) {
	if r == nil {
		return nil, nil
	}
	if r.RulesErr != nil {
		return nil, r.RulesErr
	}
	return r.Rules, nil
}

// Condition returns the condition text.
func (r *Rule) Condition() string {
	if r == nil {
		return ""
	}
	return r.ConditionText
}

// Media returns the attached media text.
func (r *Rule) Media() string {
	if r == nil {
		return ""
	}
	return r.MediaText
}

// Len returns the number of rules in the sheet including nested ones.
// Unreadable lists count as empty.
func (s *StyleSheet) Len() int {
	rules, err := s.CSSRules()
	if err != nil {
		return 0
	}
	return countRules(rules)
}

func countRules(rules []*Rule) int {
	n := 0
	for _, r := range rules {
		n++
		children, err := r.CSSRules()
		if err == nil {
			n += countRules(children)
		}
	}
	return n
}
