package model

import (
	"encoding/json"
	"fmt"
)

// RuleType identifies the kind of a style rule node.
// The host assigns it once when the rule tree is built, so the analyzer
// never has to guess a rule's kind from its text.
type RuleType int

const (
	// RuleUnknown is any rule whose kind could not be determined or that the
	// analyzer does not treat specially (@charset, @namespace, keyframe, ...).
	RuleUnknown RuleType = iota
	// RuleStyle is a plain selector rule.
	RuleStyle
	// RuleImport is an @import rule.
	RuleImport
	// RuleMedia is an @media rule.
	RuleMedia
	// RuleFontFace is an @font-face rule.
	RuleFontFace
	// RuleSupports is an @supports rule.
	RuleSupports
	// RuleContainer is an @container rule.
	RuleContainer
	// RulePage is an @page rule.
	RulePage
	// RuleKeyframes is an @keyframes rule.
	RuleKeyframes
)

// ruleTypeNames holds the CSSOM interface name of every rule type.
// Reports carry these names so that dumps taken from a browser and dumps
// produced by the text parser look the same.
var ruleTypeNames = map[RuleType]string{
	RuleUnknown:   "CSSRule",
	RuleStyle:     "CSSStyleRule",
	RuleImport:    "CSSImportRule",
	RuleMedia:     "CSSMediaRule",
	RuleFontFace:  "CSSFontFaceRule",
	RuleSupports:  "CSSSupportsRule",
	RuleContainer: "CSSContainerRule",
	RulePage:      "CSSPageRule",
	RuleKeyframes: "CSSKeyframesRule",
}

// String returns the CSSOM interface name of the rule type.
func (t RuleType) String() string {
	if name, ok := ruleTypeNames[t]; ok {
		return name
	}
	return ruleTypeNames[RuleUnknown]
}

// IsConditional reports whether rules of this type carry a condition that
// scopes their children.
func (t RuleType) IsConditional() bool {
	switch t {
	case RuleMedia, RuleSupports, RuleContainer:
		return true
	default:
		return false
	}
}

// ParseRuleType maps a CSSOM interface name back to a RuleType.
// Unrecognised names map to RuleUnknown.
func ParseRuleType(name string) RuleType {
	for t, n := range ruleTypeNames {
		if n == name {
			return t
		}
	}
	return RuleUnknown
}

// MarshalJSON encodes the rule type as its interface name.
func (t RuleType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a rule type from its interface name.
func (t *RuleType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("rule type must be a string: %w", err)
	}
	*t = ParseRuleType(name)
	return nil
}
