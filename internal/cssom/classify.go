package cssom

import (
	"strings"

	"github.com/nao1215/cssfp/internal/model"
)

// Numeric rule types defined by the CSSOM. There is no standard number for
// container rules, so those are only recognised by constructor name.
const (
	StyleRuleType     = 1
	CharsetRuleType   = 2
	ImportRuleType    = 3
	MediaRuleType     = 4
	FontFaceRuleType  = 5
	PageRuleType      = 6
	KeyframesRuleType = 7
	KeyframeRuleType  = 8
	NamespaceRuleType = 10
	SupportsRuleType  = 12
)

var numericRuleTypes = map[int]model.RuleType{
	StyleRuleType:     model.RuleStyle,
	ImportRuleType:    model.RuleImport,
	MediaRuleType:     model.RuleMedia,
	FontFaceRuleType:  model.RuleFontFace,
	PageRuleType:      model.RulePage,
	KeyframesRuleType: model.RuleKeyframes,
	SupportsRuleType:  model.RuleSupports,
}

// Classify determines a rule's type from its numeric CSSOM type, falling back
// to its constructor name. Anything else is model.RuleUnknown.
func Classify(typeNum int, constructorName string) model.RuleType {
	if t, ok := numericRuleTypes[typeNum]; ok {
		return t
	}
	name := strings.TrimSpace(constructorName)
	if name == "" {
		return model.RuleUnknown
	}
	if t := model.ParseRuleType(name); t != model.RuleUnknown {
		return t
	}
	// Any other constructor naming a container is a container rule.
	if strings.Contains(strings.ToLower(name), "container") {
		return model.RuleContainer
	}
	return model.RuleUnknown
}
