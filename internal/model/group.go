package model

import "strings"

// Semantic groups. Every dictionary entry belongs to exactly one group, and
// the group decides how much a disclosed trait weighs.
const (
	GroupUserPreference     = "user preference"
	GroupInputCapability    = "input capability"
	GroupDisplayCapability  = "display capability"
	GroupGeometry           = "geometry"
	GroupAppEnvironment     = "app environment"
	GroupUABehavior         = "ua behavior"
	GroupMediaType          = "media type"
	GroupLayoutCapability   = "layout capability"
	GroupSelectorCapability = "selector capability"
	GroupGraphicsPipeline   = "graphics pipeline"
	GroupTimelineCapability = "timeline capability"
	GroupFontCapability     = "font capability"
	GroupColorCapability    = "color capability"
	GroupFormStyling        = "form styling"
	GroupEngineFeature      = "engine feature"
	GroupEngineHint         = "engine hint"
	GroupContainerQuery     = "container query"
	GroupFonts              = "fonts"
	GroupImportCondition    = "import condition"
)

const (
	localFontProbeKeyword    = "local("
	defaultRisk              = 1
	defaultExplanationPrefix = "Reveals "
)

// GroupInfo holds the weight and the default explanation of a semantic group.
type GroupInfo struct {
	Risk        int
	Explanation string
}

// groupInfoMapping is the single table of group weights.
// Groups that are missing here weigh defaultRisk and are explained by their
// claim.
var groupInfoMapping = map[string]GroupInfo{
	GroupFonts: {
		Risk:        3,
		Explanation: "Indicates which downloadable font formats the engine supports.",
	},
	GroupUserPreference: {
		Risk:        3,
		Explanation: "Reveals OS/user accessibility or UI preferences.",
	},
	GroupFontCapability: {
		Risk: 3,
	},
	GroupDisplayCapability: {
		Risk:        2,
		Explanation: "Reveals screen/output characteristics like color space or pixel density.",
	},
	GroupInputCapability: {
		Risk:        2,
		Explanation: "Reveals touch vs mouse and pointer precision.",
	},
	GroupLayoutCapability: {
		Risk:        2,
		Explanation: "Reveals support for modern layout features; implies engine/version.",
	},
	GroupSelectorCapability: {
		Risk:        2,
		Explanation: "Reveals support for newer selectors; implies engine/version.",
	},
	GroupGraphicsPipeline: {
		Risk:        2,
		Explanation: "Reveals graphics effects support; implies engine/version.",
	},
	GroupTimelineCapability: {
		Risk:        2,
		Explanation: "Reveals scroll/animation timeline support; implies engine/version.",
	},
	GroupContainerQuery: {
		Risk:        2,
		Explanation: "Uses container size/style to branch; layout-dependent signal.",
	},
	GroupImportCondition: {
		Risk:        2,
		Explanation: "Conditionally loads a stylesheet only when the media condition matches.",
	},
	GroupColorCapability: {
		Risk: 2,
	},
	GroupGeometry: {
		Risk:        1,
		Explanation: "Reveals viewport/device size buckets.",
	},
	GroupEngineFeature: {Risk: 1},
	GroupEngineHint:    {Risk: 1},
	GroupAppEnvironment: {
		Risk: 1,
	},
	GroupUABehavior:  {Risk: 1},
	GroupMediaType:   {Risk: 1},
	GroupFormStyling: {Risk: 1},
}

// userPreferenceExplanations refines the user preference explanation for the
// keywords that disclose a well known setting.
var userPreferenceExplanations = map[string]string{
	"forced-colors":          "Reveals OS high-contrast accessibility mode.",
	"prefers-color-scheme":   "Reveals light vs dark theme preference.",
	"prefers-reduced-motion": "Reveals motion sensitivity preference.",
}

// GetGroupInfo returns the table entry for a group and whether it exists.
func GetGroupInfo(group string) (GroupInfo, bool) {
	info, ok := groupInfoMapping[group]
	return info, ok
}

// RiskFor returns the weight of a disclosed trait.
// A font-face local() probe outweighs a format probe because it reveals the
// presence of an individual installed font.
func RiskFor(group, keyword string) int {
	if group == GroupFonts && strings.Contains(keyword, localFontProbeKeyword) {
		return 4
	}
	if info, ok := groupInfoMapping[group]; ok {
		return info.Risk
	}
	return defaultRisk
}

// ExplanationFor returns a one sentence explanation of a disclosed trait.
func ExplanationFor(group, keyword, claim string) string {
	switch group {
	case GroupFonts:
		if strings.Contains(keyword, localFontProbeKeyword) {
			return "Indicates whether a specific system font is installed."
		}
	case GroupUserPreference:
		if text, ok := userPreferenceExplanations[keyword]; ok {
			return text
		}
	}
	if info, ok := groupInfoMapping[group]; ok && info.Explanation != "" {
		return info.Explanation
	}

	subject := claim
	if subject == "" {
		subject = keyword
	}
	if subject == "" {
		subject = group
	}
	return defaultExplanationPrefix + subject
}
