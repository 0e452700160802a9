package model

// RiskLevel is the coarse rating of a report's risk score.
type RiskLevel string

const (
	// RiskNone is used when no sink could be linked to a source.
	RiskNone RiskLevel = "none"
	// RiskLow is used for correlated reports below the medium threshold.
	RiskLow RiskLevel = "low"
	// RiskMedium is used for scores at or above the medium threshold.
	RiskMedium RiskLevel = "medium"
	// RiskHigh is used for scores at or above the high threshold.
	RiskHigh RiskLevel = "high"
)

const (
	// DefaultHighRiskThreshold is the score from which a correlated report is rated high.
	DefaultHighRiskThreshold = 7
	// DefaultMediumRiskThreshold is the score from which a correlated report is rated medium.
	DefaultMediumRiskThreshold = 3
)

// Verdict strings.
const (
	VerdictLikely    = "likely fingerprinting"
	VerdictNotLikely = "likely not fingerprinting"
)

// Thresholds holds the score boundaries between risk levels.
type Thresholds struct {
	High   int
	Medium int
}

// DefaultThresholds returns the standard risk boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:   DefaultHighRiskThreshold,
		Medium: DefaultMediumRiskThreshold,
	}
}

// Level rates a score. An uncorrelated report is always RiskNone, whatever
// its score.
func (t Thresholds) Level(likely bool, score int) RiskLevel {
	switch {
	case !likely:
		return RiskNone
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Rank orders risk levels from none (0) to high (3).
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Verdict returns the human readable verdict for a correlation outcome.
func Verdict(likely bool) string {
	if likely {
		return VerdictLikely
	}
	return VerdictNotLikely
}
