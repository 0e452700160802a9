package analyzer

import (
	"cmp"
	"slices"

	"github.com/nao1215/cssfp/internal/model"
)

// Verdict is the aggregated outcome of a set of associations.
type Verdict struct {
	Claims               []string
	ClaimDetails         []model.ClaimDetail
	RiskScore            int
	RiskLevel            model.RiskLevel
	Verdict              string
	LikelyFingerprinting bool
}

// Aggregate derives the claims, risk and verdict of a report from its
// associations. Each disclosed trait counts once, however many sinks it gates.
func Aggregate(associations []model.Association, thresholds model.Thresholds) Verdict {
	likely := false
	claimSet := make(map[string]struct{})
	type detailKey struct{ group, claim, keyword string }
	detailSeen := make(map[detailKey]struct{})
	details := make([]model.ClaimDetail, 0)

	for _, a := range associations {
		if a.IsCorrelated() {
			likely = true
		}
		for _, s := range a.MatchedSources {
			claimSet[s.SemanticGroup+": "+s.Claim] = struct{}{}

			k := detailKey{s.SemanticGroup, s.Claim, s.Keyword}
			if _, ok := detailSeen[k]; ok {
				continue
			}
			detailSeen[k] = struct{}{}
			details = append(details, model.ClaimDetail{
				Category:      s.Category,
				SemanticGroup: s.SemanticGroup,
				Keyword:       s.Keyword,
				Claim:         s.Claim,
				Risk:          model.RiskFor(s.SemanticGroup, s.Keyword),
				Explanation:   model.ExplanationFor(s.SemanticGroup, s.Keyword, s.Claim),
			})
		}
	}

	slices.SortStableFunc(details, func(a, b model.ClaimDetail) int {
		if c := cmp.Compare(b.Risk, a.Risk); c != 0 {
			return c
		}
		return cmp.Compare(a.Claim, b.Claim)
	})

	claims := make([]string, 0, len(claimSet))
	for c := range claimSet {
		claims = append(claims, c)
	}
	slices.Sort(claims)

	score := 0
	for _, d := range details {
		score += d.Risk
	}

	return Verdict{
		Claims:               claims,
		ClaimDetails:         details,
		RiskScore:            score,
		RiskLevel:            thresholds.Level(likely, score),
		Verdict:              model.Verdict(likely),
		LikelyFingerprinting: likely,
	}
}

// Summarize computes the report counters.
func Summarize(r *model.Report) model.Summary {
	var s model.Summary
	for _, sheet := range r.Sheets {
		if !sheet.Rules.Inaccessible {
			s.SheetsAccessible++
		}
		s.TotalRulesScanned += len(sheet.RulesList)
		for _, e := range sheet.RulesList {
			s.TotalSinks += len(e.Sinks)
			s.TotalSources += len(e.Sources)
		}
	}
	s.SheetsInaccessible = len(r.Inaccessible)
	s.TotalAssociations = len(r.Associations)
	return s
}
