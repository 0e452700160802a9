package analyzer

import "github.com/nao1215/cssfp/internal/model"

// matchStrategy links the sink entry at index i to sources of the sheet.
type matchStrategy func(entries []model.RuleEntry, i int) []model.MatchedSource

// strategies are tried in order; the first one that finds anything wins.
var strategies = []matchStrategy{
	matchSameRule,
	matchSameSelector,
	matchSameGroup,
}

// Associate builds the associations of one sheet: one per distinct URL of
// every sink entry, each carrying the sources found by the first matching
// strategy. An association whose sink matched nothing is still returned.
func Associate(sheetHref string, entries []model.RuleEntry) []model.Association {
	var out []model.Association
	for i := range entries {
		e := &entries[i]
		if !e.HasSinks() {
			continue
		}

		matched := correlate(entries, i)
		seen := make(map[string]struct{}, len(e.Sinks[0].URLs))
		for _, u := range e.Sinks[0].URLs {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, model.Association{
				Sheet:          sheetHref,
				SinkRuleIndex:  i,
				SinkURL:        u,
				MatchedSources: cloneMatches(matched),
			})
		}
	}
	return out
}

func correlate(entries []model.RuleEntry, i int) []model.MatchedSource {
	for _, match := range strategies {
		if m := match(entries, i); len(m) > 0 {
			return m
		}
	}
	return []model.MatchedSource{}
}

func matchSameRule(entries []model.RuleEntry, i int) []model.MatchedSource {
	return appendMatches(nil, i, model.MatchSameRule, entries[i].Sources)
}

func matchSameSelector(entries []model.RuleEntry, i int) []model.MatchedSource {
	selector := entries[i].Selector
	if selector == "" {
		return nil
	}
	var out []model.MatchedSource
	for j := range entries {
		if j == i || entries[j].Selector != selector {
			continue
		}
		out = appendMatches(out, j, model.MatchSameSelector, entries[j].Sources)
	}
	return out
}

func matchSameGroup(entries []model.RuleEntry, i int) []model.MatchedSource {
	group := entries[i].Group
	if group == "" {
		return nil
	}
	var out []model.MatchedSource
	for j := range entries {
		if j == i || entries[j].Group != group {
			continue
		}
		out = appendMatches(out, j, model.MatchSameGroup, entries[j].Sources)
	}
	return out
}

func appendMatches(out []model.MatchedSource, j int, reason string, sources []model.SourceDescriptor) []model.MatchedSource {
	for _, s := range sources {
		out = append(out, model.MatchedSource{
			RuleIndex:     j,
			Reason:        reason,
			Category:      s.Category,
			Keyword:       s.Keyword,
			Claim:         s.Claim,
			SemanticGroup: s.SemanticGroup,
			Excerpt:       s.Excerpt,
		})
	}
	return out
}

func cloneMatches(in []model.MatchedSource) []model.MatchedSource {
	out := make([]model.MatchedSource, len(in))
	copy(out, in)
	return out
}
