package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// literalURLRegex matches url(...) with an optional single or double quote.
	literalURLRegex = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+)['"]?\s*\)`)

	// importURLRegex matches the target of an @import, given either as
	// url(...) or as a bare quoted string.
	importURLRegex = regexp.MustCompile(`(?i)@import\s+(?:url\(\s*['"]?([^'")]+)['"]?\s*\)|['"]([^'"]+)['"])`)
)

// LiteralURLs returns the argument of every url(...) reference in text,
// in order of appearance. Quotes are stripped; the URL itself is returned as
// written.
func LiteralURLs(text string) []string {
	if text == "" {
		return nil
	}
	matches := literalURLRegex.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if u := strings.TrimSpace(m[1]); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// ImportURLs returns the target of every @import in text, in order of
// appearance.
func ImportURLs(text string) []string {
	if text == "" {
		return nil
	}
	matches := importURLRegex.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		u := m[2]
		if m[1] != "" {
			u = strings.TrimSpace(m[1])
		}
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// SinkURLs returns the outbound URLs of a rule text: every literal url(...)
// followed by every @import target that the literal pass did not already
// return. An @import written as url(...) is therefore reported once.
func SinkURLs(text string) []string {
	literal := LiteralURLs(text)
	seen := make(map[string]struct{}, len(literal))
	for _, u := range literal {
		seen[u] = struct{}{}
	}
	out := literal
	for _, u := range ImportURLs(text) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Prelude returns the text of a block rule before its body: everything up to
// the first "{" outside quotes and parentheses. Text without a body is
// returned whole.
func Prelude(text string) string {
	var (
		quote byte
		depth int
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')' && depth > 0:
			depth--
		case c == '{' && depth == 0:
			return text[:i]
		}
	}
	return text
}

// Conditioned is a rule that may carry a condition.
// ConditionText is the condition of @media, @supports and @container rules;
// MediaText is the media list attached to an @import rule.
type Conditioned interface {
	Condition() string
	Media() string
}

// ConditionText returns the rule's own condition text, or its attached media
// text, or the empty string. A nil rule has no condition.
func ConditionText(rule Conditioned) string {
	if rule == nil {
		return ""
	}
	if c := strings.TrimSpace(rule.Condition()); c != "" {
		return c
	}
	return strings.TrimSpace(rule.Media())
}

// Truncate shortens s to at most n bytes and appends "..." when it cut
// something. n <= 0 disables truncation. The cut never splits a UTF-8
// sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
