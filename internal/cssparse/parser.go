package cssparse

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/model"
)

// groupingAtRules hold a nested rule list without a condition of their own.
var groupingAtRules = map[string]bool{
	"layer":          true,
	"scope":          true,
	"starting-style": true,
	"document":       true,
	"-moz-document":  true,
}

// Parser builds cssom rule trees from stylesheet text.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseSheet parses the text of one stylesheet. href is empty for an
// embedded <style> sheet.
func (p *Parser) ParseSheet(href string, data []byte) *cssom.StyleSheet {
	return &cssom.StyleSheet{
		Href:  href,
		Rules: p.ParseRules(data),
	}
}

// ParseRules parses stylesheet text into its top-level rules.
// Parsing never fails: whatever could be recognised is returned.
func (p *Parser) ParseRules(data []byte) []*cssom.Rule {
	toks := p.tokenize(data)
	s := &stream{toks: toks}
	return p.ruleList(s)
}

// token is one lexer token with comments dropped and whitespace collapsed.
type token struct {
	tt   css.TokenType
	text string
}

func (p *Parser) tokenize(data []byte) []token {
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))
	var toks []token
	for {
		tt, text := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.logger.Debug("css lexer stopped early", "error", err)
			}
			return toks
		case css.CommentToken:
			continue
		case css.WhitespaceToken:
			if len(toks) > 0 && toks[len(toks)-1].tt == css.WhitespaceToken {
				continue
			}
			toks = append(toks, token{tt: tt, text: " "})
		default:
			toks = append(toks, token{tt: tt, text: string(text)})
		}
	}
}

type stream struct {
	toks []token
	pos  int
}

func (s *stream) eof() bool { return s.pos >= len(s.toks) }

func (s *stream) peek() token { return s.toks[s.pos] }

func (s *stream) next() token {
	t := s.toks[s.pos]
	s.pos++
	return t
}

// ruleList parses rules until the end of the stream.
func (p *Parser) ruleList(s *stream) []*cssom.Rule {
	var rules []*cssom.Rule
	for !s.eof() {
		switch s.peek().tt {
		case css.WhitespaceToken, css.CDOToken, css.CDCToken, css.SemicolonToken, css.RightBraceToken:
			s.next()
			continue
		case css.AtKeywordToken:
			if r := p.atRule(s); r != nil {
				rules = append(rules, r)
			}
		default:
			if r := p.qualifiedRule(s); r != nil {
				rules = append(rules, r)
			}
		}
	}
	return rules
}

// prelude collects tokens up to a top-level '{' or ';' and reports which one
// ended it (css.ErrorToken at end of input). The terminator is consumed.
func prelude(s *stream) ([]token, css.TokenType) {
	var out []token
	depth := 0
	for !s.eof() {
		t := s.next()
		switch t.tt {
		case css.LeftParenthesisToken, css.FunctionToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.LeftBraceToken:
			if depth == 0 {
				return out, css.LeftBraceToken
			}
		case css.SemicolonToken:
			if depth == 0 {
				return out, css.SemicolonToken
			}
		}
		out = append(out, t)
	}
	return out, css.ErrorToken
}

// block collects the tokens of a {} block whose opening brace was already
// consumed, and consumes the closing brace.
func block(s *stream) []token {
	var out []token
	depth := 0
	for !s.eof() {
		t := s.next()
		switch t.tt {
		case css.LeftBraceToken:
			depth++
		case css.RightBraceToken:
			if depth == 0 {
				return out
			}
			depth--
		}
		out = append(out, t)
	}
	return out
}

// join serializes tokens. Whitespace right after a function's opening
// parenthesis or right before its closing one is dropped, as a browser does,
// so `format( "woff2" )` reads `format("woff2")`.
func join(toks []token) string {
	var (
		b      strings.Builder
		parens []bool // true for a function, false for a plain "("
	)
	inFunction := func() bool { return len(parens) > 0 && parens[len(parens)-1] }
	for i, t := range toks {
		switch t.tt {
		case css.FunctionToken:
			parens = append(parens, true)
		case css.LeftParenthesisToken:
			parens = append(parens, false)
		case css.RightParenthesisToken:
			if len(parens) > 0 {
				parens = parens[:len(parens)-1]
			}
		case css.WhitespaceToken:
			if inFunction() && (toks[i-1].tt == css.FunctionToken ||
				(i+1 < len(toks) && toks[i+1].tt == css.RightParenthesisToken)) {
				continue
			}
		}
		b.WriteString(t.text)
	}
	return strings.TrimSpace(b.String())
}

func blockText(head string, body []token) string {
	inner := join(body)
	if inner == "" {
		return head + " { }"
	}
	return head + " { " + inner + " }"
}

func (p *Parser) qualifiedRule(s *stream) *cssom.Rule {
	pre, end := prelude(s)
	if end != css.LeftBraceToken {
		p.logger.Debug("dropping rule without a block", "prelude", join(pre))
		return nil
	}
	selector := join(pre)
	body := block(s)
	return &cssom.Rule{
		Type:         model.RuleStyle,
		SelectorText: selector,
		CSSText:      blockText(selector, body),
	}
}

func (p *Parser) atRule(s *stream) *cssom.Rule {
	keyword := s.next().text
	name := strings.ToLower(strings.TrimPrefix(keyword, "@"))
	pre, end := prelude(s)
	cond := join(pre)

	head := "@" + name
	if cond != "" {
		head += " " + cond
	}

	if end != css.LeftBraceToken {
		r := &cssom.Rule{Type: model.RuleUnknown, CSSText: head + ";"}
		if name == "import" {
			r.Type = model.RuleImport
			r.MediaText = importMedia(pre)
		}
		return r
	}

	body := block(s)
	r := &cssom.Rule{CSSText: blockText(head, body)}

	switch {
	case name == "media":
		r.Type = model.RuleMedia
		r.ConditionText = cond
		r.Rules = p.ruleList(&stream{toks: body})
	case name == "supports":
		r.Type = model.RuleSupports
		r.ConditionText = cond
		r.Rules = p.ruleList(&stream{toks: body})
	case name == "container":
		r.Type = model.RuleContainer
		r.ConditionText = cond
		r.Rules = p.ruleList(&stream{toks: body})
	case name == "font-face":
		r.Type = model.RuleFontFace
	case name == "page":
		r.Type = model.RulePage
		r.SelectorText = cond
	case strings.HasSuffix(name, "keyframes"):
		r.Type = model.RuleKeyframes
		r.Rules = keyframes(p.ruleList(&stream{toks: body}))
	case groupingAtRules[name]:
		r.Type = model.RuleUnknown
		r.Rules = p.ruleList(&stream{toks: body})
	default:
		r.Type = model.RuleUnknown
	}
	return r
}

// keyframes turns the blocks of a @keyframes rule into keyframe rules.
// A keyframe selector ("from", "50%") is not a style selector.
func keyframes(rules []*cssom.Rule) []*cssom.Rule {
	for _, r := range rules {
		r.Type = model.RuleUnknown
		r.SelectorText = ""
	}
	return rules
}

// importMedia returns the media list of an @import prelude: whatever follows
// the target, minus any layer and supports() clauses.
func importMedia(pre []token) string {
	i := 0
	skipSpace := func() {
		for i < len(pre) && pre[i].tt == css.WhitespaceToken {
			i++
		}
	}
	skipFunction := func() {
		depth := 0
		for i < len(pre) {
			t := pre[i]
			i++
			switch t.tt {
			case css.FunctionToken, css.LeftParenthesisToken:
				depth++
			case css.RightParenthesisToken:
				depth--
				if depth <= 0 {
					return
				}
			}
		}
	}

	skipSpace()
	if i < len(pre) {
		switch pre[i].tt {
		case css.URLToken, css.StringToken, css.BadURLToken, css.BadStringToken:
			i++
		case css.FunctionToken:
			if strings.EqualFold(pre[i].text, "url(") {
				skipFunction()
			}
		}
	}

	var rest []token
	for i < len(pre) {
		t := pre[i]
		switch {
		case t.tt == css.IdentToken && strings.EqualFold(t.text, "layer"):
			i++
			continue
		case t.tt == css.FunctionToken && (strings.EqualFold(t.text, "layer(") || strings.EqualFold(t.text, "supports(")):
			skipFunction()
			continue
		}
		rest = append(rest, t)
		i++
	}
	return join(rest)
}
