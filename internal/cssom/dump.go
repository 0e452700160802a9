package cssom

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed dump.schema.json
var dumpSchemaJSON string

const dumpSchemaURL = "https://github.com/nao1215/cssfp/dump.schema.json"

// dumpSchema compiles the embedded schema once.
var dumpSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(dumpSchemaURL, strings.NewReader(dumpSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(dumpSchemaURL)
})

// dumpDocument is the JSON layout of a CSSOM export taken from a live page.
// Numeric rule types and constructor names are both kept so that the rule
// kind can be resolved the same way a browser host would.
type dumpDocument struct {
	Page             string      `json:"page"`
	StyleTags        int         `json:"styleTags"`
	InlineStyleCount int         `json:"inlineStyleCount"`
	Sheets           []dumpSheet `json:"sheets"`
}

type dumpSheet struct {
	Href  string     `json:"href"`
	Error string     `json:"error,omitempty"`
	Rules []dumpRule `json:"rules"`
}

type dumpRule struct {
	Type          int        `json:"type"`
	Constructor   string     `json:"constructor,omitempty"`
	SelectorText  string     `json:"selectorText,omitempty"`
	CSSText       string     `json:"cssText"`
	ConditionText string     `json:"conditionText,omitempty"`
	MediaText     string     `json:"mediaText,omitempty"`
	Error         string     `json:"error,omitempty"`
	CSSRules      []dumpRule `json:"cssRules,omitempty"`
}

var (
	// ErrEmptyDump is returned when a dump holds no page and no sheets.
	ErrEmptyDump = errors.New("cssom dump is empty")

	// ErrInvalidDump is returned when a dump does not match the dump schema.
	ErrInvalidDump = errors.New("invalid cssom dump")
)

// ReadDump decodes a CSSOM export into a Document.
// The input is checked against the dump schema first, so a wrongly typed
// field is reported with its JSON pointer. A sheet or rule carrying an
// "error" string becomes unreadable with that message.
func ReadDump(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cssom dump: %w", err)
	}
	if err := validateDump(raw); err != nil {
		return nil, err
	}

	var d dumpDocument
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode cssom dump: %w", err)
	}
	if d.Page == "" && len(d.Sheets) == 0 {
		return nil, ErrEmptyDump
	}

	doc := &Document{
		URL:              d.Page,
		StyleTags:        d.StyleTags,
		InlineStyleCount: d.InlineStyleCount,
		Sheets:           make([]*StyleSheet, 0, len(d.Sheets)),
	}
	for _, s := range d.Sheets {
		if s.Error != "" {
			doc.Sheets = append(doc.Sheets, Inaccessible(s.Href, unreadable(s.Error)))
			continue
		}
		doc.Sheets = append(doc.Sheets, &StyleSheet{
			Href:  s.Href,
			Rules: convertRules(s.Rules),
		})
	}
	return doc, nil
}

// LoadDump reads a CSSOM export from a file.
func LoadDump(path string) (*Document, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to open cssom dump: %w", err)
	}
	defer f.Close()
	return ReadDump(f)
}

func convertRules(in []dumpRule) []*Rule {
	if in == nil {
		return nil
	}
	out := make([]*Rule, 0, len(in))
	for _, dr := range in {
		r := &Rule{
			Type:          Classify(dr.Type, dr.Constructor),
			SelectorText:  dr.SelectorText,
			CSSText:       dr.CSSText,
			ConditionText: dr.ConditionText,
			MediaText:     dr.MediaText,
		}
		if dr.Error != "" {
			r.RulesErr = unreadable(dr.Error)
		} else {
			r.Rules = convertRules(dr.CSSRules)
		}
		out = append(out, r)
	}
	return out
}

func validateDump(raw []byte) error {
	schema, err := dumpSchema()
	if err != nil {
		return fmt.Errorf("failed to compile dump schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode cssom dump: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDump, err)
	}
	return nil
}

func unreadable(msg string) error {
	return fmt.Errorf("%w: %s", ErrRulesUnreadable, msg)
}
