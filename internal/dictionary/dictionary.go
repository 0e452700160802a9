package dictionary

import (
	"slices"
	"strings"

	"github.com/nao1215/cssfp/internal/model"
)

// Entry is one keyword of a semantic table.
type Entry struct {
	// Keyword is matched by lower-cased substring containment.
	Keyword string
	// Group is the semantic group the keyword discloses.
	Group string
	// Claim is the human readable trait.
	Claim string
}

// Table is an ordered list of entries. Order is the match order.
type Table []Entry

// Match returns every entry whose keyword occurs in text, in table order.
// The text is lower-cased before matching, so callers may pass raw text.
func (t Table) Match(text string) []Entry {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []Entry
	for _, e := range t {
		if strings.Contains(lower, e.Keyword) {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the entry for an exact keyword.
func (t Table) Lookup(keyword string) (Entry, bool) {
	for _, e := range t {
		if e.Keyword == keyword {
			return e, true
		}
	}
	return Entry{}, false
}

// Keywords returns the table keywords in order.
func (t Table) Keywords() []string {
	out := make([]string, len(t))
	for i, e := range t {
		out[i] = e.Keyword
	}
	return out
}

// The accessors return copies, so callers cannot change the shared tables.

// Media returns the media-feature table.
func Media() Table { return slices.Clone(mediaTable) }

// Supports returns the feature-support table.
func Supports() Table { return slices.Clone(supportsTable) }

// Container returns the container-query table.
func Container() Table { return slices.Clone(containerTable) }

// FontFace returns the font-face table.
func FontFace() Table { return slices.Clone(fontFaceTable) }

// ImportMediaKeys returns the keywords looked up in the media text of an
// @import rule. They are the media-feature keywords.
func ImportMediaKeys() []string {
	return mediaTable.Keywords()
}

// ForCategory returns the table consulted for a source category.
func ForCategory(category string) (Table, bool) {
	switch category {
	case model.CategoryMedia, model.CategoryImport:
		return Media(), true
	case model.CategorySupports:
		return Supports(), true
	case model.CategoryContainer:
		return Container(), true
	case model.CategoryFontFace:
		return FontFace(), true
	default:
		return nil, false
	}
}
