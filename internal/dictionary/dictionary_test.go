package dictionary

import (
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/cssfp/internal/model"
)

func TestTableSizes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		table Table
		want  int
	}{
		{"media", Media(), 32},
		{"supports", Supports(), 28},
		{"container", Container(), 6},
		{"font-face", FontFace(), 13},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if len(tc.table) != tc.want {
				t.Errorf("got %d entries, expected %d", len(tc.table), tc.want)
			}
		})
	}
}

func TestTablesAreWellFormed(t *testing.T) {
	t.Parallel()

	for _, table := range []Table{Media(), Supports(), Container(), FontFace()} {
		seen := make(map[string]bool)
		for _, e := range table {
			if e.Keyword != strings.ToLower(e.Keyword) {
				t.Errorf("keyword %q is not lower-case", e.Keyword)
			}
			if e.Group == "" || e.Claim == "" {
				t.Errorf("keyword %q has an empty group or claim", e.Keyword)
			}
			if seen[e.Keyword] {
				t.Errorf("keyword %q is listed twice", e.Keyword)
			}
			seen[e.Keyword] = true
		}
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		table Table
		text  string
		want  []string
	}{
		{
			name:  "color scheme matches color too",
			table: Media(),
			text:  "(prefers-color-scheme: dark)",
			want:  []string{"prefers-color-scheme", "color"},
		},
		{
			name:  "case insensitive",
			table: Media(),
			text:  "(HOVER: HOVER)",
			want:  []string{"hover"},
		},
		{
			name:  "width family",
			table: Media(),
			text:  "(min-device-width: 400px)",
			want:  []string{"width", "device-width"},
		},
		{
			name:  "selector support",
			table: Supports(),
			text:  "selector(:has(a))",
			want:  []string{"selector(:has"},
		},
		{
			name:  "double quoted format",
			table: FontFace(),
			text:  `src: url(a.woff2) format("woff2")`,
			want:  []string{`format("woff2")`},
		},
		{
			name:  "nothing",
			table: Media(),
			text:  "all",
			want:  nil,
		},
		{
			name:  "empty",
			table: Supports(),
			text:  "",
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, e := range tc.table.Match(tc.text) {
				got = append(got, e.Keyword)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %q, expected %q", got, tc.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	e, ok := Media().Lookup("prefers-reduced-motion")
	if !ok {
		t.Fatal("expected prefers-reduced-motion to be found")
	}
	if e.Group != model.GroupUserPreference {
		t.Errorf("got %q, expected %q", e.Group, model.GroupUserPreference)
	}
	if _, ok := Media().Lookup("prefers"); ok {
		t.Error("Lookup must not match a prefix")
	}
}

func TestForCategory(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		category string
		want     int
		ok       bool
	}{
		{model.CategoryMedia, 32, true},
		{model.CategoryImport, 32, true},
		{model.CategorySupports, 28, true},
		{model.CategoryContainer, 6, true},
		{model.CategoryFontFace, 13, true},
		{"@page", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.category, func(t *testing.T) {
			t.Parallel()
			table, ok := ForCategory(tc.category)
			if ok != tc.ok || len(table) != tc.want {
				t.Errorf("got (%d, %v), expected (%d, %v)", len(table), ok, tc.want, tc.ok)
			}
		})
	}
}

func TestImportMediaKeys(t *testing.T) {
	t.Parallel()

	keys := ImportMediaKeys()
	if !slices.Equal(keys, Media().Keywords()) {
		t.Errorf("import keys should be the media keywords, got %d keys", len(keys))
	}
}

func TestTablesAreCopies(t *testing.T) {
	t.Parallel()

	accessors := map[string]func() Table{
		"media":      Media,
		"supports":   Supports,
		"container":  Container,
		"font-face":  FontFace,
		"for import": func() Table { tb, _ := ForCategory(model.CategoryImport); return tb },
	}
	for name, get := range accessors {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			tb := get()
			first := tb[0]
			tb[0] = Entry{Keyword: "overwritten"}
			if got := get()[0]; got != first {
				t.Errorf("got %+v after modifying a copy, expected %+v", got, first)
			}
		})
	}
}
