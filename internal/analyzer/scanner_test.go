package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/cssparse"
	"github.com/nao1215/cssfp/internal/model"
)

var fixedClock = func() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func darkModeDocument() *cssom.Document {
	return &cssom.Document{
		URL:       "https://shop.example/",
		StyleTags: 1,
		Sheets: []*cssom.StyleSheet{{
			Rules: []*cssom.Rule{{
				Type:          model.RuleMedia,
				ConditionText: "(prefers-color-scheme: dark)",
				CSSText:       `@media (prefers-color-scheme: dark) { .x { background: url("https://t.example/dark.png"); } }`,
				Rules: []*cssom.Rule{{
					Type:         model.RuleStyle,
					SelectorText: ".x",
					CSSText:      `.x { background: url("https://t.example/dark.png"); }`,
				}},
			}},
		}},
	}
}

func TestScanDarkModeBeacon(t *testing.T) {
	t.Parallel()

	s := NewScanner(WithClock(fixedClock))
	report, err := s.Scan(t.Context(), darkModeDocument())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if report.Page != "https://shop.example/" || !report.Timestamp.Equal(fixedClock()) {
		t.Errorf("unexpected header: %q %v", report.Page, report.Timestamp)
	}
	if len(report.Sheets) != 1 || report.Sheets[0].Href != model.InlineSheetHref {
		t.Fatalf("unexpected sheets: %+v", report.Sheets)
	}

	if len(report.Associations) != 1 {
		t.Fatalf("expected 1 association, got %+v", report.Associations)
	}
	a := report.Associations[0]
	if a.SinkRuleIndex != 1 || a.SinkURL != "https://t.example/dark.png" {
		t.Errorf("association = %+v", a)
	}
	if s := report.Summary; s.TotalSinks != 1 || s.TotalSources != 2 || s.TotalAssociations != 1 {
		t.Errorf("summary = %+v", s)
	}

	// Keywords match by substring, so "color" is found inside
	// "prefers-color-scheme" as well.
	wantSources := []struct {
		keyword string
		group   string
	}{
		{"prefers-color-scheme", model.GroupUserPreference},
		{"color", model.GroupDisplayCapability},
	}
	if len(a.MatchedSources) != len(wantSources) {
		t.Fatalf("matched sources = %+v", a.MatchedSources)
	}
	for i, want := range wantSources {
		m := a.MatchedSources[i]
		if m.Category != model.CategoryMedia || m.Keyword != want.keyword || m.SemanticGroup != want.group {
			t.Errorf("matchedSources[%d] = %+v, expected @media %q", i, m, want.keyword)
		}
		if m.Reason != model.MatchSameGroup || m.RuleIndex != 0 {
			t.Errorf("expected same-group match to entry 0, got %+v", m)
		}
	}

	if !report.LikelyFingerprinting || report.Verdict != model.VerdictLikely {
		t.Errorf("expected likely fingerprinting, got %q", report.Verdict)
	}
	if !slices.Contains(report.Claims, "user preference: color scheme (light/dark)") {
		t.Errorf("claims = %q", report.Claims)
	}
	if report.RiskScore != 5 || report.RiskLevel != model.RiskMedium {
		t.Errorf("risk = %d %q, expected 5 %q", report.RiskScore, report.RiskLevel, model.RiskMedium)
	}
	if report.ClaimDetails[0].SemanticGroup != model.GroupUserPreference {
		t.Errorf("highest risk claim should be the user preference, got %+v", report.ClaimDetails[0])
	}
}

func TestScanParsedConditionalBlock(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		css        string
		sinks      int
		correlated bool
	}{
		{"dark mode beacon", `@media (prefers-color-scheme: dark) { .a { background: url("track.png"); } }`, 1, true},
		{"print beacon", `@media print { .b { background:url(x.png) } }`, 1, true},
		{"two urls in one block", `@media (hover: hover) { .c { background: url(a.png) } .d { background: url(b.png) } }`, 2, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sheet := cssparse.NewParser().ParseSheet("", []byte(tc.css))
			report, err := NewScanner().Scan(t.Context(), &cssom.Document{Sheets: []*cssom.StyleSheet{sheet}})
			if err != nil {
				t.Fatal(err)
			}
			if report.Summary.TotalSinks != tc.sinks || len(report.Associations) != tc.sinks {
				t.Errorf("sinks %d, associations %d, expected %d", report.Summary.TotalSinks, len(report.Associations), tc.sinks)
			}
			for _, a := range report.Associations {
				if a.SinkRuleIndex == 0 {
					t.Errorf("the conditional rule itself must not be a sink: %+v", a)
				}
			}
			if report.LikelyFingerprinting != tc.correlated {
				t.Errorf("likelyFingerprinting = %v", report.LikelyFingerprinting)
			}
		})
	}
}

func TestScanPlainImport(t *testing.T) {
	t.Parallel()

	doc := &cssom.Document{
		URL: "https://plain.example/",
		Sheets: []*cssom.StyleSheet{{
			Href: "https://plain.example/main.css",
			Rules: []*cssom.Rule{{
				Type:    model.RuleImport,
				CSSText: `@import url("plain.css");`,
			}},
		}},
	}

	report, err := NewScanner().Scan(t.Context(), doc)
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Associations) != 1 {
		t.Fatalf("expected 1 association, got %d", len(report.Associations))
	}
	a := report.Associations[0]
	if a.SinkURL != "plain.css" || len(a.MatchedSources) != 0 {
		t.Errorf("unexpected association %+v", a)
	}
	if report.LikelyFingerprinting || report.RiskLevel != model.RiskNone || report.Verdict != model.VerdictNotLikely {
		t.Errorf("plain import must not be fingerprinting: %+v", report)
	}
	if report.Summary.TotalSinks != 1 || report.Summary.TotalSources != 0 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestScanInaccessibleSheet(t *testing.T) {
	t.Parallel()

	doc := &cssom.Document{
		URL: "https://mixed.example/",
		Sheets: []*cssom.StyleSheet{
			cssom.Inaccessible("https://cdn.other.example/a.css", nil),
			cssom.Inaccessible("", errors.New("boom")),
			{Href: "https://mixed.example/b.css", Rules: []*cssom.Rule{styleRule(".b", "color: red")}},
		},
	}

	report, err := NewScanner().Scan(t.Context(), doc)
	if err != nil {
		t.Fatal(err)
	}

	if len(report.Sheets) != 3 {
		t.Fatalf("expected 3 sheet records, got %d", len(report.Sheets))
	}
	if !report.Sheets[0].Rules.Inaccessible || len(report.Sheets[0].RulesList) != 0 {
		t.Errorf("first sheet should be inaccessible: %+v", report.Sheets[0])
	}
	if report.Sheets[1].Href != model.InlineSheetHref {
		t.Errorf("inline sheet href = %q", report.Sheets[1].Href)
	}
	wantInaccessible := []string{"https://cdn.other.example/a.css", model.InlineSheetLabel}
	if !slices.Equal(report.Inaccessible, wantInaccessible) {
		t.Errorf("inaccessible = %q, expected %q", report.Inaccessible, wantInaccessible)
	}
	if report.Sheets[2].Rules.Count != 1 {
		t.Errorf("readable sheet count = %v", report.Sheets[2].Rules)
	}

	s := report.Summary
	if s.SheetsAccessible != 1 || s.SheetsInaccessible != 2 || s.TotalRulesScanned != 1 {
		t.Errorf("summary = %+v", s)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"rules":"inaccessible"`) {
		t.Errorf("expected inaccessible marker in %s", data)
	}
}

func TestScanSummaryMatchesSheets(t *testing.T) {
	t.Parallel()

	doc := darkModeDocument()
	doc.Sheets = append(doc.Sheets, &cssom.StyleSheet{
		Href: "fonts.css",
		Rules: []*cssom.Rule{{
			Type:    model.RuleFontFace,
			CSSText: `@font-face { font-family: p; src: local("Arial"), url(/f?arial) format("woff2"); }`,
		}},
	})

	report, err := NewScanner().Scan(t.Context(), doc)
	if err != nil {
		t.Fatal(err)
	}

	total, sinks, sources := 0, 0, 0
	for _, sheet := range report.Sheets {
		total += len(sheet.RulesList)
		for _, e := range sheet.RulesList {
			sinks += len(e.Sinks)
			sources += len(e.Sources)
		}
	}
	s := report.Summary
	if s.TotalRulesScanned != total || s.TotalSinks != sinks || s.TotalSources != sources {
		t.Errorf("summary %+v does not match sheets (%d, %d, %d)", s, total, sinks, sources)
	}
	if s.TotalAssociations != len(report.Associations) {
		t.Errorf("totalAssociations = %d, expected %d", s.TotalAssociations, len(report.Associations))
	}

	sum := 0
	for _, d := range report.ClaimDetails {
		sum += d.Risk
	}
	if sum != report.RiskScore {
		t.Errorf("riskScore = %d, expected %d", report.RiskScore, sum)
	}
	if report.ClaimDetails[0].Keyword != "local(" || report.ClaimDetails[0].Risk != 4 {
		t.Errorf("local font probe should rank first, got %+v", report.ClaimDetails[0])
	}
	if report.RiskLevel != model.RiskHigh {
		t.Errorf("riskLevel = %q, score %d", report.RiskLevel, report.RiskScore)
	}
}

func TestScanThresholds(t *testing.T) {
	t.Parallel()

	s := NewScanner(WithThresholds(model.Thresholds{High: 100, Medium: 50}))
	report, err := s.Scan(t.Context(), darkModeDocument())
	if err != nil {
		t.Fatal(err)
	}
	if report.RiskLevel != model.RiskLow {
		t.Errorf("riskLevel = %q with raised thresholds", report.RiskLevel)
	}
}

func TestScanLastResult(t *testing.T) {
	t.Parallel()

	s := NewScanner()
	if s.LastResult() != nil {
		t.Fatal("expected no result before the first scan")
	}
	report, err := s.Scan(t.Context(), darkModeDocument())
	if err != nil {
		t.Fatal(err)
	}
	if s.LastResult() != report {
		t.Error("LastResult() should return the latest report")
	}
}

func TestScanCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewScanner().Scan(ctx, darkModeDocument())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScanNilDocument(t *testing.T) {
	t.Parallel()

	report, err := NewScanner().Scan(t.Context(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Sheets) != 0 || report.LikelyFingerprinting {
		t.Errorf("unexpected report %+v", report)
	}
}
