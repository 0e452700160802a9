package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// InaccessibleRules is the value recorded in place of a rule count for a
// stylesheet whose rule list could not be read.
const InaccessibleRules = "inaccessible"

// Labels used for stylesheets without an href.
const (
	InlineSheetHref  = "(inline <style>)"
	InlineSheetLabel = "(inline)"
)

// RuleCount is either the number of rules collected from a sheet or the
// marker that the sheet could not be read.
// It serializes as a JSON number or as the string "inaccessible".
type RuleCount struct {
	Count        int
	Inaccessible bool
}

// CountOf returns a RuleCount for n collected rules.
func CountOf(n int) RuleCount {
	return RuleCount{Count: n}
}

// Unreadable returns the RuleCount of an inaccessible sheet.
func Unreadable() RuleCount {
	return RuleCount{Inaccessible: true}
}

// String returns the count, or "inaccessible".
func (c RuleCount) String() string {
	if c.Inaccessible {
		return InaccessibleRules
	}
	return strconv.Itoa(c.Count)
}

// MarshalJSON implements json.Marshaler.
func (c RuleCount) MarshalJSON() ([]byte, error) {
	if c.Inaccessible {
		return json.Marshal(InaccessibleRules)
	}
	return json.Marshal(c.Count)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *RuleCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != InaccessibleRules {
			return fmt.Errorf("unexpected rule count %q", s)
		}
		*c = Unreadable()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rule count must be a number or %q: %w", InaccessibleRules, err)
	}
	*c = CountOf(n)
	return nil
}

// SheetRecord is the per-stylesheet part of a report.
type SheetRecord struct {
	// Href is the sheet URL, or InlineSheetHref for an embedded sheet.
	Href string `json:"href"`

	// Rules is the number of collected entries, or the inaccessible marker.
	Rules RuleCount `json:"rules"`

	// RulesList holds the collected entries in document order.
	// It is empty for an inaccessible sheet.
	RulesList []RuleEntry `json:"rulesList"`
}

// Summary holds the report counters.
type Summary struct {
	SheetsAccessible   int `json:"sheetsAccessible"`
	SheetsInaccessible int `json:"sheetsInaccessible"`
	TotalRulesScanned  int `json:"totalRulesScanned"`
	TotalSinks         int `json:"totalSinks"`
	TotalSources       int `json:"totalSources"`
	TotalAssociations  int `json:"totalAssociations"`
}

// Report is the result of one scan of one document.
type Report struct {
	// === Document ===

	// Page is the URL of the scanned document.
	Page string `json:"page"`

	// Timestamp is when the scan ran.
	Timestamp time.Time `json:"timestamp"`

	// Sheets holds one record per stylesheet, in document order.
	Sheets []SheetRecord `json:"sheets"`

	// Inaccessible lists the sheets whose rules could not be read.
	// Inline sheets are listed as InlineSheetLabel.
	Inaccessible []string `json:"inaccessible"`

	// StyleTags is the number of <style> elements in the document.
	StyleTags int `json:"styleTags"`

	// InlineStyleCount is the number of elements carrying a style attribute.
	InlineStyleCount int `json:"inlineStyleCount"`

	// === Correlation ===

	// Associations holds one entry per distinct sink URL of each sink rule.
	Associations []Association `json:"associations"`

	// Summary holds the counters.
	Summary Summary `json:"summary"`

	// === Verdict ===

	// Claims is the sorted set of "<group>: <claim>" strings.
	Claims []string `json:"claims"`

	// ClaimDetails holds the unique claims, highest risk first.
	ClaimDetails []ClaimDetail `json:"claimDetails"`

	// RiskScore is the sum of the risk of every claim detail.
	RiskScore int `json:"riskScore"`

	// RiskLevel rates RiskScore.
	RiskLevel RiskLevel `json:"riskLevel"`

	// Verdict is the human readable outcome.
	Verdict string `json:"verdict"`

	// LikelyFingerprinting is true if any sink was linked to a source.
	LikelyFingerprinting bool `json:"likelyFingerprinting"`
}

// NewReport creates an empty report for the given page.
// All list fields are non-nil so that they serialize as [] rather than null.
func NewReport(page string, ts time.Time) *Report {
	return &Report{
		Page:         page,
		Timestamp:    ts,
		Sheets:       make([]SheetRecord, 0),
		Inaccessible: make([]string, 0),
		Associations: make([]Association, 0),
		Claims:       make([]string, 0),
		ClaimDetails: make([]ClaimDetail, 0),
		RiskLevel:    RiskNone,
		Verdict:      Verdict(false),
	}
}

// Entry returns the entry at index i of the sheet with the given href, or nil.
func (r *Report) Entry(href string, i int) *RuleEntry {
	for si := range r.Sheets {
		if r.Sheets[si].Href != href {
			continue
		}
		if i >= 0 && i < len(r.Sheets[si].RulesList) {
			return &r.Sheets[si].RulesList[i]
		}
	}
	return nil
}

// CorrelatedAssociations returns the associations that matched a source.
func (r *Report) CorrelatedAssociations() []Association {
	out := make([]Association, 0, len(r.Associations))
	for _, a := range r.Associations {
		if a.IsCorrelated() {
			out = append(out, a)
		}
	}
	return out
}
