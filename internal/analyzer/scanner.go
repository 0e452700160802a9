package analyzer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/model"
)

const (
	// DefaultMaxRulesPerSheet caps the entries collected from one stylesheet.
	// Large frameworks ship a few thousand rules; the cap keeps a single
	// sheet from dominating a scan.
	DefaultMaxRulesPerSheet = 1500

	// DefaultExcerptLength caps the cssText stored with each entry.
	DefaultExcerptLength = 1200

	// DefaultSourceExcerptLength caps the condition excerpt stored with each source.
	DefaultSourceExcerptLength = 200
)

// Options configures a Scanner.
type Options struct {
	// MaxRulesPerSheet caps the entries collected from one stylesheet.
	MaxRulesPerSheet int

	// ExcerptLength caps the cssText stored with each entry.
	ExcerptLength int

	// SourceExcerptLength caps the excerpt stored with each source.
	SourceExcerptLength int

	// Thresholds rates the risk score.
	Thresholds model.Thresholds
}

// DefaultOptions returns the standard scanner options.
func DefaultOptions() Options {
	return Options{
		MaxRulesPerSheet:    DefaultMaxRulesPerSheet,
		ExcerptLength:       DefaultExcerptLength,
		SourceExcerptLength: DefaultSourceExcerptLength,
		Thresholds:          model.DefaultThresholds(),
	}
}

// Scanner runs the analysis on a document and assembles the report.
// A Scanner may be shared by concurrent scans: each scan builds its own
// report, and only the last-result cache is shared.
type Scanner struct {
	options Options
	walker  *Walker
	logger  *slog.Logger
	now     func() time.Time

	// last holds the most recent report for inspection.
	last atomic.Pointer[model.Report]
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithOptions replaces the scanner options.
func WithOptions(o Options) Option {
	return func(s *Scanner) {
		s.options = o
	}
}

// WithMaxRulesPerSheet sets the per-sheet entry cap.
func WithMaxRulesPerSheet(n int) Option {
	return func(s *Scanner) {
		s.options.MaxRulesPerSheet = n
	}
}

// WithThresholds sets the risk level boundaries.
func WithThresholds(t model.Thresholds) Option {
	return func(s *Scanner) {
		s.options.Thresholds = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithClock sets the function used to timestamp reports.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		options: DefaultOptions(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.options.Thresholds == (model.Thresholds{}) {
		s.options.Thresholds = model.DefaultThresholds()
	}
	s.walker = NewWalker(
		NewClassifier(s.options.SourceExcerptLength),
		s.options.MaxRulesPerSheet,
		s.options.ExcerptLength,
		s.logger,
	)
	return s
}

// Scan analyzes every stylesheet of doc and returns the report.
// An unreadable sheet is recorded as inaccessible and does not fail the
// scan. The only error is the context's, checked between sheets.
func (s *Scanner) Scan(ctx context.Context, doc *cssom.Document) (*model.Report, error) {
	if doc == nil {
		doc = &cssom.Document{}
	}
	report := model.NewReport(doc.URL, s.now())
	report.StyleTags = doc.StyleTags
	report.InlineStyleCount = doc.InlineStyleCount

	for _, sheet := range doc.Sheets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if sheet == nil {
			continue
		}

		href := sheet.Href
		if href == "" {
			href = model.InlineSheetHref
		}
		rec := model.SheetRecord{Href: href, RulesList: []model.RuleEntry{}}

		entries, err := s.walker.WalkSheet(sheet)
		if err != nil {
			s.logger.Debug("stylesheet rules are not readable",
				"href", href,
				"error", err)
			rec.Rules = model.Unreadable()
			label := sheet.Href
			if label == "" {
				label = model.InlineSheetLabel
			}
			report.Inaccessible = append(report.Inaccessible, label)
			report.Sheets = append(report.Sheets, rec)
			continue
		}

		rec.RulesList = entries
		rec.Rules = model.CountOf(len(entries))
		if len(entries) == s.walker.maxRules {
			s.logger.Debug("rule cap reached", "href", href, "max", s.walker.maxRules)
		}
		report.Sheets = append(report.Sheets, rec)
		report.Associations = append(report.Associations, Associate(href, entries)...)
	}

	v := Aggregate(report.Associations, s.options.Thresholds)
	report.Claims = v.Claims
	report.ClaimDetails = v.ClaimDetails
	report.RiskScore = v.RiskScore
	report.RiskLevel = v.RiskLevel
	report.Verdict = v.Verdict
	report.LikelyFingerprinting = v.LikelyFingerprinting
	report.Summary = Summarize(report)

	s.last.Store(report)
	s.logger.Debug("scan complete",
		"page", report.Page,
		"sheets", len(report.Sheets),
		"associations", len(report.Associations),
		"risk_score", report.RiskScore,
		"risk_level", string(report.RiskLevel))

	return report, nil
}

// LastResult returns the most recent report, or nil before the first scan.
func (s *Scanner) LastResult() *model.Report {
	return s.last.Load()
}
