package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/cssfp/internal/analyzer"
	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/crawler"
	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/model"
	"github.com/nao1215/cssfp/internal/report"
)

// DocumentCollector produces the CSSOM of a target. *crawler.Collector
// implements it.
type DocumentCollector interface {
	Collect(ctx context.Context, target string, site crawler.Site) (*cssom.Document, error)
}

// ReportSaver stores finished reports. *database.Store implements it.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *model.Report) (int64, error)
}

// CollectStep resolves the site configuration of the target and collects
// its stylesheets.
type CollectStep struct {
	collector DocumentCollector
	cfg       *config.Config
	logger    *slog.Logger
}

// CollectStepOption configures a CollectStep.
type CollectStepOption func(*CollectStep)

// WithCollectLogger sets a custom logger for the collect step.
func WithCollectLogger(logger *slog.Logger) CollectStepOption {
	return func(s *CollectStep) {
		s.logger = logger
	}
}

// NewCollectStep creates a collect step. cfg supplies the per-site
// cookies, headers and cross-origin setting.
func NewCollectStep(collector DocumentCollector, cfg *config.Config, opts ...CollectStepOption) *CollectStep {
	s := &CollectStep{
		collector: collector,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do executes the collect step.
func (s *CollectStep) Do(ctx context.Context, job *Job) error {
	job.Site = s.cfg.Site(config.SiteKey(job.Target))

	doc, err := s.collector.Collect(ctx, job.Target, job.Site.Crawler())
	if err != nil {
		return fmt.Errorf("failed to collect %s: %w", job.Target, err)
	}
	job.Document = doc

	s.logger.Info("stylesheets collected",
		"target", job.Target,
		"sheets", len(doc.Sheets),
		"style_tags", doc.StyleTags,
	)
	return nil
}

// AnalyzeStep runs the analyzer on the collected document.
// Scanners are kept per option set, so a site-level rule cap gets its own
// scanner while every other target shares the default one.
type AnalyzeStep struct {
	cfg    *config.Config
	logger *slog.Logger

	mu       sync.Mutex
	scanners map[analyzer.Options]*analyzer.Scanner
}

// AnalyzeStepOption configures an AnalyzeStep.
type AnalyzeStepOption func(*AnalyzeStep)

// WithAnalyzeLogger sets a custom logger for the analyze step.
func WithAnalyzeLogger(logger *slog.Logger) AnalyzeStepOption {
	return func(s *AnalyzeStep) {
		s.logger = logger
	}
}

// NewAnalyzeStep creates an analyze step.
func NewAnalyzeStep(cfg *config.Config, opts ...AnalyzeStepOption) *AnalyzeStep {
	s := &AnalyzeStep{
		cfg:      cfg,
		logger:   slog.Default(),
		scanners: make(map[analyzer.Options]*analyzer.Scanner),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string {
	return "analyze"
}

// Scanner returns the scanner used for a site.
func (s *AnalyzeStep) Scanner(site config.SiteConfig) *analyzer.Scanner {
	opts := s.cfg.AnalyzerOptions(site)

	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scanners[opts]
	if !ok {
		sc = analyzer.NewScanner(analyzer.WithOptions(opts), analyzer.WithLogger(s.logger))
		s.scanners[opts] = sc
	}
	return sc
}

// Do executes the analyze step.
func (s *AnalyzeStep) Do(ctx context.Context, job *Job) error {
	if job.Document == nil {
		s.logger.Debug("skipping analysis, no document", "target", job.Target)
		return nil
	}

	r, err := s.Scanner(job.Site).Scan(ctx, job.Document)
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", job.Target, err)
	}
	job.Report = r

	s.logger.Info("analysis completed",
		"page", r.Page,
		"risk_score", r.RiskScore,
		"risk_level", string(r.RiskLevel),
		"likely_fingerprinting", r.LikelyFingerprinting,
	)
	return nil
}

// StoreStep saves the report to the database.
type StoreStep struct {
	saver  ReportSaver
	logger *slog.Logger
}

// NewStoreStep creates a store step.
func NewStoreStep(saver ReportSaver, logger *slog.Logger) *StoreStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do executes the store step.
func (s *StoreStep) Do(ctx context.Context, job *Job) error {
	if job.Report == nil {
		return nil
	}
	id, err := s.saver.SaveReport(ctx, job.Report)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	job.ReportID = id
	s.logger.Debug("report stored", "page", job.Report.Page, "id", id)
	return nil
}

// DumpStep writes the report as a css_dump_*.json file.
type DumpStep struct {
	dir    string
	logger *slog.Logger
}

// NewDumpStep creates a dump step writing into dir.
func NewDumpStep(dir string, logger *slog.Logger) *DumpStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DumpStep{dir: dir, logger: logger}
}

// Name returns the step name.
func (s *DumpStep) Name() string {
	return "dump"
}

// Do executes the dump step.
func (s *DumpStep) Do(_ context.Context, job *Job) error {
	if job.Report == nil {
		return nil
	}
	path, err := report.SaveDump(s.dir, job.Report)
	if err != nil {
		return err
	}
	job.DumpPath = path
	s.logger.Info("dump saved", "path", path)
	return nil
}
