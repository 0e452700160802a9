package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/crawler"
	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/database"
	"github.com/nao1215/cssfp/internal/model"
	"github.com/nao1215/cssfp/internal/netclient"
)

// fakeCollector returns a fixed document and records the site it got.
type fakeCollector struct {
	doc  *cssom.Document
	err  error
	site crawler.Site
}

func (f *fakeCollector) Collect(_ context.Context, target string, site crawler.Site) (*cssom.Document, error) {
	f.site = site
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.URL = target
	return &doc, nil
}

// fingerprintDoc has a dark-mode query gating a tracking pixel.
func fingerprintDoc() *cssom.Document {
	return &cssom.Document{
		Sheets: []*cssom.StyleSheet{{
			Href: "https://shop.example/main.css",
			Rules: []*cssom.Rule{{
				Type:          model.RuleMedia,
				CSSText:       "@media (prefers-color-scheme: dark) { body { background: url(https://t.example/dark.png) } }",
				ConditionText: "(prefers-color-scheme: dark)",
				MediaText:     "(prefers-color-scheme: dark)",
				Rules: []*cssom.Rule{{
					Type:         model.RuleStyle,
					SelectorText: "body",
					CSSText:      "body { background: url(https://t.example/dark.png) }",
				}},
			}},
		}},
	}
}

func TestCollectStep(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"shop.example": {Cookie: "sid=1", AllowCrossOrigin: true, MaxRules: 10},
		},
	}

	t.Run("resolves site and stores document", func(t *testing.T) {
		t.Parallel()

		fc := &fakeCollector{doc: fingerprintDoc()}
		step := NewCollectStep(fc, cfg, WithCollectLogger(discardLogger()))
		job := NewJob("https://SHOP.example/page")

		if err := step.Do(t.Context(), job); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if job.Document == nil || job.Document.URL != "https://SHOP.example/page" {
			t.Fatalf("document = %+v", job.Document)
		}
		if job.Site.MaxRules != 10 {
			t.Errorf("site MaxRules: got %d, expected 10", job.Site.MaxRules)
		}
		if fc.site.Cookie != "sid=1" || !fc.site.AllowCrossOrigin {
			t.Errorf("collector site = %+v", fc.site)
		}
	})

	t.Run("wraps collector error", func(t *testing.T) {
		t.Parallel()

		errFetch := errors.New("connection refused")
		step := NewCollectStep(&fakeCollector{err: errFetch}, cfg, WithCollectLogger(discardLogger()))
		job := NewJob("https://other.example/")
		if err := step.Do(t.Context(), job); !errors.Is(err, errFetch) {
			t.Errorf("got %v, expected %v", err, errFetch)
		}
		if job.Document != nil {
			t.Error("document should not be set on failure")
		}
	})

	t.Run("real collector on a local file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "page.css")
		if err := os.WriteFile(path, []byte(`.a { color: red }`), 0o600); err != nil {
			t.Fatal(err)
		}
		client, err := netclient.NewClient("", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		step := NewCollectStep(crawler.NewCollector(client, crawler.WithLogger(discardLogger())), cfg)
		job := NewJob(path)
		if err := step.Do(t.Context(), job); err != nil {
			t.Fatal(err)
		}
		if len(job.Document.Sheets) != 1 {
			t.Errorf("expected 1 sheet, got %d", len(job.Document.Sheets))
		}
	})
}

func TestAnalyzeStep(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()

	t.Run("builds report", func(t *testing.T) {
		t.Parallel()

		step := NewAnalyzeStep(cfg, WithAnalyzeLogger(discardLogger()))
		job := NewJob("https://shop.example/")
		job.Document = fingerprintDoc()
		job.Document.URL = job.Target

		if err := step.Do(t.Context(), job); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		r := job.Report
		if r == nil || !r.LikelyFingerprinting {
			t.Fatalf("report = %+v", r)
		}
		if r.Page != "https://shop.example/" {
			t.Errorf("page: got %q", r.Page)
		}
		if step.Scanner(job.Site).LastResult() != r {
			t.Error("scanner should cache the last report")
		}
	})

	t.Run("skips without document", func(t *testing.T) {
		t.Parallel()

		job := NewJob("x")
		if err := NewAnalyzeStep(cfg, WithAnalyzeLogger(discardLogger())).Do(t.Context(), job); err != nil {
			t.Fatal(err)
		}
		if job.Report != nil {
			t.Error("report should not be built without a document")
		}
	})

	t.Run("scanner per option set", func(t *testing.T) {
		t.Parallel()

		step := NewAnalyzeStep(cfg)
		def := step.Scanner(config.SiteConfig{})
		if step.Scanner(config.SiteConfig{Cookie: "a=1"}) != def {
			t.Error("sites with default options should share a scanner")
		}
		if step.Scanner(config.SiteConfig{MaxRules: 5}) == def {
			t.Error("a site rule cap should get its own scanner")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		job := NewJob("x")
		job.Document = fingerprintDoc()
		if err := NewAnalyzeStep(cfg, WithAnalyzeLogger(discardLogger())).Do(ctx, job); !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, expected context.Canceled", err)
		}
	})
}

func TestStoreStep(t *testing.T) {
	t.Parallel()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() }) //nolint:errcheck

	job := NewJob("https://shop.example/")
	job.Report = model.NewReport("https://shop.example/", time.Now())

	step := NewStoreStep(store, discardLogger())
	if err := step.Do(t.Context(), job); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if job.ReportID == 0 {
		t.Fatal("expected a report ID")
	}
	got, err := store.GetReportByID(t.Context(), job.ReportID)
	if err != nil || got.Page != "https://shop.example/" {
		t.Errorf("stored report = %+v, err = %v", got, err)
	}

	empty := NewJob("x")
	if err := step.Do(t.Context(), empty); err != nil || empty.ReportID != 0 {
		t.Errorf("job without report: id %d, err %v", empty.ReportID, err)
	}
}

func TestDumpStep(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "dumps")
	job := NewJob("https://shop.example/")
	job.Report = model.NewReport("https://shop.example/", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	if err := NewDumpStep(dir, discardLogger()).Do(t.Context(), job); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(job.DumpPath), "css_dump_2025-01-02T03-04-05") {
		t.Errorf("dump path: got %q", job.DumpPath)
	}
	if _, err := os.Stat(job.DumpPath); err != nil {
		t.Errorf("dump file missing: %v", err)
	}
}

func TestFullPipeline(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() }) //nolint:errcheck

	p := New(WithLogger(discardLogger()), WithContinueOnError(true))
	p.AddSteps(
		NewCollectStep(&fakeCollector{doc: fingerprintDoc()}, cfg, WithCollectLogger(discardLogger())),
		NewAnalyzeStep(cfg, WithAnalyzeLogger(discardLogger())),
		NewStoreStep(store, discardLogger()),
		NewDumpStep(t.TempDir(), discardLogger()),
	)

	job := NewJob("https://shop.example/")
	if err := p.Execute(t.Context(), job); err != nil {
		t.Fatal(err)
	}
	if job.Failed() || job.Report == nil || job.ReportID == 0 || job.DumpPath == "" {
		t.Errorf("job = %+v", job)
	}
	latest, err := store.GetLatestReport(t.Context(), "https://shop.example/")
	if err != nil {
		t.Fatal(err)
	}
	if latest.RiskScore != job.Report.RiskScore {
		t.Errorf("stored risk: got %d, expected %d", latest.RiskScore, job.Report.RiskScore)
	}
}
