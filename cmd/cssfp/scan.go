package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/crawler"
	"github.com/nao1215/cssfp/internal/database"
	"github.com/nao1215/cssfp/internal/netclient"
	"github.com/nao1215/cssfp/internal/pipeline"
	"github.com/nao1215/cssfp/internal/report"
)

// errScanFailed is returned when at least one target could not be scanned.
var errScanFailed = errors.New("scan failed")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [target...]",
		Short: "Scan pages for CSS fingerprinting",
		Long: `Scan collects the stylesheets of each target and reports the CSS rules
that can fingerprint a visitor.

A target is one of:
- an http:// or https:// URL, fetched with its linked stylesheets
- a local .html file
- a local .css file
- a .json CSSOM dump exported from a live page

Examples:
  # Scan a page
  cssfp scan https://example.com/

  # Scan several pages, four at a time, and write a JSON report
  cssfp scan --json -o report.json https://a.example/ https://b.example/

  # Keep a css_dump_*.json file per page
  cssfp scan --dump-dir ./dumps https://example.com/

  # Go through a SOCKS5 proxy
  cssfp scan --proxy 127.0.0.1:9050 https://example.com/

Configuration file (.cssfp) example:
  defaults:
    maxRules: 3000
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      allowCrossOrigin: true`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("proxy", "p", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of pages scanned concurrently")
	cmd.Flags().Int("max-rules", config.DefaultMaxRulesPerSheet,
		"Maximum rule entries read from one stylesheet")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .cssfp in current or home directory, then the XDG config file)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("dump-dir", "",
		"Directory where a css_dump_*.json file is saved per page")

	cmd.Flags().Bool("no-db", false,
		"Do not store reports in the database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report database")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.ValidateScan(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.MaxRulesPerSheet, err = cmd.Flags().GetInt("max-rules")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.DumpDir, err = cmd.Flags().GetString("dump-dir")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.Targets = args

	return cfg, nil
}

// loadSiteConfigs loads the configuration file. A file named explicitly
// must exist; without one, an empty configuration is used when no .cssfp
// file is found.
func loadSiteConfigs(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	return cf, nil
}

// runScan scans every target and writes one report per scanned page.
// Status lines go to status so that stdout carries only reports.
func runScan(ctx context.Context, cfg *config.Config, stdout, status io.Writer, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
		"proxy", cfg.ProxyAddress != "",
	)

	client, err := netclient.NewClient(cfg.ProxyAddress, cfg.Timeout, netclient.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if cfg.ProxyAddress != "" {
		if err := client.CheckProxy(ctx); err != nil {
			return fmt.Errorf("proxy check failed (make sure a SOCKS5 proxy is running at %s): %w",
				cfg.ProxyAddress, err)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	var db *database.Store
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck
	writer := newReportWriter(cfg, output)

	collector := crawler.NewCollector(client,
		crawler.WithLogger(logger),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithImportDepth(cfg.ImportDepth),
		crawler.WithFetchConcurrency(cfg.FetchConcurrency),
	)
	bp := pipeline.NewBatchProcessor(
		newPipelineFactory(cfg, collector, db, logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	total := len(cfg.Targets)
	fmt.Fprintf(status, "Scanning %d target(s) (concurrency: %d)...\n", total, cfg.BatchSize)

	var (
		mu     sync.Mutex
		failed int
	)
	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(job *pipeline.Job, index int) {
		mu.Lock()
		defer mu.Unlock()

		if job.Skipped {
			fmt.Fprintf(status, "[%d/%d] Skipped %s: already scanned\n", index+1, total, job.Target)
			return
		}
		if job.Report == nil {
			failed++
			fmt.Fprintf(status, "[%d/%d] Scan error for %s: %v\n", index+1, total, job.Target, job.Err)
			return
		}

		fmt.Fprintf(status, "[%d/%d] Scanned %s: %s (%s)\n", index+1, total,
			job.Report.Page, job.Report.Verdict, job.Elapsed().Round(time.Millisecond))
		if job.Err != nil {
			logger.Warn("scan finished with errors", "target", job.Target, "error", job.Err)
		}
		if job.DumpPath != "" {
			fmt.Fprintf(status, "      dump saved to %s\n", job.DumpPath)
		}
		if _, err := writer.Write(job.Report); err != nil {
			logger.Error("report failed", "target", job.Target, "error", err)
		}
	})

	fmt.Fprintf(status, "Scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d target(s)", errScanFailed, failed, total)
	}
	return nil
}

// newPipelineFactory returns the factory the batch processor calls once per
// target. The collect and analyze steps are shared so that scanners are
// reused across pages with the same options.
func newPipelineFactory(cfg *config.Config, collector pipeline.DocumentCollector, db *database.Store, logger *slog.Logger) func() *pipeline.Pipeline {
	collect := pipeline.NewCollectStep(collector, cfg, pipeline.WithCollectLogger(logger))
	analyze := pipeline.NewAnalyzeStep(cfg, pipeline.WithAnalyzeLogger(logger))

	var store *pipeline.StoreStep
	if db != nil {
		store = pipeline.NewStoreStep(db, logger)
	}
	var dump *pipeline.DumpStep
	if cfg.DumpDir != "" {
		dump = pipeline.NewDumpStep(cfg.DumpDir, logger)
	}

	return func() *pipeline.Pipeline {
		p := pipeline.New(
			pipeline.WithLogger(logger),
			pipeline.WithContinueOnError(true),
		)
		p.AddSteps(collect, analyze)
		if store != nil {
			p.AddStep(store)
		}
		if dump != nil {
			p.AddStep(dump)
		}
		return p
	}
}

// openOutput returns the report destination: the named file, created with
// owner-only permissions, or stdout when path is empty.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports can quote cookies and private URLs.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
