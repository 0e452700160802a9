package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/cssfp/internal/analyzer"
	"github.com/nao1215/cssfp/internal/crawler"
	"github.com/nao1215/cssfp/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "cssfp"

	// DefaultMaxRulesPerSheet caps the rule entries read from one stylesheet.
	DefaultMaxRulesPerSheet = analyzer.DefaultMaxRulesPerSheet

	// DefaultExcerptLength caps the cssText kept per entry.
	DefaultExcerptLength = analyzer.DefaultExcerptLength

	// DefaultSourceExcerptLength caps the condition excerpt kept per source.
	DefaultSourceExcerptLength = analyzer.DefaultSourceExcerptLength

	// DefaultHighRiskThreshold is the lowest score rated "high".
	DefaultHighRiskThreshold = model.DefaultHighRiskThreshold

	// DefaultMediumRiskThreshold is the lowest score rated "medium".
	DefaultMediumRiskThreshold = model.DefaultMediumRiskThreshold

	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of pages scanned concurrently.
	DefaultBatchSize = 4

	// DefaultFetchConcurrency is the number of stylesheets of one page fetched at once.
	DefaultFetchConcurrency = crawler.DefaultFetchConcurrency

	// DefaultMaxBodySize limits every page and stylesheet body.
	DefaultMaxBodySize = crawler.DefaultMaxBodySize

	// DefaultImportDepth is how many levels of @import are followed.
	DefaultImportDepth = crawler.DefaultImportDepth

	// DefaultUserAgent identifies cssfp in HTTP requests.
	DefaultUserAgent = "cssfp/1.0 (+https://github.com/nao1215/cssfp)"

	// DefaultListenAddress is where the beacon server listens.
	DefaultListenAddress = "0.0.0.0:5000"
)

// Config holds all configuration options for cssfp.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// Empty means direct connections.
	ProxyAddress string

	// Timeout bounds every HTTP request.
	Timeout time.Duration

	// Verbose enables debug logging. When false, only warnings and errors
	// are logged.
	Verbose bool

	// BatchSize is the number of pages scanned concurrently.
	BatchSize int

	// FetchConcurrency is the number of stylesheets of one page fetched at once.
	FetchConcurrency int

	// ImportDepth is how many levels of @import are followed.
	ImportDepth int

	// MaxRulesPerSheet caps the rule entries read from one stylesheet.
	MaxRulesPerSheet int

	// ExcerptLength caps the cssText kept per entry.
	ExcerptLength int

	// SourceExcerptLength caps the condition excerpt kept per source.
	SourceExcerptLength int

	// HighRiskThreshold and MediumRiskThreshold rate the risk score.
	HighRiskThreshold   int
	MediumRiskThreshold int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .cssfp is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects the JSON report. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path. Empty writes to stdout.
	ReportFile string

	// DumpDir is where a css_dump_*.json file is saved per page. Empty
	// disables dumps.
	DumpDir string

	// Targets is the list of pages to scan: URLs or local files.
	Targets []string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/cssfp on Linux).
	DBDir string

	// SaveToDB stores reports and beacon hits in the database.
	SaveToDB bool

	// UserAgent is sent with every HTTP request.
	UserAgent string

	// MaxBodySize limits every page and stylesheet body in bytes.
	MaxBodySize int64

	// ListenAddress is where the beacon server listens.
	ListenAddress string

	// StaticDir is served by the beacon server. Empty serves nothing.
	StaticDir string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:             DefaultTimeout,
		BatchSize:           DefaultBatchSize,
		FetchConcurrency:    DefaultFetchConcurrency,
		ImportDepth:         DefaultImportDepth,
		MaxRulesPerSheet:    DefaultMaxRulesPerSheet,
		ExcerptLength:       DefaultExcerptLength,
		SourceExcerptLength: DefaultSourceExcerptLength,
		HighRiskThreshold:   DefaultHighRiskThreshold,
		MediumRiskThreshold: DefaultMediumRiskThreshold,
		UserAgent:           DefaultUserAgent,
		MaxBodySize:         DefaultMaxBodySize,
		ListenAddress:       DefaultListenAddress,
		DBDir:               XDGDataDir(),
		SaveToDB:            true,
	}
}

// XDGDataDir returns the XDG data directory for cssfp.
// On Linux: ~/.local/share/cssfp
// On macOS: ~/Library/Application Support/cssfp
// On Windows: %LOCALAPPDATA%\cssfp
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for cssfp.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Thresholds returns the configured risk level boundaries.
func (c *Config) Thresholds() model.Thresholds {
	return model.Thresholds{High: c.HighRiskThreshold, Medium: c.MediumRiskThreshold}
}

// AnalyzerOptions returns the scanner options for a site. A site-level
// maxRules override wins over the global cap.
func (c *Config) AnalyzerOptions(site SiteConfig) analyzer.Options {
	maxRules := c.MaxRulesPerSheet
	if site.MaxRules > 0 {
		maxRules = site.MaxRules
	}
	return analyzer.Options{
		MaxRulesPerSheet:    maxRules,
		ExcerptLength:       c.ExcerptLength,
		SourceExcerptLength: c.SourceExcerptLength,
		Thresholds:          c.Thresholds(),
	}
}

// Site returns the merged site configuration for host. Without a config
// file it is the zero value.
func (c *Config) Site(host string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(host)
}

// Validate checks the configuration and returns the first problem found.
// Target presence is checked by the commands that need targets.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 || c.FetchConcurrency <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxRulesPerSheet <= 0 {
		return ErrInvalidMaxRules
	}
	if c.ExcerptLength <= 0 || c.SourceExcerptLength <= 0 {
		return ErrInvalidExcerptLength
	}
	if c.MediumRiskThreshold <= 0 || c.HighRiskThreshold <= c.MediumRiskThreshold {
		return ErrInvalidThresholds
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ImportDepth < 0 {
		return ErrInvalidImportDepth
	}
	return nil
}

// ValidateScan is Validate plus the requirement of at least one target.
func (c *Config) ValidateScan() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.Validate()
}
