package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/cssparse"
	"github.com/nao1215/cssfp/internal/extract"
	"github.com/nao1215/cssfp/internal/model"
	"github.com/nao1215/cssfp/internal/netclient"
)

const (
	// DefaultMaxBodySize limits every page and stylesheet body.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024

	// DefaultImportDepth is how many levels of @import are followed.
	DefaultImportDepth = 3

	// DefaultFetchConcurrency is the number of stylesheets fetched at once.
	DefaultFetchConcurrency = 8

	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptCSS  = "text/css,*/*;q=0.1"

	// nullOrigin is the serialized origin of a local file page.
	nullOrigin = "null"
)

// Collector errors.
var (
	// ErrUnsupportedTarget is returned for a target that is neither a URL
	// nor a local .html, .css or .json file.
	ErrUnsupportedTarget = errors.New("unsupported target")

	// ErrUnsupportedScheme is returned when a stylesheet URL cannot be fetched.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrImportDepth is set on an @import nested deeper than the import depth.
	ErrImportDepth = errors.New("@import nesting too deep")

	// ErrImportCycle is set on an @import that pulls in one of its ancestors.
	ErrImportCycle = errors.New("@import cycle")

	// ErrImportTarget is set on an @import whose target cannot be found.
	ErrImportTarget = errors.New("@import has no target")
)

// Site holds per-site request settings.
type Site struct {
	// Cookie is sent with every request.
	Cookie string
	// Headers are added to every request.
	Headers map[string]string
	// AllowCrossOrigin reads cross-origin sheets without CORS approval.
	AllowCrossOrigin bool
}

// Collector builds the CSSOM document of a page: it finds the page's
// stylesheets, fetches and parses them, and follows their @import rules.
type Collector struct {
	client           *netclient.Client
	parser           *cssparse.Parser
	logger           *slog.Logger
	maxBodySize      int64
	importDepth      int
	fetchConcurrency int
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithMaxBodySize sets the body size limit of pages and stylesheets.
func WithMaxBodySize(n int64) Option {
	return func(c *Collector) {
		c.maxBodySize = n
	}
}

// WithImportDepth sets how many levels of @import are followed.
// 0 leaves every @import unresolved.
func WithImportDepth(depth int) Option {
	return func(c *Collector) {
		c.importDepth = depth
	}
}

// WithFetchConcurrency sets the number of stylesheets fetched at once.
func WithFetchConcurrency(n int) Option {
	return func(c *Collector) {
		c.fetchConcurrency = n
	}
}

// NewCollector creates a Collector that fetches through client.
func NewCollector(client *netclient.Client, opts ...Option) *Collector {
	c := &Collector{
		client:           client,
		logger:           slog.Default(),
		maxBodySize:      DefaultMaxBodySize,
		importDepth:      DefaultImportDepth,
		fetchConcurrency: DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetchConcurrency <= 0 {
		c.fetchConcurrency = DefaultFetchConcurrency
	}
	c.parser = cssparse.NewParser(cssparse.WithLogger(c.logger))
	return c
}

// session carries the state of one Collect call.
type session struct {
	c       *Collector
	http    *http.Client
	origin  string
	site    Site
	mu      sync.Mutex
	warning error
}

func (s *session) warn(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warning = multierr.Append(s.warning, err)
}

// Collect produces the document of target, which is an http(s) URL or a
// path to a local .html, .css or .json (CSSOM export) file.
//
// Only a failure to obtain the page itself is returned. A stylesheet that
// cannot be fetched or read becomes an inaccessible sheet, and the
// problems are logged together as a warning.
func (c *Collector) Collect(ctx context.Context, target string, site Site) (*cssom.Document, error) {
	s := &session{
		c:    c,
		http: c.client.HTTPClientWithConfig(site.Cookie, site.Headers),
		site: site,
	}

	doc, err := s.collect(ctx, target)
	if err != nil {
		return nil, err
	}

	if s.warning != nil {
		errs := multierr.Errors(s.warning)
		c.logger.Warn("some stylesheets could not be read",
			"page", doc.URL, "count", len(errs), "error", s.warning)
	}
	return doc, nil
}

func (s *session) collect(ctx context.Context, target string) (*cssom.Document, error) {
	if isURL(target) {
		return s.collectPage(ctx, target)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".json":
		return cssom.LoadDump(abs)
	case ".css":
		s.origin = nullOrigin
		data, err := s.c.readFile(abs)
		if err != nil {
			return nil, err
		}
		sheet := s.c.parser.ParseSheet(fileURL, data)
		s.resolveImports(ctx, fileURL, sheet.Rules, 1, map[string]bool{fileURL: true})
		return &cssom.Document{URL: fileURL, Sheets: []*cssom.StyleSheet{sheet}}, nil
	case ".html", ".htm":
		s.origin = nullOrigin
		data, err := s.c.readFile(abs)
		if err != nil {
			return nil, err
		}
		return s.buildDocument(ctx, fileURL, data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
}

func (s *session) collectPage(ctx context.Context, pageURL string) (*cssom.Document, error) {
	resp, err := netclient.Fetch(ctx, s.http, pageURL, acceptHTML, s.c.maxBodySize)
	if err != nil {
		return nil, err
	}
	s.origin = originOf(resp.URL)
	return s.buildDocument(ctx, resp.URL, resp.Body)
}

// buildDocument turns the HTML of a page into its document. Linked sheets
// are fetched concurrently and kept in document order.
func (s *session) buildDocument(ctx context.Context, pageURL string, body []byte) (*cssom.Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %s: %w", pageURL, err)
	}
	scan, err := scanHTML(bytes.NewReader(body), base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	doc := &cssom.Document{
		URL:              pageURL,
		Sheets:           make([]*cssom.StyleSheet, len(scan.sheets)),
		StyleTags:        scan.styleTags,
		InlineStyleCount: scan.inlineStyleCount,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.c.fetchConcurrency)
	for i, ref := range scan.sheets {
		if ref.inline {
			sheet := s.c.parser.ParseSheet("", []byte(ref.text))
			doc.Sheets[i] = sheet
			g.Go(func() error {
				s.resolveImports(gctx, pageURL, sheet.Rules, 1, map[string]bool{})
				return nil
			})
			continue
		}
		g.Go(func() error {
			doc.Sheets[i] = s.linkedSheet(gctx, ref.href)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never fail, problems become inaccessible sheets

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

// linkedSheet fetches and parses one <link> stylesheet.
func (s *session) linkedSheet(ctx context.Context, href string) *cssom.StyleSheet {
	data, err := s.load(ctx, href)
	if err != nil {
		s.warn(err)
		s.c.logger.Debug("stylesheet is inaccessible", "href", href, "error", err)
		return cssom.Inaccessible(href, err)
	}
	sheet := s.c.parser.ParseSheet(href, data)
	s.resolveImports(ctx, href, sheet.Rules, 1, map[string]bool{href: true})
	return sheet
}

// resolveImports loads the sheets pulled in by the top-level @import rules
// of a sheet at sheetURL and makes their rules the import rule's children.
// A failure is stored on the import rule.
func (s *session) resolveImports(ctx context.Context, sheetURL string, rules []*cssom.Rule, depth int, chain map[string]bool) {
	base, err := url.Parse(sheetURL)
	if err != nil {
		return
	}
	for _, r := range rules {
		if r.Type != model.RuleImport {
			continue
		}
		targets := extract.ImportURLs(r.CSSText)
		if len(targets) == 0 {
			r.RulesErr = ErrImportTarget
			continue
		}
		target := resolveURL(base, targets[0])
		switch {
		case target == "":
			r.RulesErr = fmt.Errorf("%w: %s", ErrImportTarget, targets[0])
			continue
		case depth > s.c.importDepth:
			r.RulesErr = fmt.Errorf("%w: %s", ErrImportDepth, target)
			continue
		case chain[target]:
			r.RulesErr = fmt.Errorf("%w: %s", ErrImportCycle, target)
			continue
		}

		data, err := s.load(ctx, target)
		if err != nil {
			s.warn(err)
			r.RulesErr = err
			continue
		}
		r.Rules = s.c.parser.ParseRules(data)

		next := make(map[string]bool, len(chain)+1)
		for k := range chain {
			next[k] = true
		}
		next[target] = true
		s.resolveImports(ctx, target, r.Rules, depth+1, next)
	}
}

// load reads a stylesheet from the network or disk. A cross-origin
// response is only readable when CORS allows the page origin.
func (s *session) load(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stylesheet URL %s: %w", rawURL, err)
	}

	switch u.Scheme {
	case "file":
		if s.origin != nullOrigin {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
		}
		return s.c.readFile(filepath.FromSlash(u.Path))
	case "http", "https":
		resp, err := netclient.Fetch(ctx, s.http, rawURL, acceptCSS, s.c.maxBodySize)
		if err != nil {
			return nil, err
		}
		if originOf(rawURL) != s.origin && !s.site.AllowCrossOrigin && !netclient.AllowsOrigin(resp.Header, s.origin) {
			return nil, fmt.Errorf("%w: %s", netclient.ErrCrossOrigin, rawURL)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}
}

// readFile reads a local file within the body size limit.
func (c *Collector) readFile(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line or a local page
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s", netclient.ErrBodyTooLarge, path)
	}
	return data, nil
}

func isURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// originOf returns scheme://host of an http(s) URL, "null" otherwise.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nullOrigin
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
