package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/database"
	"github.com/nao1215/cssfp/internal/model"
	"github.com/nao1215/cssfp/internal/report"
)

// Risk change directions.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
)

// DefaultHitLimit is how many beacon hits --hits lists by default.
const DefaultHitLimit = 20

var (
	// errNotEnoughHistory is returned by --compare for a page with fewer
	// than two stored reports.
	errNotEnoughHistory = errors.New("at least two stored reports are needed to compare")

	// errCompareNeedsPage is returned by --compare without a page.
	errCompareNeedsPage = errors.New("--compare needs a page argument")
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [page]",
		Short: "Show stored reports and beacon hits",
		Long: `History reads the report database written by "cssfp scan".

Without arguments it lists every page with a stored report. With a page it
lists the page's reports, newest first. --compare shows what changed between
the two latest reports of the page: new and resolved traits and whether the
risk worsened, improved or stayed unchanged.

Examples:
  # List scanned pages
  cssfp history

  # Show the reports of one page
  cssfp history https://example.com/

  # Compare the two latest scans
  cssfp history --compare https://example.com/

  # Write the latest report of every page to ./reports
  cssfp history --export ./reports

  # Show the latest requests recorded by "cssfp serve"
  cssfp history --hits --limit 50`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("compare", false,
		"Compare the two latest reports of the page")
	cmd.Flags().Bool("hits", false,
		"List beacon hits instead of reports")
	cmd.Flags().Int("limit", DefaultHitLimit,
		"Maximum number of beacon hits to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("export", "",
		"Write the latest report of each page (or of the given page) to this directory")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the report database")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	page    string
	compare bool
	hits    bool
	limit   int
	json    bool
	export  string
	dbDir   string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	var (
		opts historyOptions
		err  error
	)
	if len(args) == 1 {
		opts.page = args[0]
	}
	if opts.compare, err = cmd.Flags().GetBool("compare"); err != nil {
		return err
	}
	if opts.hits, err = cmd.Flags().GetBool("hits"); err != nil {
		return err
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.export, err = cmd.Flags().GetString("export"); err != nil {
		return err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	if opts.compare && opts.page == "" {
		return errCompareNeedsPage
	}

	setupLogger(cmd)

	dbOpts := database.DefaultOptions()
	dbOpts.CreateIfNotExists = false
	db, err := database.Open(opts.dbDir, dbOpts)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no scan history found (run 'cssfp scan' first): %w", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	return runHistory(cmd.Context(), db, opts, cmd.OutOrStdout())
}

// runHistory dispatches to the requested listing.
func runHistory(ctx context.Context, db *database.Store, opts historyOptions, out io.Writer) error {
	switch {
	case opts.export != "":
		return exportReports(ctx, db, opts.page, opts.export, out)

	case opts.hits:
		hits, err := db.ListBeaconHits(ctx, opts.limit)
		if err != nil {
			return err
		}
		if opts.json {
			return writeJSON(out, hits)
		}
		return writeHitsText(out, hits)

	case opts.compare:
		result, err := compareLatest(ctx, db, opts.page)
		if err != nil {
			return err
		}
		if opts.json {
			return writeJSON(out, result)
		}
		return writeComparisonText(out, result)

	case opts.page != "":
		history, err := db.GetReportHistory(ctx, opts.page)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			return fmt.Errorf("no reports stored for %s: %w", opts.page, database.ErrNotFound)
		}
		if opts.json {
			return writeJSON(out, history)
		}
		return writeHistoryText(out, opts.page, history)

	default:
		pages, err := listPages(ctx, db)
		if err != nil {
			return err
		}
		if opts.json {
			if pages == nil {
				pages = []string{}
			}
			return writeJSON(out, pages)
		}
		if len(pages) == 0 {
			fmt.Fprintln(out, "No scan history found.")
			return nil
		}
		fmt.Fprintf(out, "Scanned pages (%d):\n", len(pages))
		for _, p := range pages {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return nil
	}
}

// listPages returns the stored pages in natural order, so that page2
// sorts before page10.
func listPages(ctx context.Context, db *database.Store) ([]string, error) {
	pages, err := db.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(pages))
	return pages, nil
}

// exportReports writes the latest report of page, or of every page when
// page is empty, to dir as <slug>.json.
func exportReports(ctx context.Context, db *database.Store, page, dir string, out io.Writer) error {
	pages := []string{page}
	if page == "" {
		var err error
		if pages, err = listPages(ctx, db); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, p := range pages {
		latest, err := db.GetLatestReport(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to load report for %s: %w", p, err)
		}

		path := filepath.Join(dir, exportFileName(p))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // Path is built from the export directory
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		_, werr := report.NewJSONWriter(f, report.WithPrettyPrint()).Write(latest)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("failed to write %s: %w", path, werr)
		}
		fmt.Fprintf(out, "Exported %s -> %s\n", p, path)
	}
	return nil
}

// exportFileName turns a page URL into a file name.
func exportFileName(page string) string {
	name := slug.Make(page)
	if name == "" {
		name = "page"
	}
	return name + ".json"
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeHistoryText(out io.Writer, page string, history []database.ReportMetadata) error {
	fmt.Fprintf(out, "Report history: %s\n", page)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "  %-6s  %-19s  %-5s  %-6s  %s\n", "ID", "Scanned", "Score", "Risk", "Verdict")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 58))
	for _, h := range history {
		fmt.Fprintf(out, "  %-6d  %-19s  %-5d  %-6s  %s\n",
			h.ID,
			h.Timestamp.Local().Format("2006-01-02 15:04:05"),
			h.RiskScore,
			h.RiskLevel,
			model.Verdict(h.LikelyFingerprinting))
	}
	return nil
}

func writeHitsText(out io.Writer, hits []database.BeaconHit) error {
	if len(hits) == 0 {
		fmt.Fprintln(out, "No beacon hits recorded.")
		return nil
	}
	fmt.Fprintf(out, "Beacon hits (%d):\n", len(hits))
	for _, h := range hits {
		fmt.Fprintf(out, "  %s  %-6s  %-15s  %s\n",
			h.Timestamp.Local().Format("2006-01-02 15:04:05"), h.Method, h.ClientIP, h.URL)
		if h.Cookie != "" {
			fmt.Fprintf(out, "      cookie: %s\n", h.Cookie)
		}
	}
	return nil
}

// ComparisonResult is the difference between two reports of a page.
type ComparisonResult struct {
	// Page is the compared page.
	Page string `json:"page"`

	// PreviousScan and CurrentScan describe the compared reports.
	PreviousScan ScanMetadata `json:"previous_scan"`
	CurrentScan  ScanMetadata `json:"current_scan"`

	// NewClaims were disclosed by the current report only.
	NewClaims []model.ClaimDetail `json:"new_claims,omitempty"`

	// ResolvedClaims were disclosed by the previous report only.
	ResolvedClaims []model.ClaimDetail `json:"resolved_claims,omitempty"`

	// UnchangedCount is the number of claims in both reports.
	UnchangedCount int `json:"unchanged_count"`

	// RiskChange describes the overall change.
	RiskChange RiskChange `json:"risk_change"`
}

// ScanMetadata summarizes one report for comparison display.
type ScanMetadata struct {
	ID                   int64           `json:"id"`
	Timestamp            time.Time       `json:"timestamp"`
	RiskScore            int             `json:"risk_score"`
	RiskLevel            model.RiskLevel `json:"risk_level"`
	LikelyFingerprinting bool            `json:"likely_fingerprinting"`
	Claims               int             `json:"claims"`
	CorrelatedRequests   int             `json:"correlated_requests"`
}

// RiskChange describes the change in risk between two reports.
type RiskChange struct {
	// Direction is "worsened", "improved" or "unchanged".
	Direction string `json:"direction"`

	// ScoreDelta is the change of the risk score.
	ScoreDelta int `json:"score_delta"`
}

// compareLatest compares the two latest reports of page.
func compareLatest(ctx context.Context, db *database.Store, page string) (*ComparisonResult, error) {
	history, err := db.GetReportHistory(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", errNotEnoughHistory, page, len(history))
	}

	current, err := db.GetReportByID(ctx, history[0].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %d: %w", history[0].ID, err)
	}
	previous, err := db.GetReportByID(ctx, history[1].ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %d: %w", history[1].ID, err)
	}

	result := compareReports(previous, current)
	result.PreviousScan.ID = history[1].ID
	result.CurrentScan.ID = history[0].ID
	return result, nil
}

// compareReports compares two reports of the same page. Claims keep the
// order of the report they come from, highest risk first.
func compareReports(previous, current *model.Report) *ComparisonResult {
	result := &ComparisonResult{
		Page:         current.Page,
		PreviousScan: scanMetadata(previous),
		CurrentScan:  scanMetadata(current),
	}

	previousClaims := make(map[string]struct{}, len(previous.ClaimDetails))
	for _, c := range previous.ClaimDetails {
		previousClaims[claimKey(c)] = struct{}{}
	}
	currentClaims := make(map[string]struct{}, len(current.ClaimDetails))
	for _, c := range current.ClaimDetails {
		currentClaims[claimKey(c)] = struct{}{}
	}

	for _, c := range current.ClaimDetails {
		if _, ok := previousClaims[claimKey(c)]; !ok {
			result.NewClaims = append(result.NewClaims, c)
		} else {
			result.UnchangedCount++
		}
	}
	for _, c := range previous.ClaimDetails {
		if _, ok := currentClaims[claimKey(c)]; !ok {
			result.ResolvedClaims = append(result.ResolvedClaims, c)
		}
	}

	result.RiskChange = calculateRiskChange(result.PreviousScan, result.CurrentScan)
	return result
}

func scanMetadata(r *model.Report) ScanMetadata {
	return ScanMetadata{
		Timestamp:            r.Timestamp,
		RiskScore:            r.RiskScore,
		RiskLevel:            r.RiskLevel,
		LikelyFingerprinting: r.LikelyFingerprinting,
		Claims:               len(r.ClaimDetails),
		CorrelatedRequests:   len(r.CorrelatedAssociations()),
	}
}

// claimKey identifies a claim across reports.
func claimKey(c model.ClaimDetail) string {
	return c.SemanticGroup + ": " + c.Claim
}

// calculateRiskChange rates the change by risk level first, then by score.
func calculateRiskChange(previous, current ScanMetadata) RiskChange {
	change := RiskChange{ScoreDelta: current.RiskScore - previous.RiskScore}

	levelDelta := current.RiskLevel.Rank() - previous.RiskLevel.Rank()
	switch {
	case levelDelta > 0 || (levelDelta == 0 && change.ScoreDelta > 0):
		change.Direction = riskDirectionWorsened
	case levelDelta < 0 || (levelDelta == 0 && change.ScoreDelta < 0):
		change.Direction = riskDirectionImproved
	default:
		change.Direction = riskDirectionUnchanged
	}
	return change
}

func writeComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Scan Comparison: %s\n", result.Page)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))

	fmt.Fprintf(out, "\nPrevious scan: %s (#%d)\n",
		result.PreviousScan.Timestamp.Local().Format("2006-01-02 15:04:05"), result.PreviousScan.ID)
	fmt.Fprintf(out, "Current scan:  %s (#%d)\n",
		result.CurrentScan.Timestamp.Local().Format("2006-01-02 15:04:05"), result.CurrentScan.ID)

	fmt.Fprintln(out, "\nSummary:")
	fmt.Fprintf(out, "  %-12s  %-10s  %-10s  %-10s\n", "", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 48))
	fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", "Risk score",
		result.PreviousScan.RiskScore, result.CurrentScan.RiskScore,
		formatDelta(result.RiskChange.ScoreDelta))
	fmt.Fprintf(out, "  %-12s  %-10s  %-10s\n", "Risk level",
		result.PreviousScan.RiskLevel, result.CurrentScan.RiskLevel)
	fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", "Traits",
		result.PreviousScan.Claims, result.CurrentScan.Claims,
		formatDelta(result.CurrentScan.Claims-result.PreviousScan.Claims))
	fmt.Fprintf(out, "  %-12s  %-10d  %-10d  %-10s\n", "Requests",
		result.PreviousScan.CorrelatedRequests, result.CurrentScan.CorrelatedRequests,
		formatDelta(result.CurrentScan.CorrelatedRequests-result.PreviousScan.CorrelatedRequests))

	if len(result.NewClaims) > 0 {
		fmt.Fprintf(out, "\nNew Traits (%d):\n", len(result.NewClaims))
		for _, c := range result.NewClaims {
			fmt.Fprintf(out, "  [+] [risk %d] %s: %s\n", c.Risk, c.SemanticGroup, c.Claim)
		}
	}

	if len(result.ResolvedClaims) > 0 {
		fmt.Fprintf(out, "\nResolved Traits (%d):\n", len(result.ResolvedClaims))
		for _, c := range result.ResolvedClaims {
			fmt.Fprintf(out, "  [-] [risk %d] %s: %s\n", c.Risk, c.SemanticGroup, c.Claim)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d traits\n", result.UnchangedCount)
	}

	return nil
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
