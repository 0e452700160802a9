package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/cssfp/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "cssfp.db"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store provides SQLite-based storage for scan reports and beacon hits.
// A Store is safe for concurrent use.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so that readers do not block
	// the writer, for example `cssfp history` while `cssfp serve` runs.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dump_key TEXT NOT NULL,
		page TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		risk_score INTEGER NOT NULL DEFAULT 0,
		risk_level TEXT NOT NULL,
		likely_fingerprinting INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		raw_hash TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_page ON reports(page);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON reports(timestamp);

	CREATE TABLE IF NOT EXISTS beacon_hits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hit_id TEXT NOT NULL,
		client_ip TEXT NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		headers TEXT,
		cookie TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hits_timestamp ON beacon_hits(timestamp);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// DumpKey returns the storage key of a report taken at ts.
func DumpKey(ts time.Time) string {
	return fmt.Sprintf("css_dump_%d", ts.UnixMilli())
}

// hashReport returns the hex SHA3-256 of the serialized report.
func hashReport(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveReport stores a report and returns its ID.
func (s *Store) SaveReport(ctx context.Context, report *model.Report) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO reports (dump_key, page, timestamp, risk_score, risk_level, likely_fingerprinting, report_json, raw_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		DumpKey(report.Timestamp),
		report.Page,
		formatTimestamp(report.Timestamp),
		report.RiskScore,
		string(report.RiskLevel),
		report.LikelyFingerprinting,
		string(reportJSON),
		hashReport(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}

	return result.LastInsertId()
}

// GetLatestReport returns the most recent report for a page.
// It returns ErrNotFound if the page has never been scanned.
func (s *Store) GetLatestReport(ctx context.Context, page string) (*model.Report, error) {
	query := `
	SELECT report_json FROM reports
	WHERE page = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	return s.queryReport(ctx, query, page)
}

// GetReportByID returns the report with the given ID.
func (s *Store) GetReportByID(ctx context.Context, id int64) (*model.Report, error) {
	return s.queryReport(ctx, `SELECT report_json FROM reports WHERE id = ?`, id)
}

func (s *Store) queryReport(ctx context.Context, query string, args ...any) (*model.Report, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ReportMetadata is the summary of a stored report, used to list history
// without loading full reports.
type ReportMetadata struct {
	ID                   int64
	DumpKey              string
	Page                 string
	Timestamp            time.Time
	RiskScore            int
	RiskLevel            model.RiskLevel
	LikelyFingerprinting bool
	RawHash              string
}

// GetReportHistory returns the metadata of every report for a page,
// newest first.
func (s *Store) GetReportHistory(ctx context.Context, page string) ([]ReportMetadata, error) {
	query := `
	SELECT id, dump_key, page, timestamp, risk_score, risk_level, likely_fingerprinting, raw_hash
	FROM reports
	WHERE page = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var results []ReportMetadata
	for rows.Next() {
		var (
			meta      ReportMetadata
			timestamp string
			level     string
		)
		if err := rows.Scan(&meta.ID, &meta.DumpKey, &meta.Page, &timestamp,
			&meta.RiskScore, &level, &meta.LikelyFingerprinting, &meta.RawHash); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		meta.RiskLevel = model.RiskLevel(level)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListPages returns every page that has a stored report, sorted.
func (s *Store) ListPages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT page FROM reports ORDER BY page`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var pages []string
	for rows.Next() {
		var page string
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// BeaconHit is one request received by the beacon server.
// HitID is the request ID the beacon returned in X-Request-Id.
type BeaconHit struct {
	ID        int64
	HitID     string
	ClientIP  string
	Method    string
	URL       string
	Path      string
	Headers   http.Header
	Cookie    string
	Timestamp time.Time
}

// InsertBeaconHit stores a beacon hit and returns its ID.
func (s *Store) InsertBeaconHit(ctx context.Context, hit *BeaconHit) (int64, error) {
	headersJSON, err := json.Marshal(hit.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	ts := hit.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO beacon_hits (hit_id, client_ip, method, url, path, headers, cookie, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		hit.HitID,
		hit.ClientIP,
		hit.Method,
		hit.URL,
		hit.Path,
		string(headersJSON),
		hit.Cookie,
		formatTimestamp(ts),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert beacon hit: %w", err)
	}

	return result.LastInsertId()
}

// ListBeaconHits returns the most recent hits, newest first.
// A limit of zero or less returns every hit.
func (s *Store) ListBeaconHits(ctx context.Context, limit int) ([]BeaconHit, error) {
	query := `
	SELECT id, hit_id, client_ip, method, url, path, headers, cookie, timestamp
	FROM beacon_hits
	ORDER BY timestamp DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list beacon hits: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var hits []BeaconHit
	for rows.Next() {
		var (
			hit         BeaconHit
			headersJSON sql.NullString
			cookie      sql.NullString
			timestamp   string
		)
		if err := rows.Scan(&hit.ID, &hit.HitID, &hit.ClientIP, &hit.Method, &hit.URL, &hit.Path,
			&headersJSON, &cookie, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan beacon hit: %w", err)
		}
		if headersJSON.Valid && headersJSON.String != "" && headersJSON.String != "null" {
			if err := json.Unmarshal([]byte(headersJSON.String), &hit.Headers); err != nil {
				return nil, fmt.Errorf("failed to parse headers: %w", err)
			}
		}
		hit.Cookie = cookie.String
		hit.Timestamp = parseTimestamp(timestamp)
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// timestampLayout sorts lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the layouts a stored timestamp may use.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time if no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
