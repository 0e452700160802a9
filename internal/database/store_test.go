package database

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/cssfp/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() }) //nolint:errcheck
	return s
}

func newTestReport(page string, ts time.Time, score int) *model.Report {
	r := model.NewReport(page, ts)
	r.RiskScore = score
	if score > 0 {
		r.LikelyFingerprinting = true
		r.Verdict = model.Verdict(true)
		r.RiskLevel = model.DefaultThresholds().Level(true, score)
		r.Claims = []string{"user preference: prefers dark mode"}
	}
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer s.Close() //nolint:errcheck

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if s.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path: got %q", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{EnableWAL: true})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, expected ErrNotFound", err)
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.SaveReport(t.Context(), newTestReport("https://a.example/", time.Now(), 3)); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}

		s, err = Open(dir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer s.Close() //nolint:errcheck
		pages, err := s.ListPages(t.Context())
		if err != nil || len(pages) != 1 {
			t.Errorf("pages = %v, err = %v", pages, err)
		}
	})
}

func TestReports(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := t.Context()

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	older := newTestReport("https://a.example/", base, 0)
	newer := newTestReport("https://a.example/", base.Add(time.Hour), 8)
	other := newTestReport("https://b.example/", base, 2)

	var ids []int64
	for _, r := range []*model.Report{older, newer, other} {
		id, err := s.SaveReport(ctx, r)
		if err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("latest", func(t *testing.T) {
		got, err := s.GetLatestReport(ctx, "https://a.example/")
		if err != nil {
			t.Fatal(err)
		}
		if got.RiskScore != 8 || got.RiskLevel != model.RiskHigh {
			t.Errorf("latest report = %+v", got)
		}
		if !got.Timestamp.Equal(newer.Timestamp) {
			t.Errorf("timestamp: got %v, expected %v", got.Timestamp, newer.Timestamp)
		}
	})

	t.Run("latest of unknown page", func(t *testing.T) {
		_, err := s.GetLatestReport(ctx, "https://unknown.example/")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, expected ErrNotFound", err)
		}
	})

	t.Run("by id", func(t *testing.T) {
		got, err := s.GetReportByID(ctx, ids[2])
		if err != nil {
			t.Fatal(err)
		}
		if got.Page != "https://b.example/" {
			t.Errorf("page: got %q, expected %q", got.Page, "https://b.example/")
		}
		if _, err := s.GetReportByID(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, expected ErrNotFound", err)
		}
	})

	t.Run("history", func(t *testing.T) {
		history, err := s.GetReportHistory(ctx, "https://a.example/")
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(history))
		}
		if history[0].ID != ids[1] || history[1].ID != ids[0] {
			t.Errorf("history should be newest first: %+v", history)
		}
		first := history[0]
		if first.DumpKey != DumpKey(newer.Timestamp) {
			t.Errorf("dump key: got %q, expected %q", first.DumpKey, DumpKey(newer.Timestamp))
		}
		if !first.LikelyFingerprinting || first.RiskLevel != model.RiskHigh {
			t.Errorf("metadata = %+v", first)
		}
		if len(first.RawHash) != 64 {
			t.Errorf("raw hash should be hex SHA3-256, got %q", first.RawHash)
		}
		if history[1].LikelyFingerprinting {
			t.Errorf("older report should be clean: %+v", history[1])
		}
	})

	t.Run("pages", func(t *testing.T) {
		pages, err := s.ListPages(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"https://a.example/", "https://b.example/"}
		if len(pages) != len(want) {
			t.Fatalf("got %v, expected %v", pages, want)
		}
		for i := range want {
			if pages[i] != want[i] {
				t.Errorf("pages[%d]: got %q, expected %q", i, pages[i], want[i])
			}
		}
	})
}

func TestDumpKey(t *testing.T) {
	t.Parallel()

	ts := time.UnixMilli(1700000000123)
	if got := DumpKey(ts); got != "css_dump_1700000000123" {
		t.Errorf("got %q, expected %q", got, "css_dump_1700000000123")
	}
}

func TestHashReport(t *testing.T) {
	t.Parallel()

	// SHA3-256 of the empty input.
	const empty = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
	if got := hashReport(nil); got != empty {
		t.Errorf("got %q, expected %q", got, empty)
	}
	if hashReport([]byte("a")) == hashReport([]byte("b")) {
		t.Error("different inputs should hash differently")
	}
}

func TestBeaconHits(t *testing.T) {
	t.Parallel()

	s := setupTestDB(t)
	ctx := t.Context()

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, path := range []string{"/a.png", "/verify_1.png", "/b.png"} {
		hit := &BeaconHit{
			HitID:     fmt.Sprintf("hit-%d", i),
			ClientIP:  "192.0.2.1",
			Method:    http.MethodGet,
			URL:       "http://beacon.example" + path,
			Path:      path,
			Headers:   http.Header{"User-Agent": []string{"probe"}},
			Cookie:    "sid=1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := s.InsertBeaconHit(ctx, hit); err != nil {
			t.Fatalf("InsertBeaconHit() error = %v", err)
		}
	}

	t.Run("limit", func(t *testing.T) {
		hits, err := s.ListBeaconHits(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(hits))
		}
		if hits[0].Path != "/b.png" || hits[1].Path != "/verify_1.png" {
			t.Errorf("hits should be newest first: %+v", hits)
		}
		if hits[0].Headers.Get("User-Agent") != "probe" || hits[0].Cookie != "sid=1" || hits[0].HitID != "hit-2" {
			t.Errorf("hit = %+v", hits[0])
		}
		if !hits[0].Timestamp.Equal(base.Add(2 * time.Second)) {
			t.Errorf("timestamp: got %v", hits[0].Timestamp)
		}
	})

	t.Run("all", func(t *testing.T) {
		hits, err := s.ListBeaconHits(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 3 {
			t.Errorf("expected 3 hits, got %d", len(hits))
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"stored layout", formatTimestamp(want), want},
		{"rfc3339", "2025-01-02T03:04:05Z", want},
		{"sqlite default", "2025-01-02 03:04:05", want},
		{"garbage", "yesterday", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("got %v, expected %v", got, tt.want)
			}
		})
	}
}
