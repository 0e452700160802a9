package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/cssfp/internal/model"
)

// dumpPrefix starts every dump file name.
const dumpPrefix = "css_dump_"

// maxDumpCopies bounds the " (n)" suffixes tried before giving up.
const maxDumpCopies = 1000

// ErrDumpExists is returned when no free dump file name could be found.
var ErrDumpExists = errors.New("dump file already exists")

// DumpFileName returns the file name a report taken at ts is saved under:
// css_dump_<ISO-8601 UTC time>.json with ':' and '.' replaced by '-'.
func DumpFileName(ts time.Time) string {
	stamp := ts.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return dumpPrefix + stamp + ".json"
}

// SaveDump writes the report as pretty-printed JSON into dir and returns
// the path of the new file. An existing file is never overwritten; a
// " (1)", " (2)" ... suffix is added instead.
func SaveDump(dir string, report *model.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	name := DumpFileName(report.Timestamp)
	base := strings.TrimSuffix(name, ".json")
	for i := 0; i < maxDumpCopies; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d).json", base, i)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // path is built from a fixed pattern
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create dump file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close() //nolint:errcheck
			return "", fmt.Errorf("failed to write dump file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close dump file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrDumpExists, name)
}
