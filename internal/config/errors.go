package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when scan is run without a page.
	ErrNoTarget = errors.New("no target specified: provide a URL, an .html/.css file or a CSSOM dump")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size or the fetch
	// concurrency is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxRules is returned when the per-sheet rule cap is not positive.
	ErrInvalidMaxRules = errors.New("invalid max rules: must be positive")

	// ErrInvalidExcerptLength is returned when an excerpt length is not positive.
	ErrInvalidExcerptLength = errors.New("invalid excerpt length: must be positive")

	// ErrInvalidThresholds is returned unless 0 < medium < high.
	ErrInvalidThresholds = errors.New("invalid risk thresholds: need 0 < medium < high")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidImportDepth is returned when the import depth is negative.
	ErrInvalidImportDepth = errors.New("invalid import depth: must be non-negative")
)
