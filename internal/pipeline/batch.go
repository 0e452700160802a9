package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of targets scanned at once.
const DefaultConcurrency = 4

// BatchProcessor scans several targets concurrently. Each distinct page is
// scanned at most once per processor; a repeated target yields a skipped
// job.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each job.
	pipelineFactory func() *Pipeline

	concurrency int

	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
		seen:            make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// pageKey identifies a page across spellings of the same target: the
// fragment is dropped and scheme and host are lowercased for URLs; files
// use their absolute path.
func pageKey(target string) string {
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		u.Fragment = ""
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		if u.Path == "" {
			u.Path = "/"
		}
		return u.String()
	}
	if abs, err := filepath.Abs(target); err == nil {
		return abs
	}
	return target
}

// claim marks the page of target as scanned and reports whether it was new.
func (bp *BatchProcessor) claim(target string) bool {
	key := pageKey(target)
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, dup := bp.seen[key]; dup {
		return false
	}
	bp.seen[key] = struct{}{}
	return true
}

// run executes one job, honoring the once-per-page guard.
func (bp *BatchProcessor) run(ctx context.Context, target string, index, total int) *Job {
	job := NewJob(target)
	if !bp.claim(target) {
		job.Skipped = true
		job.Err = ErrDuplicateTarget
		bp.logger.Info("skipping duplicate target", "target", target)
		return job
	}

	bp.logger.Info("scanning target",
		"target", target,
		"index", index+1,
		"total", total,
	)
	if err := bp.pipelineFactory().Execute(ctx, job); err != nil {
		bp.logger.Warn("scan failed", "target", target, "error", err)
	}
	return job
}

// BatchStats counts the outcome of one batch.
type BatchStats struct {
	Scanned int
	Skipped int
	Failed  int
}

func (st *BatchStats) add(job *Job) {
	switch {
	case job.Skipped:
		st.Skipped++
	case job.Report == nil:
		st.Failed++
	default:
		st.Scanned++
	}
}

// dispatch runs one job per target with at most concurrency jobs at once
// and hands each finished job to done. done runs on worker goroutines.
func (bp *BatchProcessor) dispatch(ctx context.Context, targets []string, done func(job *Job, index int)) error {
	started := time.Now()
	bp.logger.Info("starting batch",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	var (
		mu    sync.Mutex
		stats BatchStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job := bp.run(gctx, target, i, len(targets))
			mu.Lock()
			stats.add(job)
			mu.Unlock()
			done(job, i)
			return nil
		})
	}
	err := g.Wait()

	bp.logger.Info("batch complete",
		"scanned", stats.Scanned,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed", time.Since(started),
	)
	return err
}

// ProcessBatch scans targets concurrently and returns one job per target,
// in input order. Failed scans are returned with their error set; the
// returned error is only the context's. Targets never started because of
// cancellation have a nil slot.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*Job, error) {
	results := make([]*Job, len(targets))
	err := bp.dispatch(ctx, targets, func(job *Job, index int) {
		results[index] = job
	})
	return results, err
}

// ProcessBatchWithCallback scans targets and calls callback with each job
// as soon as it finishes, together with the target's index. callback is
// called from worker goroutines and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(job *Job, index int),
) error {
	return bp.dispatch(ctx, targets, callback)
}
