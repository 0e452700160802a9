package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/cssfp/internal/model"
)

// targetStep records every target it runs on.
type targetStep struct {
	mu      sync.Mutex
	targets []string
	fail    string
}

var errTarget = errors.New("target failed")

func (s *targetStep) Name() string { return "record" }

func (s *targetStep) Do(_ context.Context, job *Job) error {
	s.mu.Lock()
	s.targets = append(s.targets, job.Target)
	s.mu.Unlock()
	if job.Target == s.fail {
		return errTarget
	}
	return nil
}

func newBatch(step Step, opts ...BatchOption) *BatchProcessor {
	factory := func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(step)
		return p
	}
	return NewBatchProcessor(factory, append([]BatchOption{WithBatchLogger(discardLogger())}, opts...)...)
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	if bp := newBatch(&targetStep{}); bp.concurrency != DefaultConcurrency {
		t.Errorf("concurrency: got %d, expected %d", bp.concurrency, DefaultConcurrency)
	}
	if bp := newBatch(&targetStep{}, WithConcurrency(2)); bp.concurrency != 2 {
		t.Errorf("concurrency: got %d, expected 2", bp.concurrency)
	}
	if bp := newBatch(&targetStep{}, WithConcurrency(0)); bp.concurrency != DefaultConcurrency {
		t.Errorf("non-positive concurrency should be ignored, got %d", bp.concurrency)
	}
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order and errors", func(t *testing.T) {
		t.Parallel()

		step := &targetStep{fail: "https://b.example/"}
		targets := []string{"https://a.example/", "https://b.example/", "https://c.example/"}

		jobs, err := newBatch(step, WithConcurrency(3)).ProcessBatch(t.Context(), targets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}
		for i, job := range jobs {
			if job.Target != targets[i] {
				t.Errorf("jobs[%d]: got %q, expected %q", i, job.Target, targets[i])
			}
		}
		if !errors.Is(jobs[1].Err, errTarget) || jobs[0].Failed() || jobs[2].Failed() {
			t.Errorf("errors: %v, %v, %v", jobs[0].Err, jobs[1].Err, jobs[2].Err)
		}
	})

	t.Run("scans each page once", func(t *testing.T) {
		t.Parallel()

		step := &targetStep{}
		targets := []string{
			"https://a.example/",
			"https://A.example/#top",
			"https://a.example",
			"https://b.example/",
		}

		jobs, err := newBatch(step, WithConcurrency(1)).ProcessBatch(t.Context(), targets)
		if err != nil {
			t.Fatal(err)
		}
		if len(step.targets) != 2 {
			t.Errorf("expected 2 scans, got %v", step.targets)
		}
		skipped := 0
		for _, job := range jobs {
			if job.Skipped {
				skipped++
				if !errors.Is(job.Err, ErrDuplicateTarget) {
					t.Errorf("skipped job error: got %v", job.Err)
				}
			}
		}
		if skipped != 2 || jobs[0].Skipped || jobs[3].Skipped {
			t.Errorf("expected the two repeats of a.example to be skipped: %+v", jobs)
		}
	})

	t.Run("guard spans batches", func(t *testing.T) {
		t.Parallel()

		step := &targetStep{}
		bp := newBatch(step)
		if _, err := bp.ProcessBatch(t.Context(), []string{"https://a.example/"}); err != nil {
			t.Fatal(err)
		}
		jobs, err := bp.ProcessBatch(t.Context(), []string{"https://a.example/"})
		if err != nil {
			t.Fatal(err)
		}
		if !jobs[0].Skipped || len(step.targets) != 1 {
			t.Errorf("second batch should skip the page: %+v", jobs[0])
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		step := &targetStep{}
		_, err := newBatch(step).ProcessBatch(ctx, []string{"https://a.example/"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, expected context.Canceled", err)
		}
		if len(step.targets) != 0 {
			t.Errorf("no target should run: %v", step.targets)
		}
	})
}

func TestProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	step := &targetStep{}
	targets := []string{"https://a.example/", "https://b.example/", "https://a.example/"}

	var (
		calls   atomic.Int32
		mu      sync.Mutex
		indexes = make(map[int]*Job)
	)
	err := newBatch(step, WithConcurrency(1)).ProcessBatchWithCallback(t.Context(), targets, func(job *Job, i int) {
		calls.Add(1)
		mu.Lock()
		indexes[i] = job
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 callbacks, got %d", calls.Load())
	}
	if indexes[1].Target != "https://b.example/" {
		t.Errorf("index 1: got %q", indexes[1].Target)
	}
	if !indexes[2].Skipped {
		t.Error("repeated target should be skipped")
	}
}

func TestPageKey(t *testing.T) {
	t.Parallel()

	abs, err := filepath.Abs("page.html")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"url", "https://example.com/a?b=1", "https://example.com/a?b=1"},
		{"case and fragment", "HTTPS://Example.COM/a#x", "https://example.com/a"},
		{"empty path", "http://example.com", "http://example.com/"},
		{"relative file", "page.html", abs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := pageKey(tt.target); got != tt.want {
				t.Errorf("pageKey(%q) = %q, expected %q", tt.target, got, tt.want)
			}
		})
	}
}

func TestBatchStats(t *testing.T) {
	t.Parallel()

	var st BatchStats
	st.add(&Job{Report: &model.Report{}})
	st.add(&Job{Skipped: true})
	st.add(&Job{Err: errTarget})
	st.add(&Job{Report: &model.Report{}, Err: errTarget})

	want := BatchStats{Scanned: 2, Skipped: 1, Failed: 1}
	if st != want {
		t.Errorf("got %+v, expected %+v", st, want)
	}
}
