package pipeline

import (
	"errors"
	"time"

	"github.com/nao1215/cssfp/internal/config"
	"github.com/nao1215/cssfp/internal/cssom"
	"github.com/nao1215/cssfp/internal/model"
)

// ErrDuplicateTarget marks a job that was not run because its page was
// already scanned by the same processor.
var ErrDuplicateTarget = errors.New("page already scanned")

// Job carries one target through the pipeline. Each step reads what the
// previous steps left and adds its own result.
type Job struct {
	// Target is the URL or file the job scans.
	Target string

	// Site is the per-site configuration resolved for Target.
	Site config.SiteConfig

	// Document is the collected CSSOM.
	Document *cssom.Document

	// Report is the analysis result.
	Report *model.Report

	// ReportID is the database ID of the stored report, 0 when not stored.
	ReportID int64

	// DumpPath is the dump file written for the report.
	DumpPath string

	// PerformedSteps lists the steps that ran, failed ones included.
	PerformedSteps []string

	// Timings holds one entry per step that ran, in order.
	Timings []StepTiming

	// Err is the last step error.
	Err error

	// Skipped is set when the guard rejected a duplicate page.
	Skipped bool
}

// StepTiming is how long one step took.
type StepTiming struct {
	Step    string
	Elapsed time.Duration
	Failed  bool
}

// Elapsed returns the total time spent in steps.
func (j *Job) Elapsed() time.Duration {
	var total time.Duration
	for _, t := range j.Timings {
		total += t.Elapsed
	}
	return total
}

// NewJob creates a job for target.
func NewJob(target string) *Job {
	return &Job{
		Target:         target,
		PerformedSteps: make([]string, 0),
	}
}

// Failed reports whether a step failed or the job was skipped.
func (j *Job) Failed() bool {
	return j.Err != nil
}
