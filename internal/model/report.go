package model

import "time"

// RunReport summarises one pipeline run
type RunReport struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Categories []CategoryReport `json:"categories"`
}

// CategoryReport summarises one category run
type CategoryReport struct {
	Category   Category       `json:"category"`
	Status     CategoryStatus `json:"status"`
	ClosureLen int            `json:"closure_size"`    // membership set size
	Deleted    int64          `json:"deleted"`         // prior records dropped by tag
	Scanned    int            `json:"scanned"`         // matching items read from the corpus
	Written    int            `json:"written"`         // records committed
	Skipped    int            `json:"skipped"`         // duplicates for this category
	Batches    int            `json:"batches"`         // committed bulk writes
	Duration   time.Duration  `json:"duration"`        // wall time
	Error      string         `json:"error,omitempty"` // failure detail
}

// CategoryStatus is the outcome of a category run
type CategoryStatus string

const (
	StatusCompleted CategoryStatus = "completed"
	StatusSkipped   CategoryStatus = "skipped" // closure could not be resolved
	StatusFailed    CategoryStatus = "failed"  // write failure, run aborted
	StatusNotRun    CategoryStatus = "not_run" // an earlier failure stopped the run
)

// Failed reports whether any category did not complete
func (r *RunReport) Failed() bool {
	for _, c := range r.Categories {
		if c.Status != StatusCompleted {
			return true
		}
	}
	return false
}

// Report returns the report for a category, if present
func (r *RunReport) Report(c Category) (CategoryReport, bool) {
	for _, cr := range r.Categories {
		if cr.Category == c {
			return cr, true
		}
	}
	return CategoryReport{}, false
}
