package batch

import "time"

// Status of a generation run
type Status string

const (
	StatusIdle            Status = "idle"
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyFailed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Failure describes one row that did not produce a certificate
type Failure struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

// Output references the certificate produced for one row
type Output struct {
	RowIndex int    `json:"rowIndex"`
	Serial   string `json:"serial"`
	URL      string `json:"url"`
}

// Report summarises a run. Failures and Outputs are ordered by row index.
type Report struct {
	RunID      string    `json:"runId"`
	TemplateID string    `json:"templateId"`
	Format     Format    `json:"format"`
	Status     Status    `json:"status"`
	Success    bool      `json:"success"`
	TotalRows  int       `json:"totalRows"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped,omitempty"`
	Failures   []Failure `json:"failures"`
	Outputs    []Output  `json:"outputs"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Progress is emitted after every row
type Progress struct {
	RunID     string `json:"runId"`
	Status    Status `json:"status"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// outcome is the result slot for a single row
type outcome struct {
	done   bool
	serial string
	url    string
	err    error
}

func buildReport(r *Report, outcomes []outcome, cancelled bool) {
	r.Failures = []Failure{}
	r.Outputs = []Output{}

	for i, o := range outcomes {
		switch {
		case !o.done:
			r.Skipped++
		case o.err != nil:
			r.Failed++
			r.Failures = append(r.Failures, Failure{RowIndex: i, Reason: o.err.Error()})
		default:
			r.Succeeded++
			r.Outputs = append(r.Outputs, Output{RowIndex: i, Serial: o.serial, URL: o.url})
		}
	}

	switch {
	case cancelled:
		r.Status = StatusCancelled
	case r.Failed == 0:
		r.Status = StatusCompleted
	case r.Succeeded == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartiallyFailed
	}
	r.Success = r.Status == StatusCompleted
}
