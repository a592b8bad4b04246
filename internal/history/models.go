package history

import "time"

// Status is the outcome of a run or stage.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped marks a stage unit that had no input, such as an absent modality.
	StatusSkipped Status = "skipped"
)

// Run is one CLI invocation that executed pipeline stages.
type Run struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	Subject      string     `json:"subject,omitempty"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Duration is the wall time of a finished run, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageResult records one stage unit (a stage, or a stage for one modality).
type StageResult struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Stage        string    `json:"stage"`
	Modality     string    `json:"modality,omitempty"`
	Status       Status    `json:"status"`
	RowsIn       int       `json:"rows_in"`
	RowsOut      int       `json:"rows_out"`
	Excluded     int       `json:"excluded"`
	OutputPath   string    `json:"output_path,omitempty"`
	OutputSHA256 string    `json:"output_sha256,omitempty"`
	Message      string    `json:"message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
