package pipeline

import (
	"biolabel/internal/align"
	"biolabel/internal/blocks"
	"biolabel/internal/events"
)

// Per-modality outcomes of the merge and downsample stages.
const (
	OutcomeWritten = "written"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ModalityOutcome is what a per-modality stage did for one modality.
type ModalityOutcome struct {
	Modality string `json:"modality"`
	Outcome  string `json:"outcome"`
	Files    int    `json:"files,omitempty"`
	RowsIn   int    `json:"rows_in"`
	RowsOut  int    `json:"rows_out"`
	Path     string `json:"path,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Message  string `json:"message,omitempty"`
	Err      error  `json:"-"`
}

// StageReport collects the per-modality outcomes of merge or downsample.
type StageReport struct {
	Stage      string            `json:"stage"`
	Modalities []ModalityOutcome `json:"modalities"`
}

// Written is the number of modalities for which a table was written.
func (s *StageReport) Written() int {
	n := 0
	for _, m := range s.Modalities {
		if m.Outcome == OutcomeWritten {
			n++
		}
	}
	return n
}

// AlignReport describes the align and label pass.
type AlignReport struct {
	Path       string                 `json:"path"`
	SHA256     string                 `json:"sha256"`
	Rows       int                    `json:"rows"`
	Modalities []align.ModalityReport `json:"modalities"`
	Events     events.ParseStats      `json:"events"`
	Labels     events.LabelResult     `json:"labels"`
}

// RunReport is the outcome of every stage of a full run.
type RunReport struct {
	Merge      *StageReport   `json:"merge,omitempty"`
	Downsample *StageReport   `json:"downsample,omitempty"`
	Align      *AlignReport   `json:"align,omitempty"`
	Summary    *blocks.Report `json:"summary,omitempty"`
}
