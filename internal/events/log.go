package events

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"biolabel/internal/pipeerr"
	"biolabel/internal/runkey"
	"biolabel/internal/table"
)

// Event log column names.
const (
	EventTypeColumn = "eventType"
	OnsetColumn     = "onset"
	DurationColumn  = "duration"
	DecisionColumn  = "decision"
)

const stageName = "label"

var folder = cases.Fold()

// IsSeizure reports whether eventType starts with prefix, compared without
// regard to case.
func IsSeizure(eventType, prefix string) bool {
	return strings.HasPrefix(folder.String(eventType), folder.String(prefix))
}

// Event is one seizure row of the event log converted to an interval.
type Event struct {
	Interval
	EventType string `json:"event_type"`
	// RunKey is set when the event log carries a run column.
	RunKey string `json:"run_key,omitempty"`
}

// ParseStats counts how the event log rows were classified.
type ParseStats struct {
	Rows       int `json:"rows"`
	Seizures   int `json:"seizures"`
	BadNumbers int `json:"bad_numbers"`
	NoRunKey   int `json:"no_run_key"`
}

// ParseOptions controls event extraction.
type ParseOptions struct {
	Prefix string
	// RunColumn, when non-empty, names the column carrying each event's run.
	// Its values are canonicalized with the run-key parser when they parse.
	RunColumn string
	// RequireRun makes a missing RunColumn a validation error.
	RequireRun bool
}

// Parse extracts seizure intervals from an event log. Seizure rows whose onset
// or duration is not numeric are dropped and counted.
func Parse(log *table.Table, opts ParseOptions) ([]Event, ParseStats, error) {
	stats := ParseStats{Rows: log.Len()}
	if !log.Has(EventTypeColumn) {
		return nil, stats, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "parse events", fmt.Sprintf("event log must contain column %s", EventTypeColumn), nil)
	}
	for _, col := range []string{OnsetColumn, DurationColumn} {
		if !log.Has(col) {
			return nil, stats, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "parse events", fmt.Sprintf("event log must contain column %s", col), nil)
		}
	}
	runCol := strings.TrimSpace(opts.RunColumn)
	hasRun := runCol != "" && log.Has(runCol)
	if opts.RequireRun && !hasRun {
		return nil, stats, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "parse events",
			fmt.Sprintf("per-run event association needs a %q column in the event log", runCol), nil)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sz"
	}

	var out []Event
	for i := 0; i < log.Len(); i++ {
		eventType := log.Cell(i, EventTypeColumn)
		if !IsSeizure(eventType, prefix) {
			continue
		}
		stats.Seizures++
		onset, okOnset := table.ParseFloat(log.Cell(i, OnsetColumn))
		duration, okDuration := table.ParseFloat(log.Cell(i, DurationColumn))
		if !okOnset || !okDuration {
			stats.BadNumbers++
			continue
		}
		ev := Event{Interval: Interval{Start: onset, End: onset + duration}, EventType: eventType}
		if hasRun {
			raw := strings.TrimSpace(log.Cell(i, runCol))
			if canonical, ok := runkey.ParseString(raw); ok {
				ev.RunKey = canonical
			} else {
				ev.RunKey = raw
			}
			if ev.RunKey == "" {
				stats.NoRunKey++
				if opts.RequireRun {
					continue
				}
			}
		}
		out = append(out, ev)
	}
	return out, stats, nil
}

// Annotate adds (or replaces) an integer decision column that is 1 for
// seizure rows and 0 otherwise, and returns the count of each value.
func Annotate(log *table.Table, prefix string) (map[int]int, error) {
	if !log.Has(EventTypeColumn) {
		return nil, pipeerr.Wrap(pipeerr.ErrValidation, "annotate", "annotate events", fmt.Sprintf("event log must contain column %s", EventTypeColumn), nil)
	}
	if prefix == "" {
		prefix = "sz"
	}
	counts := map[int]int{0: 0, 1: 0}
	values := make([]string, log.Len())
	for i := range values {
		if IsSeizure(log.Cell(i, EventTypeColumn), prefix) {
			values[i] = "1"
			counts[1]++
		} else {
			values[i] = "0"
			counts[0]++
		}
	}
	if err := log.InsertColumn(log.Width(), DecisionColumn, values); err != nil {
		return nil, err
	}
	return counts, nil
}
