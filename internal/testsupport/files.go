package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WindowName builds a realistic per-window file name for a modality.
func WindowName(modality string, run, window int) string {
	return fmt.Sprintf("sub-001_ses-01_%s_sub-001_ses-01_task-szMonitoring_run-%02d_%s_window%04d.csv",
		modality, run, modality, window)
}

// WriteCSV writes a header and rows joined with commas, creating parent
// directories as needed.
func WriteCSV(t testing.TB, path string, header []string, rows ...[]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWindow writes one window file with a time_sec column and a single
// channel whose values are derived from the timestamp. Times run from start
// to end inclusive in whole seconds.
func WriteWindow(t testing.TB, dir, name, channel string, start, end int) string {
	t.Helper()

	rows := make([][]string, 0, end-start+1)
	for ts := start; ts <= end; ts++ {
		rows = append(rows, []string{fmt.Sprintf("%d", ts), fmt.Sprintf("%d.5", ts)})
	}
	path := filepath.Join(dir, name)
	WriteCSV(t, path, []string{"time_sec", channel}, rows...)
	return path
}

// Event is one event log fixture row.
type Event struct {
	Type     string
	Onset    string
	Duration string
	RunKey   string
}

// WriteEvents writes an event log with eventType, onset and duration columns,
// plus a run_key column when any event names a run.
func WriteEvents(t testing.TB, path string, events ...Event) {
	t.Helper()

	withRun := false
	for _, ev := range events {
		if ev.RunKey != "" {
			withRun = true
		}
	}
	header := []string{"onset", "duration", "eventType"}
	if withRun {
		header = append(header, "run_key")
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		row := []string{ev.Onset, ev.Duration, ev.Type}
		if withRun {
			row = append(row, ev.RunKey)
		}
		rows = append(rows, row)
	}
	WriteCSV(t, path, header, rows...)
}
