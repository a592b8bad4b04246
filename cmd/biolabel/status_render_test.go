package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"biolabel/internal/pipeline"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("eeg", statusError, "read failed", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "eeg:", "[ERROR] read failed")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("eeg", statusOK, "merged", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestOutcomeLines(t *testing.T) {
	report := &pipeline.StageReport{
		Stage: "merge",
		Modalities: []pipeline.ModalityOutcome{
			{Modality: "eeg", Outcome: pipeline.OutcomeWritten, Files: 2, RowsOut: 30, Path: "/out/all_eeg.csv"},
			{Modality: "emg", Outcome: pipeline.OutcomeSkipped, Message: "no emg window files"},
			{Modality: "mov", Outcome: pipeline.OutcomeFailed, Message: "bad header", Err: errors.New("bad header")},
		},
	}
	lines := outcomeLines(report, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0] != "merge:" {
		t.Fatalf("expected stage header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] 2 files, 30 rows, /out/all_eeg.csv") {
		t.Fatalf("unexpected written line %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] skipped: no emg window files") {
		t.Fatalf("unexpected skipped line %q", lines[2])
	}
	if !strings.Contains(lines[3], "[ERROR] bad header") {
		t.Fatalf("unexpected failed line %q", lines[3])
	}
	if outcomeLines(nil, false) != nil {
		t.Fatal("expected nil report to render nothing")
	}
}

func TestTableViewPadsRows(t *testing.T) {
	out := tableView{
		headers: []string{"Stage", "Rows"},
		aligns:  []columnAlignment{alignLeft, alignRight},
		rows:    [][]string{{"merge"}},
		footer:  []string{"1 stage"},
	}.render()
	if !strings.Contains(out, "merge") || !strings.Contains(strings.ToUpper(out), "1 STAGE") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if (tableView{}).render() != "" {
		t.Fatal("expected empty table to render nothing")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
