package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biolabel/internal/align"
	"biolabel/internal/blocks"
	"biolabel/internal/config"
	"biolabel/internal/history"
	"biolabel/internal/logging"
	"biolabel/internal/pipeerr"
	"biolabel/internal/pipeline"
	"biolabel/internal/table"
	"biolabel/internal/testsupport"
)

func writeScenario(t *testing.T, cfg *config.Config) {
	t.Helper()
	dir := cfg.Paths.WindowDir
	testsupport.WriteWindow(t, dir, testsupport.WindowName("eeg", 1, 1), "Fp1", 0, 14)
	testsupport.WriteWindow(t, dir, testsupport.WindowName("eeg", 1, 2), "Fp1", 15, 29)
	testsupport.WriteWindow(t, dir, testsupport.WindowName("ecg", 1, 1), "HR", 0, 29)
	testsupport.WriteEvents(t, cfg.Paths.EventsFile,
		testsupport.Event{Type: "sz_focal", Onset: "5", Duration: "3"},
		testsupport.Event{Type: "bckg", Onset: "0", Duration: "30"},
	)
}

func runAll(t *testing.T, runner *pipeline.Runner) *pipeline.RunReport {
	t.Helper()
	var report *pipeline.RunReport
	err := runner.Do(context.Background(), "run", func(ctx context.Context) error {
		var runErr error
		report, runErr = runner.Run(ctx)
		return runErr
	})
	require.NoError(t, err)
	return report
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	store := testsupport.MustOpenHistory(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop(), pipeline.WithHistory(store))

	report := runAll(t, runner)

	require.Len(t, report.Merge.Modalities, 4)
	assert.Equal(t, pipeline.OutcomeWritten, report.Merge.Modalities[0].Outcome)
	assert.Equal(t, 30, report.Merge.Modalities[0].RowsOut)
	assert.Equal(t, 2, report.Merge.Modalities[0].Files)
	assert.Equal(t, pipeline.OutcomeWritten, report.Merge.Modalities[1].Outcome)
	assert.Equal(t, pipeline.OutcomeSkipped, report.Merge.Modalities[2].Outcome)
	assert.Equal(t, pipeline.OutcomeSkipped, report.Merge.Modalities[3].Outcome)
	assert.Equal(t, 2, report.Downsample.Written())

	unified, err := table.ReadFile(cfg.UnifiedPath(), ',')
	require.NoError(t, err)
	assert.Equal(t, 30, unified.Len())
	assert.Equal(t, []string{"run_key", "time_sec", "label", "eeg_source_file", "ecg_source_file", "eeg_Fp1", "ecg_HR"}, unified.Columns())
	for _, col := range unified.Columns() {
		assert.False(t, strings.HasPrefix(col, "emg_") || strings.HasPrefix(col, "mov_"), col)
	}
	for i := 0; i < unified.Len(); i++ {
		assert.Equal(t, "sub-001_ses-01_run-01", unified.Cell(i, "run_key"))
		assert.NotEqual(t, table.Missing, unified.Cell(i, "eeg_source_file"))
		assert.NotEqual(t, table.Missing, unified.Cell(i, "ecg_source_file"))
		ts := unified.Cell(i, "time_sec")
		want := "0"
		if ts == "5" || ts == "6" || ts == "7" {
			want = "1"
		}
		assert.Equal(t, want, unified.Cell(i, "label"), "t=%s", ts)
	}
	assert.Equal(t, 3, report.Align.Labels.Balance[1])
	assert.Equal(t, 27, report.Align.Labels.Balance[0])

	assert.Equal(t, []blocks.Block{{RunKey: "sub-001_ses-01_run-01", Start: 5, End: 7}}, report.Summary.Blocks())

	runs, err := store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusSucceeded, runs[0].Status)
	stages, err := store.StageResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, stages, 10)
	last := stages[len(stages)-2]
	assert.Equal(t, pipeline.StageAlign, last.Stage)
	assert.Equal(t, report.Align.SHA256, last.OutputSHA256)
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop())

	first := runAll(t, runner)
	firstBytes, err := os.ReadFile(cfg.UnifiedPath())
	require.NoError(t, err)

	second := runAll(t, runner)
	secondBytes, err := os.ReadFile(cfg.UnifiedPath())
	require.NoError(t, err)

	assert.Equal(t, first.Align.SHA256, second.Align.SHA256)
	assert.Equal(t, firstBytes, secondBytes)
}

func TestRerunDropsModalityWithoutWindows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop())
	runAll(t, runner)

	eegWindows, err := filepath.Glob(filepath.Join(cfg.Paths.WindowDir, "*_eeg_*"))
	require.NoError(t, err)
	require.NotEmpty(t, eegWindows)
	for _, path := range eegWindows {
		require.NoError(t, os.Remove(path))
	}

	report := runAll(t, runner)
	assert.Equal(t, pipeline.OutcomeSkipped, report.Merge.Modalities[0].Outcome)
	assert.Equal(t, pipeline.OutcomeSkipped, report.Downsample.Modalities[0].Outcome)
	for _, path := range []string{cfg.ConcatenatedPath("eeg"), cfg.DownsampledPath("eeg")} {
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "%s should be removed", path)
	}

	unified, err := table.ReadFile(cfg.UnifiedPath(), ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"run_key", "time_sec", "label", "ecg_source_file", "ecg_HR"}, unified.Columns())
}

func TestAlignUnreadableModalityFailsAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop())
	ctx := context.Background()
	_, err := runner.Merge(ctx)
	require.NoError(t, err)
	_, err = runner.Downsample(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.DownsampledPath("eeg"), []byte("source_file,time_sec,Fp1\nx,0\n"), 0o644))

	report, err := runner.Align(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Modalities)
	assert.Equal(t, "eeg", report.Modalities[0].Modality)
	assert.Equal(t, align.StatusFailed, report.Modalities[0].Status)
	assert.ErrorIs(t, report.Modalities[0].Err, pipeerr.ErrIO)

	unified, err := table.ReadFile(cfg.UnifiedPath(), ',')
	require.NoError(t, err)
	assert.False(t, unified.Has("eeg_source_file"))
	assert.True(t, unified.Has("ecg_HR"))
}

func TestAlignFailsWithoutEventLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	require.NoError(t, os.Remove(cfg.Paths.EventsFile))
	runner := pipeline.New(cfg, logging.NewNop())

	ctx := context.Background()
	require.NoError(t, runner.Do(ctx, "prepare", func(ctx context.Context) error {
		if _, err := runner.Merge(ctx); err != nil {
			return err
		}
		_, err := runner.Downsample(ctx, 0)
		return err
	}))

	_, err := runner.Align(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeerr.ErrNotFound))
	assert.Contains(t, err.Error(), "event log")
	_, statErr := os.Stat(cfg.UnifiedPath())
	assert.True(t, os.IsNotExist(statErr), "no unified table should be written")
}

func TestMergeWithoutWindows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.WindowDir, 0o755))
	runner := pipeline.New(cfg, logging.NewNop())

	report, err := runner.Merge(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeerr.ErrNotFound))
	assert.Zero(t, report.Written())
}

func TestDownsampleStride(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithModalities("eeg"), testsupport.WithStride(25))
	testsupport.WriteWindow(t, cfg.Paths.WindowDir, testsupport.WindowName("eeg", 1, 1), "Fp1", 0, 29)
	runner := pipeline.New(cfg, logging.NewNop())
	require.NoError(t, cfg.EnsureDirectories())

	ctx := context.Background()
	_, err := runner.Merge(ctx)
	require.NoError(t, err)

	report, err := runner.Downsample(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Modalities[0].RowsOut)

	report, err = runner.Downsample(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Modalities[0].RowsIn)
	assert.Equal(t, 3, report.Modalities[0].RowsOut)

	out, err := table.ReadFile(cfg.DownsampledPath("eeg"), ',')
	require.NoError(t, err)
	times, _ := out.Column("time_sec")
	assert.Equal(t, []string{"0", "10", "20"}, times)
}

func TestRunScopeAppliesEventsPerRun(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithModalities("eeg"),
		testsupport.WithEventScope(config.EventScopeRun),
	)
	testsupport.WriteWindow(t, cfg.Paths.WindowDir, testsupport.WindowName("eeg", 1, 1), "Fp1", 0, 4)
	testsupport.WriteWindow(t, cfg.Paths.WindowDir, testsupport.WindowName("eeg", 2, 1), "Fp1", 0, 4)
	testsupport.WriteEvents(t, cfg.Paths.EventsFile,
		testsupport.Event{Type: "sz", Onset: "2", Duration: "2", RunKey: "sub-001_ses-01_run-02"},
	)
	runner := pipeline.New(cfg, logging.NewNop())
	report := runAll(t, runner)

	unified, err := table.ReadFile(cfg.UnifiedPath(), ',')
	require.NoError(t, err)
	require.Equal(t, 10, unified.Len())
	var positives []string
	for i := 0; i < unified.Len(); i++ {
		if unified.Cell(i, "label") == "1" {
			positives = append(positives, unified.Cell(i, "run_key")+"@"+unified.Cell(i, "time_sec"))
		}
	}
	assert.Equal(t, []string{"sub-001_ses-01_run-02@2", "sub-001_ses-01_run-02@3"}, positives)
	assert.Equal(t, []blocks.Block{{RunKey: "sub-001_ses-01_run-02", Start: 2, End: 3}}, report.Summary.Blocks())
}

func TestDoRejectsOverlappingInvocation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())
	holder := flock.New(cfg.LockPath())
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = holder.Unlock() })

	runner := pipeline.New(cfg, logging.NewNop())
	called := false
	err = runner.Do(context.Background(), "run", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeerr.ErrBusy))
	assert.False(t, called)
}

func TestDoSweepsStaleTempFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())
	stale := filepath.Join(cfg.Paths.OutputDir, ".unified.csv.12345.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(stale, past, past))

	runner := pipeline.New(cfg, logging.NewNop())
	require.NoError(t, runner.Do(context.Background(), "merge", func(context.Context) error { return nil }))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(cfg.ConcatenatedPath("eeg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFailedRunIsRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop(), pipeline.WithHistory(store))

	err := runner.Do(context.Background(), "merge", func(ctx context.Context) error {
		_, mergeErr := runner.Merge(ctx)
		return mergeErr
	})
	require.Error(t, err)

	runs, listErr := store.ListRuns(context.Background(), 1)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].ErrorMessage)
}

func TestAnnotateEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeScenario(t, cfg)
	runner := pipeline.New(cfg, logging.NewNop())

	counts, output, err := runner.AnnotateEvents(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, counts)
	assert.True(t, strings.HasSuffix(output, "events_combined_annotated.csv"))

	annotated, err := table.ReadFile(output, ',')
	require.NoError(t, err)
	decisions, ok := annotated.Column("decision")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "0"}, decisions)
}
