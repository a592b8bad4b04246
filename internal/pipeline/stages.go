package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"biolabel/internal/align"
	"biolabel/internal/blocks"
	"biolabel/internal/config"
	"biolabel/internal/downsample"
	"biolabel/internal/events"
	"biolabel/internal/history"
	"biolabel/internal/logging"
	"biolabel/internal/pipeerr"
	"biolabel/internal/table"
	"biolabel/internal/windows"
)

// Stage names.
const (
	StageMerge      = "merge"
	StageDownsample = "downsample"
	StageAlign      = "align"
	StageSummarize  = "summarize"
)

// Merge concatenates each configured modality's window files from window_dir
// into feature_dir/all_{mod}.csv. A modality with no window files, or whose
// files cannot be merged, is reported and the others still proceed. Merge
// fails only when no modality was written.
func (r *Runner) Merge(ctx context.Context) (*StageReport, error) {
	report := &StageReport{Stage: StageMerge}
	err := r.stage(ctx, StageMerge, func(ctx context.Context, logger *slog.Logger) error {
		delim := r.cfg.DelimiterRune()
		for _, mod := range r.cfg.Pipeline.Modalities {
			if err := ctx.Err(); err != nil {
				return err
			}
			started := time.Now().UTC()
			modLogger := logger.With(logging.String(logging.FieldModality, mod))
			outcome := ModalityOutcome{Modality: mod}

			merged, stats, err := windows.Merge(r.cfg.Paths.WindowDir, mod, delim)
			outcome.Files = len(stats.Files)
			if err == nil {
				outcome.RowsIn = stats.Rows
				outcome.Path = r.cfg.ConcatenatedPath(mod)
				outcome.SHA256, err = merged.WriteFile(outcome.Path, delim)
				if err != nil {
					err = pipeerr.Wrap(pipeerr.ErrIO, StageMerge, mod, fmt.Sprintf("write %s", outcome.Path), err)
				}
			}
			switch {
			case err == nil:
				outcome.Outcome = OutcomeWritten
				outcome.RowsOut = merged.Len()
				modLogger.Info("modality merged",
					logging.String(logging.FieldEventType, "modality_merged"),
					logging.Int("files", outcome.Files),
					logging.Int("rows", outcome.RowsOut),
					logging.String("output", outcome.Path),
				)
			case errors.Is(err, pipeerr.ErrNotFound):
				outcome.Outcome = OutcomeSkipped
				outcome.Message = err.Error()
				outcome.Err = err
				r.removeStale(modLogger, r.cfg.ConcatenatedPath(mod))
				logging.WarnWithContext(modLogger, "no window files for modality", "modality_missing",
					logging.String("window_dir", r.cfg.Paths.WindowDir),
					logging.String(logging.FieldErrorHint, "check window_dir and the modality tag in file names"),
					logging.String(logging.FieldImpact, "modality is absent from the aligned table"),
				)
			default:
				outcome.Outcome = OutcomeFailed
				outcome.Message = err.Error()
				outcome.Err = err
				r.removeStale(modLogger, r.cfg.ConcatenatedPath(mod))
				logging.ErrorWithContext(modLogger, "modality merge failed", "modality_failed",
					logging.String(logging.FieldErrorHint, pipeerr.Hint(err)),
					logging.Error(err),
				)
			}
			report.Modalities = append(report.Modalities, outcome)
			r.record(ctx, modLogger, outcomeResult(StageMerge, outcome, started))
		}
		if report.Written() == 0 {
			return pipeerr.Wrap(pipeerr.ErrNotFound, StageMerge, "merge windows",
				fmt.Sprintf("no modality window files found in %s", r.cfg.Paths.WindowDir), firstError(report))
		}
		return nil
	})
	return report, err
}

// Downsample decimates each modality's concatenated table with stride,
// writing downsampled_dir/all_{mod}_downsampled.csv. stride <= 0 uses the
// configured stride. A missing concatenated table is a warning and that
// modality is skipped.
func (r *Runner) Downsample(ctx context.Context, stride int) (*StageReport, error) {
	if stride <= 0 {
		stride = r.cfg.Pipeline.Stride
	}
	report := &StageReport{Stage: StageDownsample}
	err := r.stage(ctx, StageDownsample, func(ctx context.Context, logger *slog.Logger) error {
		if stride < 1 {
			return pipeerr.Wrap(pipeerr.ErrValidation, StageDownsample, "decimate", fmt.Sprintf("stride must be at least 1 (got %d)", stride), nil)
		}
		delim := r.cfg.DelimiterRune()
		for _, mod := range r.cfg.Pipeline.Modalities {
			if err := ctx.Err(); err != nil {
				return err
			}
			started := time.Now().UTC()
			modLogger := logger.With(logging.String(logging.FieldModality, mod))
			outcome := ModalityOutcome{Modality: mod}
			input := r.cfg.ConcatenatedPath(mod)

			err := r.downsampleOne(input, mod, stride, delim, &outcome)
			switch {
			case err == nil:
				outcome.Outcome = OutcomeWritten
				modLogger.Info("modality downsampled",
					logging.String(logging.FieldEventType, "modality_downsampled"),
					logging.Int("stride", stride),
					logging.Int("rows_in", outcome.RowsIn),
					logging.Int("rows_out", outcome.RowsOut),
					logging.String("output", outcome.Path),
				)
			case errors.Is(err, pipeerr.ErrNotFound):
				outcome.Outcome = OutcomeSkipped
				outcome.Message = err.Error()
				outcome.Err = err
				r.removeStale(modLogger, r.cfg.DownsampledPath(mod))
				logging.WarnWithContext(modLogger, "concatenated table missing; skipping", "modality_missing",
					logging.String("input", input),
					logging.String(logging.FieldErrorHint, "run `biolabel merge` first"),
					logging.String(logging.FieldImpact, "modality is absent from the aligned table"),
				)
			default:
				outcome.Outcome = OutcomeFailed
				outcome.Message = err.Error()
				outcome.Err = err
				r.removeStale(modLogger, r.cfg.DownsampledPath(mod))
				logging.ErrorWithContext(modLogger, "modality downsample failed", "modality_failed",
					logging.String(logging.FieldErrorHint, pipeerr.Hint(err)),
					logging.Error(err),
				)
			}
			report.Modalities = append(report.Modalities, outcome)
			r.record(ctx, modLogger, outcomeResult(StageDownsample, outcome, started))
		}
		if report.Written() == 0 {
			return pipeerr.Wrap(pipeerr.ErrNotFound, StageDownsample, "downsample tables",
				fmt.Sprintf("no concatenated tables found in %s", r.cfg.Paths.FeatureDir), firstError(report))
		}
		return nil
	})
	return report, err
}

// removeStale deletes a modality's output from an earlier invocation so the
// next stage sees the modality as absent.
func (r *Runner) removeStale(logger *slog.Logger, path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		logger.Info("removed output from earlier run",
			logging.String(logging.FieldEventType, "stale_output_removed"),
			logging.String("path", path),
		)
	case !errors.Is(err, fs.ErrNotExist):
		logging.WarnWithContext(logger, "failed to remove output from earlier run", "stale_output_remove_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next stage may read data from an earlier run"),
		)
	}
}

func (r *Runner) downsampleOne(input, mod string, stride int, delim rune, outcome *ModalityOutcome) error {
	long, err := readTable(input, delim, StageDownsample, mod)
	if err != nil {
		return err
	}
	outcome.RowsIn = long.Len()
	decimated, err := downsample.Decimate(long, stride)
	if err != nil {
		return err
	}
	outcome.RowsOut = decimated.Len()
	outcome.Path = r.cfg.DownsampledPath(mod)
	outcome.SHA256, err = decimated.WriteFile(outcome.Path, delim)
	if err != nil {
		return pipeerr.Wrap(pipeerr.ErrIO, StageDownsample, mod, fmt.Sprintf("write %s", outcome.Path), err)
	}
	return nil
}

// Align loads every configured modality's downsampled table, outer-joins
// them on (run_key, time_sec), labels each row against the event log and
// writes the unified labeled table atomically. A missing event log or the
// absence of any modality data aborts before anything is written.
func (r *Runner) Align(ctx context.Context) (*AlignReport, error) {
	report := &AlignReport{Path: r.cfg.UnifiedPath()}
	err := r.stage(ctx, StageAlign, func(ctx context.Context, logger *slog.Logger) error {
		started := time.Now().UTC()
		delim := r.cfg.DelimiterRune()

		eventLog, err := readTable(r.cfg.Paths.EventsFile, delim, StageAlign, "event log")
		if err != nil {
			return err
		}
		scope, parseOpts := r.eventOptions()
		intervals, parseStats, err := events.Parse(eventLog, parseOpts)
		report.Events = parseStats
		if err != nil {
			return err
		}
		if parseStats.BadNumbers > 0 || parseStats.NoRunKey > 0 {
			logging.WarnWithContext(logger, "seizure events dropped", "events_excluded",
				logging.Int("bad_numbers", parseStats.BadNumbers),
				logging.Int("no_run_key", parseStats.NoRunKey),
				logging.String(logging.FieldErrorHint, "check onset/duration values in the event log"),
			)
		}

		inputs := make([]align.Input, 0, len(r.cfg.Pipeline.Modalities))
		for _, mod := range r.cfg.Pipeline.Modalities {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := r.cfg.DownsampledPath(mod)
			in := align.Input{Modality: mod, Source: path}
			tbl, err := readTable(path, delim, StageAlign, mod)
			switch {
			case err == nil:
				in.Table = tbl
			case errors.Is(err, pipeerr.ErrNotFound):
				logger.Info("modality absent",
					logging.String(logging.FieldEventType, "modality_absent"),
					logging.String(logging.FieldModality, mod),
					logging.String("input", path),
				)
			default:
				in.Err = err
			}
			inputs = append(inputs, in)
		}

		result, err := align.Align(inputs, align.Options{
			Subject:         r.cfg.Pipeline.Subject,
			MetadataColumns: r.cfg.Schema.MetadataColumns,
		})
		if result != nil {
			report.Modalities = result.Reports
			r.logModalityReports(logger, result.Reports)
		}
		if err != nil {
			return err
		}

		labels, err := events.Label(result.Table, intervals, scope, align.RunKeyColumn, align.TimeColumn)
		report.Labels = labels
		if err != nil {
			return err
		}
		if scope == events.ScopeSubject && labels.Runs > 1 && labels.Intervals > 0 {
			logging.WarnWithContext(logger, "event intervals applied to every run of the subject", "subject_scope_multi_run",
				logging.Int("runs", labels.Runs),
				logging.String(logging.FieldErrorHint, "set pipeline.event_scope = \"run\" if runs have independent clocks"),
				logging.String(logging.FieldImpact, "runs sharing an absolute clock may be mislabeled"),
			)
		}
		logger.Info("label balance",
			logging.String(logging.FieldEventType, "label_balance"),
			logging.String("balance", labels.Balance.String()),
			logging.Int("intervals", labels.Intervals),
		)

		report.Rows = result.Table.Len()
		report.SHA256, err = result.Table.WriteFile(report.Path, delim)
		if err != nil {
			return pipeerr.Wrap(pipeerr.ErrIO, StageAlign, "write unified table", report.Path, err)
		}

		excluded := 0
		rowsIn := 0
		for _, rep := range result.Reports {
			excluded += rep.Exclusions.Total()
			rowsIn += rep.RowsIn
		}
		r.record(ctx, logger, history.StageResult{
			Stage:        StageAlign,
			Status:       history.StatusSucceeded,
			RowsIn:       rowsIn,
			RowsOut:      report.Rows,
			Excluded:     excluded,
			OutputPath:   report.Path,
			OutputSHA256: report.SHA256,
			Message:      "label balance " + labels.Balance.String(),
			StartedAt:    started,
		})
		logger.Info("unified table written",
			logging.String(logging.FieldEventType, "unified_written"),
			logging.Int("rows", report.Rows),
			logging.String("modalities", strings.Join(result.Modalities, ",")),
			logging.String("output", report.Path),
			logging.String("sha256", report.SHA256),
		)
		return nil
	})
	return report, err
}

func (r *Runner) eventOptions() (events.Scope, events.ParseOptions) {
	opts := events.ParseOptions{Prefix: r.cfg.Pipeline.SeizurePrefix}
	if r.cfg.Pipeline.EventScope == config.EventScopeRun {
		opts.RunColumn = r.cfg.Schema.EventRunColumn
		opts.RequireRun = true
		return events.ScopeRun, opts
	}
	return events.ScopeSubject, opts
}

func (r *Runner) logModalityReports(logger *slog.Logger, reports []align.ModalityReport) {
	for _, rep := range reports {
		modLogger := logger.With(logging.String(logging.FieldModality, rep.Modality))
		switch {
		case rep.Status == align.StatusFailed:
			logging.ErrorWithContext(modLogger, "modality rejected", "modality_failed",
				logging.String(logging.FieldErrorHint, pipeerr.Hint(rep.Err)),
				logging.Error(rep.Err),
			)
		case rep.Exclusions.Total() > 0:
			logging.WarnWithContext(modLogger, "rows excluded during alignment", "rows_excluded",
				logging.Int("rows_in", rep.RowsIn),
				logging.Int("rows_kept", rep.RowsKept),
				logging.Int("no_run_key", rep.Exclusions.NoRunKey),
				logging.Int("bad_time", rep.Exclusions.BadTime),
				logging.Int("duplicate_key", rep.Exclusions.Duplicate),
				logging.String(logging.FieldErrorHint, "check source_file names and time_sec values"),
			)
		default:
			modLogger.Debug("modality prepared",
				logging.String("status", rep.Status),
				logging.Int("rows_in", rep.RowsIn),
				logging.Int("rows_kept", rep.RowsKept),
				logging.Int("other_subject", rep.Exclusions.OtherSubject),
			)
		}
	}
}

// Summarize recovers seizure blocks from a labeled table. An empty input
// reads the configured unified output.
func (r *Runner) Summarize(ctx context.Context, input string) (*blocks.Report, error) {
	if strings.TrimSpace(input) == "" {
		input = r.cfg.UnifiedPath()
	}
	var report *blocks.Report
	err := r.stage(ctx, StageSummarize, func(ctx context.Context, logger *slog.Logger) error {
		started := time.Now().UTC()
		labeled, err := readTable(input, r.cfg.DelimiterRune(), StageSummarize, "labeled table")
		if err != nil {
			return err
		}
		report, err = blocks.Summarize(labeled, blocks.DefaultColumns())
		if err != nil {
			return err
		}
		for _, run := range report.Runs {
			if !run.Consistent() {
				logging.WarnWithContext(logger, "block bounds outside positive sample range", "block_inconsistent",
					logging.String("run_key", run.RunKey),
					logging.String(logging.FieldErrorHint, "check the unified table is sorted by run_key, time_sec"),
					logging.String(logging.FieldImpact, "block report may be wrong for this run"),
				)
			}
		}
		r.record(ctx, logger, history.StageResult{
			Stage:     StageSummarize,
			Status:    history.StatusSucceeded,
			RowsIn:    report.Rows,
			RowsOut:   len(report.Blocks()),
			Excluded:  report.BadTime + report.BadLabel,
			Message:   fmt.Sprintf("%d positive samples", report.Positives()),
			StartedAt: started,
		})
		logger.Info("blocks summarized",
			logging.String(logging.FieldEventType, "blocks_summarized"),
			logging.Int("runs", len(report.Runs)),
			logging.Int("blocks", len(report.Blocks())),
			logging.Int("positives", report.Positives()),
		)
		return nil
	})
	return report, err
}

// Run executes merge, downsample, align/label and summarize in order,
// stopping at the first stage that fails.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}
	var err error
	if report.Merge, err = r.Merge(ctx); err != nil {
		return report, err
	}
	if report.Downsample, err = r.Downsample(ctx, 0); err != nil {
		return report, err
	}
	if report.Align, err = r.Align(ctx); err != nil {
		return report, err
	}
	if report.Summary, err = r.Summarize(ctx, report.Align.Path); err != nil {
		return report, err
	}
	return report, nil
}

// AnnotateEvents copies an event log adding the integer decision column.
// Empty paths default to the configured event log and
// "<events>_annotated.csv" next to it.
func (r *Runner) AnnotateEvents(ctx context.Context, input, output string) (map[int]int, string, error) {
	if strings.TrimSpace(input) == "" {
		input = r.cfg.Paths.EventsFile
	}
	if strings.TrimSpace(output) == "" {
		output = strings.TrimSuffix(input, ".csv") + "_annotated.csv"
	}
	var counts map[int]int
	err := r.stage(ctx, "annotate", func(ctx context.Context, logger *slog.Logger) error {
		delim := r.cfg.DelimiterRune()
		eventLog, err := readTable(input, delim, "annotate", "event log")
		if err != nil {
			return err
		}
		counts, err = events.Annotate(eventLog, r.cfg.Pipeline.SeizurePrefix)
		if err != nil {
			return err
		}
		if _, err := eventLog.WriteFile(output, delim); err != nil {
			return pipeerr.Wrap(pipeerr.ErrIO, "annotate", "write annotated events", output, err)
		}
		logger.Info("events annotated",
			logging.String(logging.FieldEventType, "events_annotated"),
			logging.Int("seizure", counts[1]),
			logging.Int("other", counts[0]),
			logging.String("output", output),
		)
		return nil
	})
	return counts, output, err
}

// readTable maps a missing file to ErrNotFound and other failures to ErrIO.
func readTable(path string, delim rune, stage, what string) (*table.Table, error) {
	t, err := table.ReadFile(path, delim)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, pipeerr.Wrap(pipeerr.ErrNotFound, stage, what, fmt.Sprintf("%s does not exist", path), nil)
	case errors.Is(err, table.ErrEmpty):
		return nil, pipeerr.Wrap(pipeerr.ErrValidation, stage, what, fmt.Sprintf("%s has no header row", path), nil)
	default:
		return nil, pipeerr.Wrap(pipeerr.ErrIO, stage, what, fmt.Sprintf("read %s", path), err)
	}
}

func outcomeResult(stage string, o ModalityOutcome, started time.Time) history.StageResult {
	status := history.StatusSucceeded
	switch o.Outcome {
	case OutcomeSkipped:
		status = history.StatusSkipped
	case OutcomeFailed:
		status = history.StatusFailed
	}
	return history.StageResult{
		Stage:        stage,
		Modality:     o.Modality,
		Status:       status,
		RowsIn:       o.RowsIn,
		RowsOut:      o.RowsOut,
		OutputPath:   o.Path,
		OutputSHA256: o.SHA256,
		Message:      o.Message,
		StartedAt:    started,
	}
}

func firstError(report *StageReport) error {
	for _, m := range report.Modalities {
		if m.Err != nil {
			return m.Err
		}
	}
	return nil
}
