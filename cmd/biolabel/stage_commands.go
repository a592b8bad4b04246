package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"biolabel/internal/align"
	"biolabel/internal/blocks"
	"biolabel/internal/pipeline"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newMergeCommand(ctx),
		newDownsampleCommand(ctx),
		newAlignCommand(ctx),
		newSummarizeCommand(ctx),
		newRunCommand(ctx),
	}
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Concatenate each modality's window files into one long table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var report *pipeline.StageReport
				err := runner.Do(cmd.Context(), pipeline.StageMerge, func(runCtx context.Context) error {
					var stageErr error
					report, stageErr = runner.Merge(runCtx)
					return stageErr
				})
				printLines(cmd.OutOrStdout(), outcomeLines(report, shouldColorize(cmd.OutOrStdout())))
				return err
			})
		},
	}
}

func newDownsampleCommand(ctx *commandContext) *cobra.Command {
	var stride int
	cmd := &cobra.Command{
		Use:   "downsample",
		Short: "Keep every Nth row of each concatenated modality table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var report *pipeline.StageReport
				err := runner.Do(cmd.Context(), pipeline.StageDownsample, func(runCtx context.Context) error {
					var stageErr error
					report, stageErr = runner.Downsample(runCtx, stride)
					return stageErr
				})
				printLines(cmd.OutOrStdout(), outcomeLines(report, shouldColorize(cmd.OutOrStdout())))
				return err
			})
		},
	}
	cmd.Flags().IntVar(&stride, "stride", 0, "Rows to advance per kept row (default pipeline.stride)")
	return cmd
}

func newAlignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "align",
		Short: "Outer-join downsampled modalities on (run_key, time_sec) and label seizure samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var report *pipeline.AlignReport
				err := runner.Do(cmd.Context(), pipeline.StageAlign, func(runCtx context.Context) error {
					var stageErr error
					report, stageErr = runner.Align(runCtx)
					return stageErr
				})
				if err != nil {
					return err
				}
				printAlignReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
}

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	var input string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Report contiguous seizure blocks per run from the labeled table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var report *blocks.Report
				err := runner.Do(cmd.Context(), pipeline.StageSummarize, func(runCtx context.Context) error {
					var stageErr error
					report, stageErr = runner.Summarize(runCtx, input)
					return stageErr
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return blocks.WriteJSON(cmd.OutOrStdout(), report)
				}
				return blocks.Render(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Labeled table to summarize (default: configured unified output)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run merge, downsample, align/label and summarize in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var report *pipeline.RunReport
				err := runner.Do(cmd.Context(), "run", func(runCtx context.Context) error {
					var runErr error
					report, runErr = runner.Run(runCtx)
					return runErr
				})
				if jsonOutput && err == nil {
					return emit(cmd, true, report, nil)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if report != nil {
					printLines(out, outcomeLines(report.Merge, colorize))
					printLines(out, outcomeLines(report.Downsample, colorize))
					if report.Align != nil && err == nil {
						printAlignReport(out, report.Align, colorize)
					}
					if report.Summary != nil {
						fmt.Fprintln(out)
						if renderErr := blocks.Render(out, report.Summary); renderErr != nil && err == nil {
							err = renderErr
						}
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the stage reports as JSON")
	return cmd
}

func newAnnotateEventsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate-events [input] [output]",
		Short: "Copy the event log adding a decision column (1 = seizure)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input, output string
			if len(args) > 0 {
				input = args[0]
			}
			if len(args) > 1 {
				output = args[1]
			}
			return ctx.withRunner(func(runner *pipeline.Runner) error {
				var (
					counts  map[int]int
					written string
				)
				err := runner.Do(cmd.Context(), "annotate-events", func(runCtx context.Context) error {
					var stageErr error
					counts, written, stageErr = runner.AnnotateEvents(runCtx, input, output)
					return stageErr
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Wrote %s\n", written)
				fmt.Fprintf(out, "decision counts: 0=%d 1=%d\n", counts[0], counts[1])
				return nil
			})
		},
	}
}

func printAlignReport(out io.Writer, report *pipeline.AlignReport, colorize bool) {
	if report == nil {
		return
	}
	lines := []string{"align:"}
	var present []string
	for _, m := range report.Modalities {
		switch m.Status {
		case align.StatusAligned:
			present = append(present, m.Modality)
			detail := fmt.Sprintf("%d of %d rows kept", m.RowsKept, m.RowsIn)
			kind := statusOK
			if m.Exclusions.Total() > 0 {
				kind = statusWarn
				detail += fmt.Sprintf(" (no run key %d, bad time %d, duplicate %d)",
					m.Exclusions.NoRunKey, m.Exclusions.BadTime, m.Exclusions.Duplicate)
			}
			lines = append(lines, renderStatusLine(m.Modality, kind, detail, colorize))
		case align.StatusFailed:
			msg := "failed"
			if m.Err != nil {
				msg = m.Err.Error()
			}
			lines = append(lines, renderStatusLine(m.Modality, statusError, msg, colorize))
		default:
			lines = append(lines, renderStatusLine(m.Modality, statusInfo, "absent", colorize))
		}
	}
	lines = append(lines,
		fmt.Sprintf("Wrote %d rows (%s) to %s", report.Rows, strings.Join(present, ", "), report.Path),
		fmt.Sprintf("seizure intervals: %d (dropped %d non-numeric)", report.Labels.Intervals, report.Events.BadNumbers),
		fmt.Sprintf("label balance: %s", report.Labels.Balance.String()),
		fmt.Sprintf("sha256: %s", report.SHA256),
	)
	printLines(out, lines)
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
