package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"biolabel/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs and their stage results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if runID != "" {
				stages, err := store.StageResults(cmd.Context(), runID)
				if err != nil {
					return err
				}
				return emit(cmd, jsonOutput, stages, func(out io.Writer) error {
					if len(stages) == 0 {
						_, err := fmt.Fprintf(out, "No stage results for run %s\n", runID)
						return err
					}
					_, err := fmt.Fprintln(out, stageTable(stages))
					return err
				})
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return emit(cmd, jsonOutput, runs, func(out io.Writer) error {
				if len(runs) == 0 {
					_, err := fmt.Fprintln(out, "No runs recorded")
					return err
				}
				_, err := fmt.Fprintln(out, runTable(runs))
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show stage results for one run ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func runTable(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	failed := 0
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Millisecond).String()
		}
		if run.Status == history.StatusFailed {
			failed++
		}
		rows = append(rows, []string{
			run.ID,
			run.Command,
			run.Subject,
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			run.ErrorMessage,
		})
	}
	return tableView{
		headers: []string{"ID", "Command", "Subject", "Status", "Started", "Duration", "Error"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		rows:    rows,
		footer:  []string{fmt.Sprintf("%d runs", len(runs)), "", "", fmt.Sprintf("%d failed", failed)},
	}.render()
}

func stageTable(stages []history.StageResult) string {
	rows := make([][]string, 0, len(stages))
	for _, st := range stages {
		rows = append(rows, []string{
			st.Stage,
			st.Modality,
			string(st.Status),
			strconv.Itoa(st.RowsIn),
			strconv.Itoa(st.RowsOut),
			strconv.Itoa(st.Excluded),
			shortHash(st.OutputSHA256),
			st.Message,
		})
	}
	return tableView{
		headers: []string{"Stage", "Modality", "Status", "Rows in", "Rows out", "Excluded", "SHA-256", "Message"},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
		rows:    rows,
	}.render()
}

func shortHash(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
