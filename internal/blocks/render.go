package blocks

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// NoPositivesMessage is printed when no sample carries label 1.
const NoPositivesMessage = "No positive labels found."

// Render writes the block listing followed by a per-run aggregate table.
func Render(w io.Writer, r *Report) error {
	if r.Positives() == 0 {
		_, err := fmt.Fprintln(w, NoPositivesMessage)
		return err
	}
	for _, b := range r.Blocks() {
		if _, err := fmt.Fprintf(w, "%s: [%.3f, %.3f] (≈%.1fs)\n", b.RunKey, b.Start, b.End, b.ApproxDuration()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, aggregateTable(r))
	return err
}

func aggregateTable(r *Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", "Blocks", "Positives", "Min", "Max", "Mean dur", "Std dur"})
	for _, run := range r.Runs {
		tw.AppendRow(table.Row{
			run.RunKey,
			strconv.Itoa(len(run.Blocks)),
			strconv.Itoa(run.Positives),
			fmt.Sprintf("%.3f", run.MinTime),
			fmt.Sprintf("%.3f", run.MaxTime),
			fmt.Sprintf("%.2f", run.MeanDuration),
			fmt.Sprintf("%.2f", run.StdDuration),
		})
	}
	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignLeft}}
	for i := 2; i <= 7; i++ {
		configs = append(configs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// WriteJSON encodes the report with two-space indentation.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
