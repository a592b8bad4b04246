package blocks

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"biolabel/internal/pipeerr"
	"biolabel/internal/table"
)

const stageName = "summarize"

// Columns names the fields Summarize reads.
type Columns struct {
	Run   string
	Time  string
	Label string
}

// DefaultColumns matches the unified labeled table.
func DefaultColumns() Columns {
	return Columns{Run: "run_key", Time: "time_sec", Label: "label"}
}

// Block is a maximal contiguous stretch of label 1 samples within one run.
// Start is the first positive sample's time and End the last positive
// sample's time.
type Block struct {
	RunKey string  `json:"run_key"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// Duration is End - Start.
func (b Block) Duration() float64 { return b.End - b.Start }

// ApproxDuration truncates the duration to one decimal place.
func (b Block) ApproxDuration() float64 { return ApproxDuration(b.Start, b.End) }

// ApproxDuration truncates end-start to one decimal place.
func ApproxDuration(start, end float64) float64 {
	return math.Trunc((end-start)*10) / 10
}

// RunSummary carries one run's blocks plus aggregates over its positive
// samples, computed independently of block recovery.
type RunSummary struct {
	RunKey    string  `json:"run_key"`
	Blocks    []Block `json:"blocks"`
	Positives int     `json:"positives"`
	// MinTime and MaxTime bracket every positive sample; zero when Positives is 0.
	MinTime float64 `json:"min_time"`
	MaxTime float64 `json:"max_time"`
	// Samples counts rows of the run that carried a usable label.
	Samples      int     `json:"samples"`
	MeanDuration float64 `json:"mean_duration"`
	StdDuration  float64 `json:"std_duration"`
}

// Consistent reports whether every block is ordered and MinTime/MaxTime
// bracket it. A false value points at a labeling fault upstream.
func (r RunSummary) Consistent() bool {
	for _, b := range r.Blocks {
		if b.Start > b.End || b.Start < r.MinTime || b.End > r.MaxTime {
			return false
		}
	}
	return true
}

// Report is the result of Summarize over a whole table.
type Report struct {
	Runs     []RunSummary `json:"runs"`
	Rows     int          `json:"rows"`
	BadTime  int          `json:"bad_time"`
	BadLabel int          `json:"bad_label"`
}

// Blocks flattens every run's blocks in report order.
func (r *Report) Blocks() []Block {
	var out []Block
	for _, run := range r.Runs {
		out = append(out, run.Blocks...)
	}
	return out
}

// Positives is the number of label 1 samples across all runs.
func (r *Report) Positives() int {
	n := 0
	for _, run := range r.Runs {
		n += run.Positives
	}
	return n
}

type sample struct {
	t     float64
	label int
}

// Summarize recovers contiguous label 1 blocks per run in a single linear
// pass over each run's rows after a stable sort by time. A block
// opens at the first positive row and closes at the previous row's time when
// the label drops to 0, or at the last row's time when the run ends inside
// it. Rows with an unparsable time or a label other than 0 or 1 are skipped
// and counted.
func Summarize(t *table.Table, cols Columns) (*Report, error) {
	var idx [3]int
	for i, name := range []string{cols.Run, cols.Time, cols.Label} {
		j, ok := t.Index(name)
		if !ok {
			return nil, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "summarize blocks", fmt.Sprintf("labeled table has no %s column", name), nil)
		}
		idx[i] = j
	}
	runIdx, timeIdx, labelIdx := idx[0], idx[1], idx[2]

	report := &Report{Rows: t.Len()}
	var order []string
	byRun := map[string][]sample{}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		ts, ok := table.ParseFloat(row[timeIdx])
		if !ok {
			report.BadTime++
			continue
		}
		lv, ok := table.ParseFloat(row[labelIdx])
		if !ok || (lv != 0 && lv != 1) {
			report.BadLabel++
			continue
		}
		run := row[runIdx]
		if _, seen := byRun[run]; !seen {
			order = append(order, run)
		}
		byRun[run] = append(byRun[run], sample{t: ts, label: int(lv)})
	}
	slices.Sort(order)

	for _, run := range order {
		samples := byRun[run]
		slices.SortStableFunc(samples, func(a, b sample) int { return cmp.Compare(a.t, b.t) })
		report.Runs = append(report.Runs, summarizeRun(run, samples))
	}
	return report, nil
}

func summarizeRun(run string, samples []sample) RunSummary {
	summary := RunSummary{RunKey: run, Samples: len(samples)}
	var positives []float64
	inBlock := false
	var start, prev float64
	for i, s := range samples {
		switch {
		case s.label == 1 && !inBlock:
			inBlock = true
			start = s.t
		case s.label == 0 && inBlock:
			inBlock = false
			summary.Blocks = append(summary.Blocks, Block{RunKey: run, Start: start, End: prev})
		}
		if s.label == 1 {
			positives = append(positives, s.t)
		}
		prev = s.t
		if i == len(samples)-1 && inBlock {
			summary.Blocks = append(summary.Blocks, Block{RunKey: run, Start: start, End: s.t})
		}
	}

	summary.Positives = len(positives)
	if len(positives) > 0 {
		summary.MinTime = floats.Min(positives)
		summary.MaxTime = floats.Max(positives)
	}
	if n := len(summary.Blocks); n > 0 {
		durations := make([]float64, n)
		for i, b := range summary.Blocks {
			durations[i] = b.Duration()
		}
		if n < 2 {
			summary.MeanDuration = durations[0]
		} else {
			summary.MeanDuration, summary.StdDuration = stat.MeanStdDev(durations, nil)
		}
	}
	return summary
}
