package events

import (
	"fmt"
	"sort"

	"biolabel/internal/pipeerr"
	"biolabel/internal/table"
)

// LabelColumn holds the binary seizure indicator in the unified table.
const LabelColumn = "label"

// Scope selects how event intervals are associated with aligned rows.
type Scope int

const (
	// ScopeSubject applies every interval to every run of the subject.
	ScopeSubject Scope = iota
	// ScopeRun applies an interval only to rows of the run named on its event.
	ScopeRun
)

// Balance counts rows per label value.
type Balance map[int]int

// String renders "0=N 1=M".
func (b Balance) String() string {
	keys := make([]int, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%d=%d", k, b[k])
	}
	return out
}

// LabelResult summarizes a labeling pass.
type LabelResult struct {
	Balance   Balance `json:"balance"`
	Intervals int     `json:"intervals"`
	// BadTime counts rows whose time_sec did not parse; they are labeled 0.
	BadTime int `json:"bad_time"`
	// Runs is the number of distinct run keys in the table.
	Runs int `json:"runs"`
}

// Label inserts a label column right after time_sec. A row is 1 iff its
// time_sec lies in at least one event interval under the half-open rule, else
// 0. With no usable intervals every row is 0.
func Label(t *table.Table, evs []Event, scope Scope, runColumn, timeColumn string) (LabelResult, error) {
	timeIdx, ok := t.Index(timeColumn)
	if !ok {
		return LabelResult{}, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "label rows", fmt.Sprintf("aligned table has no %s column", timeColumn), nil)
	}
	runIdx, hasRun := t.Index(runColumn)
	if scope == ScopeRun && !hasRun {
		return LabelResult{}, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "label rows", fmt.Sprintf("aligned table has no %s column", runColumn), nil)
	}

	result := LabelResult{Balance: Balance{0: 0, 1: 0}}
	values := make([]string, t.Len())
	runs := make(map[string]struct{})
	if hasRun {
		for i := 0; i < t.Len(); i++ {
			runs[t.Row(i)[runIdx]] = struct{}{}
		}
	}
	result.Runs = len(runs)

	var global *Set
	perRun := map[string]*Set{}
	switch scope {
	case ScopeRun:
		grouped := map[string][]Interval{}
		for _, ev := range evs {
			grouped[ev.RunKey] = append(grouped[ev.RunKey], ev.Interval)
		}
		for run, ivs := range grouped {
			set := NewSet(ivs)
			perRun[run] = set
			result.Intervals += set.Len()
		}
	default:
		ivs := make([]Interval, 0, len(evs))
		for _, ev := range evs {
			ivs = append(ivs, ev.Interval)
		}
		global = NewSet(ivs)
		result.Intervals = global.Len()
	}

	if result.Intervals == 0 {
		for i := range values {
			values[i] = "0"
		}
		result.Balance[0] = len(values)
		return result, insertLabel(t, timeIdx, values)
	}

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		ts, ok := table.ParseFloat(row[timeIdx])
		if !ok {
			result.BadTime++
			values[i] = "0"
			result.Balance[0]++
			continue
		}
		set := global
		if scope == ScopeRun {
			set = perRun[row[runIdx]]
		}
		if set.Contains(ts) {
			values[i] = "1"
			result.Balance[1]++
		} else {
			values[i] = "0"
			result.Balance[0]++
		}
	}
	return result, insertLabel(t, timeIdx, values)
}

func insertLabel(t *table.Table, timeIdx int, values []string) error {
	return t.InsertColumn(timeIdx+1, LabelColumn, values)
}
