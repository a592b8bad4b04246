package align

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"biolabel/internal/pipeerr"
	"biolabel/internal/runkey"
	"biolabel/internal/table"
)

// Column names of the aligned table's key.
const (
	RunKeyColumn = "run_key"
	TimeColumn   = "time_sec"
	SourceColumn = "source_file"
)

const stageName = "align"

// Input is one modality's long table. A nil Table marks the modality as
// absent, unless Err is set: then the table could not be loaded and the
// modality fails on its own.
type Input struct {
	Modality string
	Table    *table.Table
	// Source names where Table was loaded from, for error messages.
	Source string
	Err    error
}

// Options controls row selection and column classification.
type Options struct {
	// Subject keeps only rows whose source file starts with "<subject>_".
	// Empty keeps every subject.
	Subject string
	// MetadataColumns are never prefixed as signal channels. Metadata other
	// than source_file and time_sec is dropped from the aligned table.
	MetadataColumns []string
}

// Exclusions counts rows dropped while preparing one modality.
type Exclusions struct {
	OtherSubject int `json:"other_subject"`
	NoRunKey     int `json:"no_run_key"`
	BadTime      int `json:"bad_time"`
	Duplicate    int `json:"duplicate_key"`
}

// Total is the number of rows dropped for any reason other than subject filtering.
func (e Exclusions) Total() int {
	return e.NoRunKey + e.BadTime + e.Duplicate
}

// Modality outcomes.
const (
	StatusAligned = "aligned"
	StatusAbsent  = "absent"
	StatusFailed  = "failed"
)

// ModalityReport describes what happened to one input.
type ModalityReport struct {
	Modality   string     `json:"modality"`
	Status     string     `json:"status"`
	RowsIn     int        `json:"rows_in"`
	RowsKept   int        `json:"rows_kept"`
	Exclusions Exclusions `json:"exclusions"`
	Err        error      `json:"-"`
}

// Result is the aligned table plus per-modality accounting.
type Result struct {
	// Table has columns run_key, time_sec, each present modality's
	// {modality}_source_file, then each present modality's prefixed signal
	// columns. Rows are unique per (run_key, time_sec), sorted ascending.
	Table      *table.Table
	Modalities []string
	Reports    []ModalityReport
}

type key struct {
	run  string
	time float64
}

type prepared struct {
	modality string
	source   string
	signals  []string
	rows     map[key][]string
}

// Align outer-joins the inputs on (run_key, time_sec). The union of keys over
// all modalities is built first and every modality is projected onto it, so a
// key present in any input yields exactly one output row and modalities
// without data at that key are left table.Missing.
//
// An input missing source_file or time_sec fails on its own and the remaining
// modalities still align. Align errors when no modality contributes rows.
func Align(inputs []Input, opts Options) (*Result, error) {
	meta := make(map[string]struct{}, len(opts.MetadataColumns)+3)
	for _, col := range opts.MetadataColumns {
		meta[col] = struct{}{}
	}
	meta[SourceColumn] = struct{}{}
	meta[TimeColumn] = struct{}{}
	meta[RunKeyColumn] = struct{}{}

	result := &Result{}
	var mods []*prepared
	var failures []error
	seenModality := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if _, dup := seenModality[in.Modality]; dup {
			return nil, pipeerr.Wrap(pipeerr.ErrValidation, stageName, in.Modality, "modality supplied more than once", nil)
		}
		seenModality[in.Modality] = struct{}{}

		report := ModalityReport{Modality: in.Modality, Status: StatusAbsent}
		if in.Err != nil {
			report.Status = StatusFailed
			report.Err = in.Err
			failures = append(failures, in.Err)
			result.Reports = append(result.Reports, report)
			continue
		}
		if in.Table == nil {
			result.Reports = append(result.Reports, report)
			continue
		}
		report.RowsIn = in.Table.Len()
		p, err := prepare(in, meta, opts.Subject, &report.Exclusions)
		if err != nil {
			report.Status = StatusFailed
			report.Err = err
			failures = append(failures, err)
			result.Reports = append(result.Reports, report)
			continue
		}
		report.RowsKept = len(p.rows)
		if report.RowsKept > 0 {
			report.Status = StatusAligned
			mods = append(mods, p)
			result.Modalities = append(result.Modalities, in.Modality)
		}
		result.Reports = append(result.Reports, report)
	}

	if len(mods) == 0 {
		subject := opts.Subject
		if subject == "" {
			subject = "any subject"
		}
		if len(failures) > 0 {
			return result, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "load modalities", "every modality table failed to load", errors.Join(failures...))
		}
		return result, pipeerr.Wrap(pipeerr.ErrNotFound, stageName, "load modalities", fmt.Sprintf("no rows for %s in any modality table", subject), nil)
	}

	result.Table = join(mods)
	return result, nil
}

func prepare(in Input, meta map[string]struct{}, subject string, excl *Exclusions) (*prepared, error) {
	t := in.Table
	srcIdx, okSrc := t.Index(SourceColumn)
	timeIdx, okTime := t.Index(TimeColumn)
	if !okSrc || !okTime {
		where := in.Source
		if where == "" {
			where = in.Modality + " table"
		}
		return nil, pipeerr.Wrap(pipeerr.ErrValidation, stageName, "load "+in.Modality,
			fmt.Sprintf("%s must contain columns %s and %s", where, SourceColumn, TimeColumn), nil)
	}

	p := &prepared{
		modality: in.Modality,
		source:   in.Modality + "_" + SourceColumn,
		rows:     make(map[key][]string, t.Len()),
	}
	var signalIdx []int
	for i, col := range t.Columns() {
		if _, isMeta := meta[col]; isMeta {
			continue
		}
		p.signals = append(p.signals, in.Modality+"_"+col)
		signalIdx = append(signalIdx, i)
	}

	runCache := make(map[string]string)
	for r := 0; r < t.Len(); r++ {
		row := t.Row(r)
		source := row[srcIdx]
		if !runkey.BelongsTo(source, subject) {
			excl.OtherSubject++
			continue
		}
		run, cached := runCache[source]
		if !cached {
			run, _ = runkey.ParseString(source)
			runCache[source] = run
		}
		if run == "" {
			excl.NoRunKey++
			continue
		}
		ts, ok := table.ParseFloat(row[timeIdx])
		if !ok {
			excl.BadTime++
			continue
		}
		k := key{run: run, time: ts}
		if _, dup := p.rows[k]; dup {
			excl.Duplicate++
			continue
		}
		values := make([]string, 0, len(signalIdx)+1)
		values = append(values, source)
		for _, idx := range signalIdx {
			values = append(values, row[idx])
		}
		p.rows[k] = values
	}
	return p, nil
}

func join(mods []*prepared) *table.Table {
	columns := []string{RunKeyColumn, TimeColumn}
	for _, m := range mods {
		columns = append(columns, m.source)
	}
	for _, m := range mods {
		columns = append(columns, m.signals...)
	}

	union := make(map[key]struct{})
	for _, m := range mods {
		for k := range m.rows {
			union[k] = struct{}{}
		}
	}
	keys := make([]key, 0, len(union))
	for k := range union {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if c := cmp.Compare(a.run, b.run); c != 0 {
			return c
		}
		return cmp.Compare(a.time, b.time)
	})

	out := table.New(columns...)
	sourceAt := 2
	signalAt := 2 + len(mods)
	for _, k := range keys {
		row := make([]string, len(columns))
		row[0] = k.run
		row[1] = table.FormatFloat(k.time)
		sigPos := signalAt
		for i, m := range mods {
			values, ok := m.rows[k]
			if ok {
				row[sourceAt+i] = values[0]
				copy(row[sigPos:sigPos+len(m.signals)], values[1:])
			}
			sigPos += len(m.signals)
		}
		// widths always match columns
		_ = out.Append(row)
	}
	return out
}
