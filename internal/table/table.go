package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Missing is the cell value written for a column with no data at a row,
// e.g. a modality absent at a timestamp after an outer join.
const Missing = ""

// Table is an in-memory, row-major table of text cells with named columns.
// Column names are unique. Cells keep their source text so re-serializing an
// unchanged table reproduces the original values byte for byte.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New returns an empty table with the given columns. It panics on duplicate
// column names, which indicates a programming error in the caller.
func New(columns ...string) *Table {
	t, err := newTable(columns)
	if err != nil {
		panic(err)
	}
	return t
}

func newTable(columns []string) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, name := range t.columns {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		t.index[name] = i
	}
	return t, nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Width is the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Index returns the position of a column.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Row returns row i. The slice is shared with the table; callers must not modify it.
func (t *Table) Row(i int) []string { return t.rows[i] }

// Cell returns the value at row i for the named column, or Missing when the
// column does not exist.
func (t *Table) Cell(i int, column string) string {
	j, ok := t.index[column]
	if !ok {
		return Missing
	}
	return t.rows[i][j]
}

// Append adds a row. The row must have exactly one value per column.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.columns))
	}
	t.rows = append(t.rows, row)
	return nil
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]string, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, true
}

// InsertColumn inserts a column at position pos (0 <= pos <= Width) with one
// value per row. If the column already exists it is replaced in place and pos
// is ignored.
func (t *Table) InsertColumn(pos int, name string, values []string) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.rows))
	}
	if j, ok := t.index[name]; ok {
		for i, row := range t.rows {
			row[j] = values[i]
		}
		return nil
	}
	if pos < 0 || pos > len(t.columns) {
		return fmt.Errorf("insert column %q: position %d out of range", name, pos)
	}
	t.columns = slices.Insert(t.columns, pos, name)
	for i, row := range t.rows {
		t.rows[i] = slices.Insert(row, pos, values[i])
	}
	t.reindex()
	return nil
}

// Select returns a new table with rows [keep[0], keep[1], ...] in that order.
func (t *Table) Select(keep []int) *Table {
	out := &Table{columns: t.Columns(), index: make(map[string]int, len(t.columns))}
	for name, i := range t.index {
		out.index[name] = i
	}
	out.rows = make([][]string, 0, len(keep))
	for _, i := range keep {
		out.rows = append(out.rows, append([]string(nil), t.rows[i]...))
	}
	return out
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, name := range t.columns {
		t.index[name] = i
	}
}

// ParseFloat coerces a cell to a number. Blank cells, NaN and unparsable text
// report ok=false; callers drop such rows rather than fail.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// FormatFloat renders a number in the shortest form that round-trips.
func FormatFloat(v float64) string {
	if v == 0 {
		// normalizes -0
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
