// Package windows concatenates the per-window tables of one modality into a
// single long table tagged with each row's originating file.
package windows

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"biolabel/internal/pipeerr"
	"biolabel/internal/table"
)

// SourceColumn is the identity column prepended to every merged row.
const SourceColumn = "source_file"

const stageName = "merge"

// Stats describes one merge.
type Stats struct {
	Modality string
	Files    []string
	Rows     int
}

// Matches reports whether a file name is a window table of modality: a .csv
// name containing the modality tag delimited by underscores ("_eeg_").
func Matches(name, modality string) bool {
	return strings.HasSuffix(name, ".csv") && strings.Contains(name, "_"+modality+"_")
}

// List returns the window files for modality in dir, sorted by name. The
// upstream windowing step zero-pads window indices so lexicographic order is
// window order.
func List(dir, modality string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		marker := pipeerr.ErrIO
		if errors.Is(err, fs.ErrNotExist) {
			marker = pipeerr.ErrNotFound
		}
		return nil, pipeerr.Wrap(marker, stageName, "list windows", fmt.Sprintf("read window directory %s", dir), err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if Matches(entry.Name(), modality) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Merge reads every window table for modality in dir and concatenates them in
// file-name order with a leading source_file column. Columns are the union of
// the window headers in first-seen order; a window lacking a column gets
// table.Missing there. It fails with pipeerr.ErrNotFound when no file matches.
func Merge(dir, modality string, delimiter rune) (*table.Table, Stats, error) {
	stats := Stats{Modality: modality}
	names, err := List(dir, modality)
	if err != nil {
		return nil, stats, err
	}
	if len(names) == 0 {
		return nil, stats, pipeerr.Wrap(pipeerr.ErrNotFound, stageName, modality, fmt.Sprintf("no %s window files in %s", modality, dir), nil)
	}

	windows := make([]*table.Table, 0, len(names))
	columns := []string{SourceColumn}
	seen := map[string]struct{}{SourceColumn: {}}
	for _, name := range names {
		w, err := table.ReadFile(filepath.Join(dir, name), delimiter)
		if err != nil {
			return nil, stats, pipeerr.Wrap(pipeerr.ErrIO, stageName, modality, fmt.Sprintf("read window %s", name), err)
		}
		if w.Has(SourceColumn) {
			return nil, stats, pipeerr.Wrap(pipeerr.ErrValidation, stageName, modality, fmt.Sprintf("window %s already has a %s column", name, SourceColumn), nil)
		}
		for _, col := range w.Columns() {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			columns = append(columns, col)
		}
		windows = append(windows, w)
	}

	merged := table.New(columns...)
	for i, w := range windows {
		positions := make([]int, len(columns))
		for j, col := range columns {
			positions[j] = -1
			if idx, ok := w.Index(col); ok {
				positions[j] = idx
			}
		}
		for r := 0; r < w.Len(); r++ {
			src := w.Row(r)
			row := make([]string, len(columns))
			row[0] = names[i]
			for j := 1; j < len(columns); j++ {
				if positions[j] >= 0 {
					row[j] = src[positions[j]]
				}
			}
			if err := merged.Append(row); err != nil {
				return nil, stats, err
			}
		}
	}

	stats.Files = names
	stats.Rows = merged.Len()
	return merged, stats, nil
}
