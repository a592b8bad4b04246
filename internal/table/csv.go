package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"biolabel/internal/fileutil"
)

// ErrEmpty is returned when a delimited file has no header row.
var ErrEmpty = errors.New("no header row")

// Read parses a delimited table whose first record is the header.
func Read(r io.Reader, delimiter rune) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = delimiter
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t, err := newTable(header)
	if err != nil {
		return nil, err
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// ReadFile opens and parses a delimited table.
func ReadFile(path string, delimiter rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f, delimiter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Write serializes the header and every row.
func (t *Table) Write(w io.Writer, delimiter rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter
	if err := writer.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes the table to path atomically and returns the SHA-256 of
// the written bytes. A partially written table is never left at path.
func (t *Table) WriteFile(path string, delimiter rune) (string, error) {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		buffered := bufio.NewWriter(w)
		if err := t.Write(buffered, delimiter); err != nil {
			return err
		}
		return buffered.Flush()
	})
}
