// Package column applies an operation to every cell of one column of a
// table, computing each distinct value once.
package column

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrColumnExists   = errors.New("column already exists")
)

// Table is a header plus rows of cells. Rows shorter than the header are
// treated as having empty trailing cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV parses a table whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("read csv: missing header")
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// WriteCSV writes the header and rows, padding short rows.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(t.pad(row)); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Index returns the position of the named column.
func (t *Table) Index(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// Cell returns the value at row, col or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Column returns every cell of col in row order.
func (t *Table) Column(col int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, col)
	}
	return out
}

// InsertColumn adds a column named name right after position after.
func (t *Table) InsertColumn(after int, name string, values []string) error {
	if _, err := t.Index(name); err == nil {
		return fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(values) != len(t.Rows) {
		return fmt.Errorf("insert column %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	at := after + 1
	width := len(t.Header)
	for i, row := range t.Rows {
		t.Rows[i] = insertAt(padTo(row, width), at, values[i])
	}
	t.Header = insertAt(t.Header, at, name)
	return nil
}

// SetColumn overwrites every cell of col.
func (t *Table) SetColumn(col int, values []string) {
	for i, row := range t.Rows {
		row = t.pad(row)
		row[col] = values[i]
		t.Rows[i] = row
	}
}

func (t *Table) pad(row []string) []string { return padTo(row, len(t.Header)) }

func padTo(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func insertAt(s []string, at int, v string) []string {
	s = append(s, "")
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}
