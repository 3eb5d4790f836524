package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var ErrColumnMismatch = errors.New("row length does not match columns")

// Table is an in-memory dataset of rows and named columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    make([][]Value, 0),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	t.columns = append(t.columns, name)
	t.index[name] = len(t.columns) - 1
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], Missing)
	}
	return len(t.columns) - 1
}

// AddRow appends a row; the number of values must match the columns.
func (t *Table) AddRow(values ...Value) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrColumnMismatch, len(values), len(t.columns))
	}
	t.rows = append(t.rows, slices.Clone(values))
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the cell at row/col, missing when either is out of range.
func (t *Table) Get(row int, col string) Value {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.rows) {
		return Missing
	}
	return t.rows[row][i]
}

// Float coerces the cell at row/col to a number.
func (t *Table) Float(row int, col string) (float64, bool) {
	return t.Get(row, col).Float()
}

// Set writes a cell, adding the column when it does not exist yet.
func (t *Table) Set(row int, col string, v Value) {
	if row < 0 || row >= len(t.rows) {
		return
	}
	i := t.addColumn(col)
	t.rows[row][i] = v
}

// Column returns a copy of all values in col, nil when absent.
func (t *Table) Column(col string) []Value {
	i, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]Value, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out
}

// SetColumn replaces or appends col with values, one per row.
func (t *Table) SetColumn(col string, values []Value) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("%w: column %s has %d values for %d rows", ErrColumnMismatch, col, len(values), len(t.rows))
	}
	i := t.addColumn(col)
	for r := range t.rows {
		t.rows[r][i] = values[r]
	}
	return nil
}

// DropColumns removes the named columns; unknown names are ignored.
func (t *Table) DropColumns(cols ...string) {
	drop := make(map[int]bool)
	for _, c := range cols {
		if i, ok := t.index[c]; ok {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	keep := make([]int, 0, len(t.columns)-len(drop))
	for i := range t.columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}

	columns := make([]string, 0, len(keep))
	for _, i := range keep {
		columns = append(columns, t.columns[i])
	}
	for r, row := range t.rows {
		nr := make([]Value, 0, len(keep))
		for _, i := range keep {
			nr = append(nr, row[i])
		}
		t.rows[r] = nr
	}

	t.columns = columns
	t.index = make(map[string]int, len(columns))
	for i, c := range columns {
		t.index[c] = i
	}
}

// Copy returns a table with its own rows and columns. Factor sets are
// shared and must be treated as read-only.
func (t *Table) Copy() *Table {
	c := &Table{
		columns: slices.Clone(t.columns),
		index:   make(map[string]int, len(t.index)),
		rows:    make([][]Value, len(t.rows)),
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	for i, row := range t.rows {
		c.rows[i] = slices.Clone(row)
	}
	return c
}

type tableJSON struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Columns: t.columns, Rows: t.rows})
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var tj tableJSON
	if err := json.Unmarshal(b, &tj); err != nil {
		return fmt.Errorf("decoding table: %w", err)
	}
	nt := New(tj.Columns...)
	if len(nt.columns) != len(tj.Columns) {
		return fmt.Errorf("duplicate column names: %v", tj.Columns)
	}
	for i, row := range tj.Rows {
		if err := nt.AddRow(row...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	*t = *nt
	return nil
}
