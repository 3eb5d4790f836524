// Package missing profiles where a dataset has no values.
package missing

import (
	"github.com/mchmarny/dietpulse/pkg/correlate"
	"github.com/mchmarny/dietpulse/pkg/table"
)

const hundredPercent = 100

// ColumnNulls is the missing value count and share of one column.
type ColumnNulls struct {
	Column  string  `json:"column" yaml:"column"`
	Missing int     `json:"missing" yaml:"missing"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Profile returns the missing values per column, in column order.
func Profile(t *table.Table) []*ColumnNulls {
	cols := t.Columns()
	list := make([]*ColumnNulls, 0, len(cols))
	for _, c := range cols {
		n := 0
		for _, v := range t.Column(c) {
			if v.IsMissing() {
				n++
			}
		}
		cn := &ColumnNulls{Column: c, Missing: n}
		if t.Len() > 0 {
			cn.Percent = float64(n) / float64(t.Len()) * hundredPercent
		}
		list = append(list, cn)
	}
	return list
}

// Grid is the nullity matrix of a table: Cells[row][col] is true when the
// value is missing.
type Grid struct {
	Columns []string `json:"columns" yaml:"columns"`
	Cells   [][]bool `json:"cells" yaml:"cells"`
}

func Matrix(t *table.Table) *Grid {
	cols := t.Columns()
	g := &Grid{
		Columns: cols,
		Cells:   make([][]bool, t.Len()),
	}
	for i := 0; i < t.Len(); i++ {
		row := make([]bool, len(cols))
		for j, c := range cols {
			row[j] = t.Get(i, c).IsMissing()
		}
		g.Cells[i] = row
	}
	return g
}

// CorrMatrix is a symmetric correlation matrix between columns.
type CorrMatrix struct {
	Columns []string                  `json:"columns" yaml:"columns"`
	Values  [][]correlate.Coefficient `json:"values" yaml:"values"`
}

// NullityCorrelation correlates the missingness of columns with each
// other. Columns that are never or always missing carry no signal and are
// left out.
func NullityCorrelation(t *table.Table) *CorrMatrix {
	grid := Matrix(t)

	cols := make([]string, 0, len(grid.Columns))
	series := make([][]float64, 0, len(grid.Columns))
	for j, c := range grid.Columns {
		s := make([]float64, len(grid.Cells))
		n := 0
		for i, row := range grid.Cells {
			if row[j] {
				s[i] = 1
				n++
			}
		}
		if n == 0 || n == len(grid.Cells) {
			continue
		}
		cols = append(cols, c)
		series = append(series, s)
	}

	m := &CorrMatrix{
		Columns: cols,
		Values:  make([][]correlate.Coefficient, len(cols)),
	}
	for a := range cols {
		m.Values[a] = make([]correlate.Coefficient, len(cols))
		for b := range cols {
			if a == b {
				m.Values[a][b] = 1
				continue
			}
			r, _ := correlate.Pearson(series[a], series[b])
			m.Values[a][b] = correlate.Coefficient(r)
		}
	}
	return m
}
