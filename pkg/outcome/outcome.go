// Package outcome normalizes mental-health outcome columns to proportions.
package outcome

import (
	"log/slog"

	"github.com/mchmarny/dietpulse/pkg/table"
)

const (
	maxPercent    = 100
	maxProportion = 1
)

// DefaultColumns are the outcome columns of the reference dataset.
var DefaultColumns = []string{
	"schizophrenia",
	"bipolar",
	"eating_disorder",
	"anxiety",
	"drug_use",
	"depression",
	"alcohol_use",
}

// Result reports what NormalizeOutcomeColumns did.
type Result struct {
	Normalized []string       `json:"normalized" yaml:"normalized"`
	Skipped    []string       `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Invalid    map[string]int `json:"invalid,omitempty" yaml:"invalid,omitempty"`
	Converted  map[string]int `json:"converted,omitempty" yaml:"converted,omitempty"`
}

// NormalizeValue maps a raw outcome to a proportion. Values above 100 are
// raw counts and negatives are errors, both reported as not ok. Values in
// (1, 100] are percentages. A value of exactly 1 stays a proportion.
func NormalizeValue(v float64) (float64, bool) {
	switch {
	case v > maxPercent:
		return 0, false
	case v > maxProportion:
		return v / maxPercent, true
	case v < 0:
		return 0, false
	default:
		return v, true
	}
}

// NormalizeOutcomeColumns returns a copy of t where every column in cols is
// numeric and expressed as a proportion. Columns not in t are skipped.
func NormalizeOutcomeColumns(t *table.Table, cols []string) (*table.Table, *Result) {
	out := t.Copy()
	res := &Result{
		Normalized: make([]string, 0, len(cols)),
		Invalid:    make(map[string]int),
		Converted:  make(map[string]int),
	}

	for _, col := range cols {
		if !out.HasColumn(col) {
			slog.Warn("column not found, skipping", "column", col)
			res.Skipped = append(res.Skipped, col)
			continue
		}

		vals := out.Column(col)
		for i, v := range vals {
			f, ok := v.Float()
			if !ok {
				if !v.IsMissing() {
					res.Invalid[col]++
				}
				vals[i] = table.Missing
				continue
			}
			n, ok := NormalizeValue(f)
			if !ok {
				res.Invalid[col]++
				vals[i] = table.Missing
				continue
			}
			if n != f {
				res.Converted[col]++
			}
			vals[i] = table.Number(n)
		}

		if err := out.SetColumn(col, vals); err != nil {
			slog.Error("failed to set outcome column", "column", col, "error", err)
			continue
		}
		res.Normalized = append(res.Normalized, col)
	}

	return out, res
}
