package score

import (
	"log/slog"

	"github.com/mchmarny/dietpulse/pkg/table"
)

// ReferenceSets groups the caller supplied factor categories.
type ReferenceSets struct {
	PlantBased  table.FactorSet
	AnimalBased table.FactorSet
	Processed   table.FactorSet
	Unprocessed table.FactorSet
	All         table.FactorSet
}

// Summary describes the score columns produced by Apply.
type Summary struct {
	Rows    int                `json:"rows" yaml:"rows"`
	Scored  int                `json:"scored" yaml:"scored"`
	Columns []string           `json:"columns" yaml:"columns"`
	Means   map[string]float64 `json:"means" yaml:"means"`
}

// Apply runs every scorer over a copy of t and returns it with a summary.
func Apply(t *table.Table, factorCol string, ref ReferenceSets, mode DiversityMode) (*table.Table, *Summary) {
	if factorCol == "" {
		factorCol = DefaultFactorColumn
	}

	out := ComputeProcessedDietScore(t, factorCol, ref.Processed, ref.Unprocessed)
	AddDietScores(out, factorCol, ref.PlantBased, ref.AnimalBased)
	AddDiversityScoreMode(out, factorCol, ref.All, mode)

	cols := []string{
		PlantBasedColumn,
		AnimalBasedColumn,
		ProcessedCountColumn,
		UnprocessedColumn,
		ProcessedScoreColumn,
		DiversityColumn,
	}

	s := &Summary{
		Rows:    out.Len(),
		Columns: cols,
		Means:   make(map[string]float64, len(cols)),
	}
	for i := 0; i < out.Len(); i++ {
		if _, ok := out.Get(i, factorCol).Factors(); ok {
			s.Scored++
		}
	}
	for _, c := range cols {
		s.Means[c] = mean(out.Column(c))
	}

	slog.Debug("scores applied", "rows", s.Rows, "scored", s.Scored)
	return out, s
}

func mean(vals []table.Value) float64 {
	var sum float64
	var n int
	for _, v := range vals {
		if f, ok := v.Float(); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
