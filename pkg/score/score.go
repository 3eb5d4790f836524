// Package score derives diet composition scores from per-record factor sets.
package score

import (
	"log/slog"

	"github.com/mchmarny/dietpulse/pkg/table"
)

const (
	DefaultFactorColumn = "factor_set"

	PlantBasedColumn     = "plant_based_score"
	AnimalBasedColumn    = "animal_based_score"
	ProcessedCountColumn = "processed_count"
	UnprocessedColumn    = "unprocessed_count"
	ProcessedScoreColumn = "processed_diet_score"
	DiversityColumn      = "diversity_score"
)

// DietScores is the plant/animal share of one record's factors.
type DietScores struct {
	PlantBased  float64 `json:"plant_based_score" yaml:"plant_based_score"`
	AnimalBased float64 `json:"animal_based_score" yaml:"animal_based_score"`
}

// ScoreDiet computes the share of each reference set present in factors.
// When ok is false (the record has no factor set) both scores are 0.
func ScoreDiet(factors table.FactorSet, ok bool, plant, animal table.FactorSet) DietScores {
	if !ok {
		return DietScores{}
	}
	return DietScores{
		PlantBased:  ratio(factors.Intersect(plant), plant.Len()),
		AnimalBased: ratio(factors.Intersect(animal), animal.Len()),
	}
}

// AddDietScores appends plant_based_score and animal_based_score to t in place.
func AddDietScores(t *table.Table, factorCol string, plant, animal table.FactorSet) *table.Table {
	warnIfMissing(t, factorCol)

	plants := make([]table.Value, t.Len())
	animals := make([]table.Value, t.Len())
	for i := 0; i < t.Len(); i++ {
		fs, ok := t.Get(i, factorCol).Factors()
		s := ScoreDiet(fs, ok, plant, animal)
		plants[i] = table.Number(s.PlantBased)
		animals[i] = table.Number(s.AnimalBased)
	}

	setColumn(t, PlantBasedColumn, plants)
	setColumn(t, AnimalBasedColumn, animals)
	return t
}

// ProcessedCounts holds how many of a record's factors are processed and
// unprocessed. A factor in both reference sets counts in both.
type ProcessedCounts struct {
	Processed   int `json:"processed_count" yaml:"processed_count"`
	Unprocessed int `json:"unprocessed_count" yaml:"unprocessed_count"`
}

// Score is the unprocessed share, 0 when nothing was counted.
func (c ProcessedCounts) Score() float64 {
	return ratio(c.Unprocessed, c.Unprocessed+c.Processed)
}

// CountProcessed counts factors found in each reference set. An absent or
// empty factor set counts nothing.
func CountProcessed(factors table.FactorSet, ok bool, processed, unprocessed table.FactorSet) ProcessedCounts {
	var c ProcessedCounts
	if !ok {
		return c
	}
	for f := range factors {
		if processed.Has(f) {
			c.Processed++
		}
		if unprocessed.Has(f) {
			c.Unprocessed++
		}
	}
	return c
}

// ComputeProcessedDietScore returns a copy of t with processed_count,
// unprocessed_count and processed_diet_score. Columns left by a previous
// run are dropped first, so running it again yields the same table.
func ComputeProcessedDietScore(t *table.Table, factorCol string, processed, unprocessed table.FactorSet) *table.Table {
	out := t.Copy()
	out.DropColumns(ProcessedCountColumn, UnprocessedColumn, ProcessedScoreColumn)
	warnIfMissing(out, factorCol)

	pc := make([]table.Value, out.Len())
	uc := make([]table.Value, out.Len())
	sc := make([]table.Value, out.Len())
	for i := 0; i < out.Len(); i++ {
		v := out.Get(i, factorCol)
		fs, ok := v.Factors()
		c := CountProcessed(fs, ok && v.Truthy(), processed, unprocessed)
		pc[i] = table.Number(float64(c.Processed))
		uc[i] = table.Number(float64(c.Unprocessed))
		sc[i] = table.Number(c.Score())
	}

	setColumn(out, ProcessedCountColumn, pc)
	setColumn(out, UnprocessedColumn, uc)
	setColumn(out, ProcessedScoreColumn, sc)
	return out
}

// DiversityMode selects how the diversity score counts factors.
type DiversityMode string

const (
	// DiversityCountAll divides the size of the whole factor set by the
	// universe size. Labels outside the universe still count, so scores
	// above 1.0 are possible.
	DiversityCountAll DiversityMode = "count_all"
	// DiversityRecognizedOnly only counts labels found in the universe.
	DiversityRecognizedOnly DiversityMode = "recognized_only"
)

// Diversity scores one record against the universe of known factors.
func Diversity(factors table.FactorSet, ok bool, all table.FactorSet, mode DiversityMode) float64 {
	if !ok || factors.Len() == 0 {
		return 0.0
	}
	n := factors.Len()
	if mode == DiversityRecognizedOnly {
		n = factors.Intersect(all)
	}
	return ratio(n, all.Len())
}

// AddDiversityScore appends diversity_score to t in place using the
// DiversityCountAll mode.
func AddDiversityScore(t *table.Table, factorCol string, all table.FactorSet) *table.Table {
	return AddDiversityScoreMode(t, factorCol, all, DiversityCountAll)
}

// AddDiversityScoreMode is AddDiversityScore with an explicit mode.
func AddDiversityScoreMode(t *table.Table, factorCol string, all table.FactorSet, mode DiversityMode) *table.Table {
	warnIfMissing(t, factorCol)

	vals := make([]table.Value, t.Len())
	for i := 0; i < t.Len(); i++ {
		fs, ok := t.Get(i, factorCol).Factors()
		vals[i] = table.Number(Diversity(fs, ok, all, mode))
	}

	setColumn(t, DiversityColumn, vals)
	return t
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func warnIfMissing(t *table.Table, col string) {
	if !t.HasColumn(col) {
		slog.Warn("factor column not found, scoring all records as empty", "column", col)
	}
}

// setColumn cannot fail: values are always sized to the table.
func setColumn(t *table.Table, col string, vals []table.Value) {
	if err := t.SetColumn(col, vals); err != nil {
		slog.Error("failed to set column", "column", col, "error", err)
	}
}
