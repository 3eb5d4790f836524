package correlate

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const minPairs = 2

// Pearson returns the correlation of x and y and its two-sided p-value.
// Fewer than two pairs or a constant input yields NaN for both.
func Pearson(x, y []float64) (r, p float64) {
	n := len(x)
	if n != len(y) || n < minPairs {
		return math.NaN(), math.NaN()
	}

	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN(), math.NaN()
	}
	r = math.Max(-1, math.Min(1, r))

	if n == minPairs {
		return r, 1
	}
	if math.Abs(r) == 1 {
		return r, 0
	}

	df := float64(n - minPairs)
	tStat := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.Survival(math.Abs(tStat))
	return r, math.Min(1, p)
}
