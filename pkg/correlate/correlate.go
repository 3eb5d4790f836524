// Package correlate relates diet features to outcome columns.
package correlate

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"github.com/mchmarny/dietpulse/pkg/table"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultGridColumns = 3
)

// Coefficient is a float that encodes NaN as JSON null.
type Coefficient float64

func (c Coefficient) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (c Coefficient) Valid() bool {
	return !math.IsNaN(float64(c))
}

// FeatureCorrelation is one cell of an outcome heatmap.
type FeatureCorrelation struct {
	Feature string      `json:"feature" yaml:"feature"`
	R       Coefficient `json:"r" yaml:"r"`
	N       int         `json:"n" yaml:"n"`
}

// OutcomeCorrelation holds every feature's correlation with one outcome.
type OutcomeCorrelation struct {
	Outcome  string                `json:"outcome" yaml:"outcome"`
	Rows     int                   `json:"rows" yaml:"rows"`
	Features []*FeatureCorrelation `json:"features" yaml:"features"`
}

// PairCorrelation is the annotated scatter of one feature against one outcome.
type PairCorrelation struct {
	Feature string      `json:"feature" yaml:"feature"`
	Outcome string      `json:"outcome" yaml:"outcome"`
	N       int         `json:"n" yaml:"n"`
	R       Coefficient `json:"r" yaml:"r"`
	P       Coefficient `json:"p" yaml:"p"`
	Empty   bool        `json:"empty,omitempty" yaml:"empty,omitempty"`
}

// Options tunes the correlation runs.
type Options struct {
	// Concurrency bounds the number of outcomes computed at once.
	Concurrency int
}

func (o Options) limit() int {
	if o.Concurrency < 1 {
		return DefaultConcurrency
	}
	return o.Concurrency
}

// Available filters cols down to the ones present in t, keeping order.
func Available(t *table.Table, cols []string) []string {
	list := make([]string, 0, len(cols))
	for _, c := range cols {
		if t.HasColumn(c) {
			list = append(list, c)
		}
	}
	return list
}

// GridShape returns the rows and columns needed to lay out n outcome heatmap
// panels with at most cols per row. The scatter grid is not wrapped: it has
// one row per outcome and one column per feature.
func GridShape(n, cols int) (int, int) {
	if cols < 1 {
		cols = DefaultGridColumns
	}
	if n <= 0 {
		return 0, cols
	}
	return (n + cols - 1) / cols, cols
}

// OutcomeCorrelations computes, per available outcome, the correlation of
// each feature with that outcome over rows where the outcome is present.
// Results follow the order of outcomes.
func OutcomeCorrelations(ctx context.Context, t *table.Table, outcomes, features []string, opts Options) ([]*OutcomeCorrelation, error) {
	available := Available(t, outcomes)
	results := make([]*OutcomeCorrelation, len(available))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())

	for i, outcome := range available {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = outcomeCorrelation(t, outcome, features)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func outcomeCorrelation(t *table.Table, outcome string, features []string) *OutcomeCorrelation {
	rows := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if !t.Get(i, outcome).IsMissing() {
			rows = append(rows, i)
		}
	}

	oc := &OutcomeCorrelation{
		Outcome:  outcome,
		Rows:     len(rows),
		Features: make([]*FeatureCorrelation, 0, len(features)),
	}

	for _, f := range features {
		x, y := pairs(t, rows, f, outcome)
		r, _ := Pearson(x, y)
		oc.Features = append(oc.Features, &FeatureCorrelation{
			Feature: f,
			R:       Coefficient(r),
			N:       len(x),
		})
	}

	slog.Debug("outcome correlated", "outcome", outcome, "rows", oc.Rows, "features", len(features))
	return oc
}

// ScatterCorrelations computes Pearson r and p for every available
// outcome and feature pair. Pairs without numeric data are marked Empty.
func ScatterCorrelations(ctx context.Context, t *table.Table, features, outcomes []string, opts Options) ([]*PairCorrelation, error) {
	fs := Available(t, features)
	outs := Available(t, outcomes)
	if len(fs) == 0 || len(outs) == 0 {
		slog.Warn("no valid feature-outcome pairs")
		return []*PairCorrelation{}, nil
	}

	all := make([]int, t.Len())
	for i := range all {
		all[i] = i
	}

	results := make([]*PairCorrelation, len(fs)*len(outs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())

	for oi, outcome := range outs {
		g.Go(func() error {
			for fi, feature := range fs {
				if err := ctx.Err(); err != nil {
					return err
				}
				x, y := pairs(t, all, feature, outcome)
				pc := &PairCorrelation{
					Feature: feature,
					Outcome: outcome,
					N:       len(x),
					R:       Coefficient(math.NaN()),
					P:       Coefficient(math.NaN()),
				}
				if len(x) == 0 {
					pc.Empty = true
				} else {
					r, p := Pearson(x, y)
					pc.R, pc.P = Coefficient(r), Coefficient(p)
				}
				results[oi*len(fs)+fi] = pc
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// pairs collects the rows where both columns coerce to numbers.
func pairs(t *table.Table, rows []int, xCol, yCol string) ([]float64, []float64) {
	x := make([]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for _, i := range rows {
		xv, ok := t.Float(i, xCol)
		if !ok {
			continue
		}
		yv, ok := t.Float(i, yCol)
		if !ok {
			continue
		}
		x = append(x, xv)
		y = append(y, yv)
	}
	return x, y
}
