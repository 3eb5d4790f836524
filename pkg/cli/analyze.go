package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/config"
	"github.com/mchmarny/dietpulse/pkg/correlate"
	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/mchmarny/dietpulse/pkg/geo"
	"github.com/mchmarny/dietpulse/pkg/missing"
	"github.com/mchmarny/dietpulse/pkg/net"
	"github.com/mchmarny/dietpulse/pkg/outcome"
	"github.com/mchmarny/dietpulse/pkg/score"
	"github.com/mchmarny/dietpulse/pkg/table"
	"github.com/urfave/cli/v3"
)

const (
	nameFlag    = "name"
	outFlag     = "out"
	scatterFlag = "scatter"
	topFlag     = "top"
	minFlag     = "min"
	matrixFlag  = "matrix"
	regionsFlag = "regions-url"
)

func newNameFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     nameFlag,
		Aliases:  []string{"n"},
		Usage:    "Name of the dataset",
		Required: true,
	}
}

func newOutFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  outFlag,
		Usage: "Save the result as a new dataset with this name (optional)",
	}
}

func newScoreCmd() *cli.Command {
	return &cli.Command{
		Name:   "score",
		Usage:  "Compute diet, processed diet and diversity scores",
		Action: cmdScore,
		Flags:  []cli.Flag{newNameFlag(), newOutFlag()},
	}
}

func newNormalizeCmd() *cli.Command {
	return &cli.Command{
		Name:   "normalize",
		Usage:  "Normalize outcome columns into the [0, 1] range",
		Action: cmdNormalize,
		Flags:  []cli.Flag{newNameFlag(), newOutFlag()},
	}
}

func newCorrelateCmd() *cli.Command {
	return &cli.Command{
		Name:   "correlate",
		Usage:  "Correlate diet features with mental health outcomes",
		Action: cmdCorrelate,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.BoolFlag{
				Name:  scatterFlag,
				Usage: "Compute r and p for every feature and outcome pair",
			},
		},
	}
}

func newCountriesCmd() *cli.Command {
	return &cli.Command{
		Name:   "countries",
		Usage:  "Count records per country",
		Action: cmdCountries,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.IntFlag{
				Name:  topFlag,
				Usage: "Only return the K most frequent countries (optional)",
			},
			&cli.IntFlag{
				Name:  minFlag,
				Usage: "Only return countries with at least C records (optional)",
			},
		},
	}
}

func newRegionsCmd() *cli.Command {
	return &cli.Command{
		Name:   "regions",
		Usage:  "Count records per configured region",
		Action: cmdRegions,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.StringFlag{
				Name:  regionsFlag,
				Usage: "URL of a JSON object mapping ISO3 codes to regions, replaces the configured map (optional)",
			},
		},
	}
}

func newMissingCmd() *cli.Command {
	return &cli.Command{
		Name:   "missing",
		Usage:  "Profile missing values",
		Action: cmdMissing,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.BoolFlag{
				Name:  matrixFlag,
				Usage: "Include the per-row nullity matrix",
			},
		},
	}
}

// ScoreResult is the outcome of scoring a dataset.
type ScoreResult struct {
	Dataset string         `json:"dataset" yaml:"dataset"`
	SavedAs string         `json:"saved_as,omitempty" yaml:"savedAs,omitempty"`
	Summary *score.Summary `json:"summary" yaml:"summary"`
}

// NormalizeResult is the outcome of normalizing a dataset.
type NormalizeResult struct {
	Dataset string          `json:"dataset" yaml:"dataset"`
	SavedAs string          `json:"saved_as,omitempty" yaml:"savedAs,omitempty"`
	Result  *outcome.Result `json:"result" yaml:"result"`
}

// CorrelationReport backs the outcome heatmap grid.
type CorrelationReport struct {
	Dataset  string                          `json:"dataset" yaml:"dataset"`
	GridRows int                             `json:"grid_rows" yaml:"gridRows"`
	GridCols int                             `json:"grid_cols" yaml:"gridCols"`
	Outcomes []*correlate.OutcomeCorrelation `json:"outcomes" yaml:"outcomes"`
}

// ScatterReport backs the annotated feature/outcome scatter grid. Pairs are
// outcome-major: Pairs[row*GridCols+col].
type ScatterReport struct {
	Dataset  string                       `json:"dataset" yaml:"dataset"`
	GridRows int                          `json:"grid_rows" yaml:"gridRows"`
	GridCols int                          `json:"grid_cols" yaml:"gridCols"`
	Pairs    []*correlate.PairCorrelation `json:"pairs" yaml:"pairs"`
}

// DistributionReport lists value counts of a categorical column.
type DistributionReport struct {
	Dataset string             `json:"dataset" yaml:"dataset"`
	Column  string             `json:"column" yaml:"column"`
	Items   []*geo.CountedItem `json:"items" yaml:"items"`
}

// MissingReport profiles the missing values of a dataset.
type MissingReport struct {
	Dataset     string                 `json:"dataset" yaml:"dataset"`
	Rows        int                    `json:"rows" yaml:"rows"`
	Columns     []*missing.ColumnNulls `json:"columns" yaml:"columns"`
	Correlation *missing.CorrMatrix    `json:"correlation" yaml:"correlation"`
	Matrix      *missing.Grid          `json:"matrix,omitempty" yaml:"matrix,omitempty"`
}

func datasetName(cmd *cli.Command) (string, error) {
	name := strings.TrimSpace(cmd.String(nameFlag))
	if name == "" {
		return "", errNameRequired
	}
	return name, nil
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	scored, sum := scoreTable(cfg.Config, t)
	res := &ScoreResult{Dataset: name, Summary: sum}

	if out := cmd.String(outFlag); out != "" {
		if err := data.SaveDataset(ctx, cfg.DB, out, "score:"+name, scored); err != nil {
			return fmt.Errorf("saving scored dataset: %w", err)
		}
		res.SavedAs = out
	}

	return encode(cmd, res)
}

func cmdNormalize(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	normalized, r := outcome.NormalizeOutcomeColumns(t, cfg.Config.Columns.Outcomes)
	res := &NormalizeResult{Dataset: name, Result: r}

	if out := cmd.String(outFlag); out != "" {
		if err := data.SaveDataset(ctx, cfg.DB, out, "normalize:"+name, normalized); err != nil {
			return fmt.Errorf("saving normalized dataset: %w", err)
		}
		res.SavedAs = out
	}

	return encode(cmd, res)
}

func cmdCorrelate(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	if cmd.Bool(scatterFlag) {
		r, err := scatterReport(ctx, cfg.Config, name, t)
		if err != nil {
			return err
		}
		return encode(cmd, r)
	}

	r, err := correlationReport(ctx, cfg.Config, name, t)
	if err != nil {
		return err
	}
	return encode(cmd, r)
}

func cmdCountries(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	opts := geo.Options{TopN: cmd.Int(topFlag), MinCount: cmd.Int(minFlag)}
	return encode(cmd, countryReport(cfg.Config, name, t, opts))
}

func cmdRegions(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	conf := cfg.Config
	if url := strings.TrimSpace(cmd.String(regionsFlag)); url != "" {
		regions, err := fetchRegions(ctx, cfg, url)
		if err != nil {
			return err
		}
		c := *conf
		c.Regions = regions
		conf = &c
	}

	return encode(cmd, regionReport(conf, name, t))
}

func fetchRegions(ctx context.Context, cfg *appConfig, url string) (map[string]string, error) {
	client, err := downloadClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var regions map[string]string
	if err := net.GetJSON(ctx, client, url, &regions); err != nil {
		return nil, fmt.Errorf("loading regions from %s: %w", url, err)
	}
	slog.Debug("regions loaded", "url", url, "countries", len(regions))
	return regions, nil
}

func cmdMissing(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	return encode(cmd, missingReport(name, t, cmd.Bool(matrixFlag)))
}

func scoreTable(conf *config.Config, t *table.Table) (*table.Table, *score.Summary) {
	return score.Apply(t, conf.Columns.Factor, conf.ReferenceSets(), conf.DiversityMode())
}

// withFeatures scores t when it still carries factor sets but lacks any of
// the configured feature columns.
func withFeatures(conf *config.Config, t *table.Table) *table.Table {
	if !t.HasColumn(conf.Columns.Factor) {
		return t
	}
	if len(correlate.Available(t, conf.Columns.Features)) == len(conf.Columns.Features) {
		return t
	}
	slog.Debug("scoring dataset before correlation", "factor", conf.Columns.Factor)
	scored, _ := scoreTable(conf, t)
	return scored
}

func correlationReport(ctx context.Context, conf *config.Config, name string, t *table.Table) (*CorrelationReport, error) {
	t = withFeatures(conf, t)
	features := correlate.Available(t, conf.Columns.Features)

	list, err := correlate.OutcomeCorrelations(ctx, t, conf.Columns.Outcomes, features, conf.CorrelationOptions())
	if err != nil {
		return nil, fmt.Errorf("correlating outcomes: %w", err)
	}

	rows, cols := correlate.GridShape(len(list), conf.Correlation.GridColumns)
	return &CorrelationReport{
		Dataset:  name,
		GridRows: rows,
		GridCols: cols,
		Outcomes: list,
	}, nil
}

func scatterReport(ctx context.Context, conf *config.Config, name string, t *table.Table) (*ScatterReport, error) {
	t = withFeatures(conf, t)

	list, err := correlate.ScatterCorrelations(ctx, t, conf.Columns.Features, conf.Columns.Outcomes, conf.CorrelationOptions())
	if err != nil {
		return nil, fmt.Errorf("correlating pairs: %w", err)
	}

	// one row per outcome, one column per feature, matching the pair order
	r := &ScatterReport{Dataset: name, Pairs: list}
	if len(list) > 0 {
		r.GridRows = len(correlate.Available(t, conf.Columns.Outcomes))
		r.GridCols = len(correlate.Available(t, conf.Columns.Features))
	}
	return r, nil
}

func countryReport(conf *config.Config, name string, t *table.Table, opts geo.Options) *DistributionReport {
	return &DistributionReport{
		Dataset: name,
		Column:  conf.Columns.ISO3,
		Items:   geo.CountryDistribution(t, conf.Columns.ISO3, opts),
	}
}

func regionReport(conf *config.Config, name string, t *table.Table) *DistributionReport {
	return &DistributionReport{
		Dataset: name,
		Column:  geo.RegionColumn,
		Items:   geo.RegionDistribution(t.Copy(), conf.Columns.ISO3, conf.Regions),
	}
}

func missingReport(name string, t *table.Table, matrix bool) *MissingReport {
	r := &MissingReport{
		Dataset:     name,
		Rows:        t.Len(),
		Columns:     missing.Profile(t),
		Correlation: missing.NullityCorrelation(t),
	}
	if matrix {
		r.Matrix = missing.Matrix(t)
	}
	return r
}
