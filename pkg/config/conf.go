package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/correlate"
	"github.com/mchmarny/dietpulse/pkg/geo"
	"github.com/mchmarny/dietpulse/pkg/outcome"
	"github.com/mchmarny/dietpulse/pkg/score"
	"github.com/mchmarny/dietpulse/pkg/table"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"
	dirMode  = 0700
	fileMode = 0600
)

// Config represents the analysis settings.
type Config struct {
	Columns     Columns           `yaml:"columns"`
	Reference   Reference         `yaml:"reference"`
	Regions     map[string]string `yaml:"regions,omitempty"`
	Diversity   Diversity         `yaml:"diversity"`
	CSV         CSV               `yaml:"csv"`
	Correlation Correlation       `yaml:"correlation"`
}

type Columns struct {
	Factor   string   `yaml:"factor"`
	ISO3     string   `yaml:"iso3"`
	Outcomes []string `yaml:"outcomes"`
	Features []string `yaml:"features"`
}

// Reference lists the factor labels of each dietary category.
type Reference struct {
	PlantBased  []string `yaml:"plant_based"`
	AnimalBased []string `yaml:"animal_based"`
	Processed   []string `yaml:"processed"`
	Unprocessed []string `yaml:"unprocessed"`
	AllFactors  []string `yaml:"all_factors"`
}

// Diversity toggles counting only recognized factors.
type Diversity struct {
	RecognizedOnly bool `yaml:"recognized_only"`
}

type CSV struct {
	SetColumns   []string `yaml:"set_columns"`
	SetSeparator string   `yaml:"set_separator"`
}

type Correlation struct {
	Concurrency int `yaml:"concurrency"`
	GridColumns int `yaml:"grid_columns"`
}

// Default returns the settings for the Global Dietary Database extract.
func Default() *Config {
	return &Config{
		Columns: Columns{
			Factor:   score.DefaultFactorColumn,
			ISO3:     geo.DefaultISO3Column,
			Outcomes: append([]string(nil), outcome.DefaultColumns...),
			Features: []string{
				score.PlantBasedColumn,
				score.AnimalBasedColumn,
				score.ProcessedScoreColumn,
				score.DiversityColumn,
			},
		},
		Reference: Reference{
			PlantBased:  []string{"fruits", "non_starchy_vegetables", "beans_legumes", "nuts_seeds", "whole_grains", "plant_oils"},
			AnimalBased: []string{"unprocessed_red_meats", "processed_meats", "eggs", "seafoods", "cheese", "yogurt", "total_milk"},
			Processed:   []string{"processed_meats", "refined_grains", "sugar_sweetened_beverages", "fruit_juices", "added_sugars", "sodium"},
			Unprocessed: []string{"fruits", "non_starchy_vegetables", "beans_legumes", "nuts_seeds", "whole_grains", "unprocessed_red_meats", "seafoods", "eggs"},
			AllFactors: []string{
				"fruits", "non_starchy_vegetables", "beans_legumes", "nuts_seeds", "whole_grains",
				"plant_oils", "unprocessed_red_meats", "processed_meats", "eggs", "seafoods",
				"cheese", "yogurt", "total_milk", "refined_grains", "sugar_sweetened_beverages",
				"fruit_juices", "added_sugars", "sodium", "potatoes", "coffee", "tea",
			},
		},
		CSV: CSV{
			SetColumns:   []string{score.DefaultFactorColumn},
			SetSeparator: table.DefaultSetSeparator,
		},
		Correlation: Correlation{
			Concurrency: correlate.DefaultConcurrency,
			GridColumns: correlate.DefaultGridColumns,
		},
	}
}

// Validate checks the settings that would make every analysis fail.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if strings.TrimSpace(c.Columns.Factor) == "" {
		return errors.New("columns.factor required")
	}
	if c.CSV.SetSeparator == "" {
		return errors.New("csv.set_separator required")
	}
	// otherwise the factor column imports as text and every score is 0
	if !slices.Contains(c.CSV.SetColumns, c.Columns.Factor) {
		return fmt.Errorf("columns.factor %q must be listed in csv.set_columns", c.Columns.Factor)
	}
	if c.Correlation.Concurrency < 0 {
		return fmt.Errorf("invalid correlation.concurrency: %d", c.Correlation.Concurrency)
	}
	return nil
}

// ReferenceSets converts the configured label lists into factor sets.
func (c *Config) ReferenceSets() score.ReferenceSets {
	return score.ReferenceSets{
		PlantBased:  table.NewFactorSet(c.Reference.PlantBased...),
		AnimalBased: table.NewFactorSet(c.Reference.AnimalBased...),
		Processed:   table.NewFactorSet(c.Reference.Processed...),
		Unprocessed: table.NewFactorSet(c.Reference.Unprocessed...),
		All:         table.NewFactorSet(c.Reference.AllFactors...),
	}
}

func (c *Config) DiversityMode() score.DiversityMode {
	if c.Diversity.RecognizedOnly {
		return score.DiversityRecognizedOnly
	}
	return score.DiversityCountAll
}

func (c *Config) CSVOptions() table.CSVOptions {
	return table.CSVOptions{
		SetColumns:   c.CSV.SetColumns,
		SetSeparator: c.CSV.SetSeparator,
	}
}

func (c *Config) CorrelationOptions() correlate.Options {
	return correlate.Options{Concurrency: c.Correlation.Concurrency}
}

// Save writes c as YAML to path.
func Save(path string, c *Config) error {
	if path == "" {
		return errors.New("config path required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads the config at path, writing the defaults first when
// the file does not exist yet.
func ReadOrCreate(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path required")
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// fields absent from the file keep their defaults
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the app directory in the user home.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
