package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mchmarny/dietpulse/pkg/config"
	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/mchmarny/dietpulse/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "dietpulse"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	errNameRequired = errors.New("dataset name required")
)

const (
	debugFlag   = "debug"
	noColorFlag = "no-color"
	dbFlag      = "db"
	configFlag  = "config"
	formatFlag  = "format"
)

type appConfig struct {
	DBPath     string
	DB         *data.DB
	ConfigPath string
	Config     *config.Config
	Format     string
}

// Execute creates and runs the CLI application.
func Execute() {
	// .env is optional
	_ = godotenv.Load()

	logging.SetDefaultCLILogger("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

func getConfig(cmd *cli.Command) *appConfig {
	cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig)
	if !ok {
		return &appConfig{Config: config.Default(), Format: formatJSON}
	}
	return cfg
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Explore diet composition and mental health outcomes",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.BoolFlag{
				Name:  noColorFlag,
				Usage: "Disables colored log output (optional, default: false)",
			},
			&cli.StringFlag{
				Name:    dbFlag,
				Usage:   "Path to the sqlite database file or a postgres:// DSN",
				Sources: cli.EnvVars("DIETPULSE_DB"),
			},
			&cli.StringFlag{
				Name:    configFlag,
				Usage:   "Path to the analysis config file",
				Sources: cli.EnvVars("DIETPULSE_CONFIG"),
			},
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			newImportCmd(),
			newTokenCmd(),
			newListCmd(),
			newDeleteCmd(),
			newExportCmd(),
			newResetCmd(),
			newScoreCmd(),
			newNormalizeCmd(),
			newCorrelateCmd(),
			newCountriesCmd(),
			newRegionsCmd(),
			newMissingCmd(),
			newServerCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := "info"
			if cmd.Bool(debugFlag) {
				level = "debug"
			}
			if cmd.Bool(noColorFlag) {
				logging.SetDefaultPlainCLILogger(level)
			} else {
				logging.SetDefaultCLILogger(level)
			}

			format, err := parseFormat(cmd.String(formatFlag))
			if err != nil {
				return ctx, err
			}

			cfgPath := cmd.String(configFlag)
			dbPath := cmd.String(dbFlag)
			if cfgPath == "" || dbPath == "" {
				home, _, err := config.GetOrCreateHomeDir(appName)
				if err != nil {
					return ctx, fmt.Errorf("resolving home dir: %w", err)
				}
				if cfgPath == "" {
					cfgPath = filepath.Join(home, config.FileName)
				}
				if dbPath == "" {
					dbPath = filepath.Join(home, data.DataFileName)
				}
			}

			conf, err := config.ReadOrCreate(cfgPath)
			if err != nil {
				return ctx, fmt.Errorf("reading config: %w", err)
			}

			if err := data.Init(dbPath); err != nil {
				return ctx, fmt.Errorf("initializing database: %w", err)
			}

			db, err := data.Open(dbPath)
			if err != nil {
				return ctx, fmt.Errorf("opening database: %w", err)
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				DBPath:     dbPath,
				DB:         db,
				ConfigPath: cfgPath,
				Config:     conf,
				Format:     format,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				return cfg.DB.Close()
			}
			return nil
		},
	}
}

func parseFormat(f string) (string, error) {
	switch f {
	case "", formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", f)
	}
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(cmd *cli.Command, v any) error {
	w := writer(cmd)
	if getConfig(cmd).Format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
