package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/mchmarny/dietpulse/pkg/net"
	"github.com/mchmarny/dietpulse/pkg/table"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag = "file"
	urlFlag  = "url"
	saveFlag = "save"
)

func newImportCmd() *cli.Command {
	return &cli.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import a CSV file or URL as a named dataset",
		UsageText: `dietpulse import --name gdd --file gdd.csv                     # import local file
   dietpulse import --name gdd --url https://example.com/gdd.csv  # download and import
   dietpulse import --name gdd --url https://example.com/gdd.csv --save gdd.csv  # keep a local copy`,
		Action: cmdImport,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.StringFlag{
				Name:    fileFlag,
				Aliases: []string{"f"},
				Usage:   "Path to the CSV file",
			},
			&cli.StringFlag{
				Name:  urlFlag,
				Usage: "URL of the CSV file, sent with the saved token when one exists",
			},
			&cli.StringFlag{
				Name:  saveFlag,
				Usage: "Keep a local copy of the downloaded file at this path (optional, requires --url)",
			},
		},
	}
}

func newListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List imported datasets",
		Action:  cmdList,
	}
}

func newDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:   "delete",
		Usage:  "Delete a dataset",
		Action: cmdDelete,
		Flags:  []cli.Flag{newNameFlag()},
	}
}

func newExportCmd() *cli.Command {
	return &cli.Command{
		Name:   "export",
		Usage:  "Write a dataset as CSV to a file or stdout",
		Action: cmdExport,
		Flags: []cli.Flag{
			newNameFlag(),
			&cli.StringFlag{
				Name:    fileFlag,
				Aliases: []string{"f"},
				Usage:   "Path of the CSV file to write (default: stdout)",
			},
		},
	}
}

func cmdImport(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	file := strings.TrimSpace(cmd.String(fileFlag))
	url := strings.TrimSpace(cmd.String(urlFlag))
	if (file == "") == (url == "") {
		return errors.New("either --file or --url is required")
	}
	save := strings.TrimSpace(cmd.String(saveFlag))
	if save != "" && url == "" {
		return errors.New("--save requires --url")
	}

	source := file
	var r io.ReadCloser
	if file != "" {
		if r, err = os.Open(file); err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
	} else {
		source = url
		client, err := downloadClient(ctx, cfg)
		if err != nil {
			return err
		}
		if save != "" {
			if err := net.Download(ctx, client, url, save); err != nil {
				return fmt.Errorf("downloading %s: %w", url, err)
			}
			slog.Debug("download saved", "url", url, "path", save)
			if r, err = os.Open(save); err != nil {
				return fmt.Errorf("opening %s: %w", save, err)
			}
		} else if r, err = net.Fetch(ctx, client, url); err != nil {
			return fmt.Errorf("downloading %s: %w", url, err)
		}
	}
	defer r.Close()

	t, err := table.ReadCSV(r, cfg.Config.CSVOptions())
	if err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}

	if err := data.SaveDataset(ctx, cfg.DB, name, source, t); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	slog.Info("dataset imported", "name", name, "rows", t.Len(), "columns", len(t.Columns()))

	ds, err := data.GetDatasetInfo(ctx, cfg.DB, name)
	if err != nil {
		return err
	}
	return encode(cmd, ds)
}

func cmdList(ctx context.Context, cmd *cli.Command) error {
	list, err := data.ListDatasets(ctx, getConfig(cmd).DB)
	if err != nil {
		return fmt.Errorf("listing datasets: %w", err)
	}
	return encode(cmd, list)
}

func cmdDelete(ctx context.Context, cmd *cli.Command) error {
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}
	if err := data.DeleteDataset(ctx, getConfig(cmd).DB, name); err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	slog.Info("dataset deleted", "name", name)
	return encode(cmd, map[string]string{"deleted": name})
}

func cmdExport(ctx context.Context, cmd *cli.Command) (retErr error) {
	cfg := getConfig(cmd)
	name, err := datasetName(cmd)
	if err != nil {
		return err
	}

	t, err := data.GetDataset(ctx, cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	w := writer(cmd)
	if path := cmd.String(fileFlag); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && retErr == nil {
				retErr = fmt.Errorf("closing file: %w", cerr)
			}
		}()
		w = f
	}

	if err := table.WriteCSV(w, t, cfg.Config.CSVOptions()); err != nil {
		return fmt.Errorf("writing dataset %s: %w", name, err)
	}
	return nil
}
