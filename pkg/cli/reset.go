package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/urfave/cli/v3"
)

const yesFlag = "yes"

func newResetCmd() *cli.Command {
	return &cli.Command{
		Name:            "reset",
		Usage:           "Delete all imported datasets",
		HideHelpCommand: true,
		Action:          cmdReset,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    yesFlag,
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
	}
}

func cmdReset(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	w := writer(cmd)

	if !cmd.Bool(yesFlag) {
		fmt.Fprintf(w, "This will permanently delete all datasets in %s\n", cfg.DBPath)
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		var in io.Reader = os.Stdin
		if r := cmd.Root().Reader; r != nil {
			in = r
		}
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	list, err := data.ListDatasets(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("listing datasets: %w", err)
	}

	for _, ds := range list {
		if err := data.DeleteDataset(ctx, cfg.DB, ds.Name); err != nil {
			return fmt.Errorf("deleting dataset %s: %w", ds.Name, err)
		}
		slog.Debug("dataset deleted", "name", ds.Name)
	}

	slog.Info("reset complete", "datasets", len(list))
	return encode(cmd, map[string]int{"deleted": len(list)})
}
