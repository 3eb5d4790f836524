package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/dietpulse/pkg/net"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "source_token"
	keyringService = "dietpulse"
	keyringUser    = "source_token"

	valueFlag = "value"
	clearFlag = "clear"

	tokenFileMode  = 0600
	tokenMaskAfter = 4
)

var errNoToken = errors.New("no token saved")

func newTokenCmd() *cli.Command {
	return &cli.Command{
		Name:            "token",
		HideHelpCommand: true,
		Usage:           "Save or clear the bearer token used to download datasets",
		Action:          cmdToken,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  valueFlag,
				Usage: "Token to save in the OS keychain",
			},
			&cli.BoolFlag{
				Name:  clearFlag,
				Usage: "Remove the saved token",
			},
		},
	}
}

// TokenStatus reports whether a token is saved without revealing it.
type TokenStatus struct {
	Saved  bool   `json:"saved" yaml:"saved"`
	Masked string `json:"masked,omitempty" yaml:"masked,omitempty"`
}

func cmdToken(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if cmd.Bool(clearFlag) {
		if err := clearToken(cfg); err != nil {
			return fmt.Errorf("clearing token: %w", err)
		}
		slog.Info("token cleared")
		return encode(cmd, &TokenStatus{})
	}

	if v := strings.TrimSpace(cmd.String(valueFlag)); v != "" {
		if err := saveToken(cfg, v); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
		slog.Info("token saved")
	}

	token, err := getToken(cfg)
	if err != nil {
		return encode(cmd, &TokenStatus{})
	}
	return encode(cmd, &TokenStatus{Saved: true, Masked: mask(token)})
}

func mask(token string) string {
	if len(token) <= tokenMaskAfter {
		return strings.Repeat("*", len(token))
	}
	return token[:tokenMaskAfter] + strings.Repeat("*", len(token)-tokenMaskAfter)
}

func tokenPath(cfg *appConfig) string {
	return filepath.Join(filepath.Dir(cfg.ConfigPath), tokenFileName)
}

func saveToken(cfg *appConfig, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(tokenPath(cfg), []byte(token), tokenFileMode)
	}

	// clean up the file fallback if it exists
	os.Remove(tokenPath(cfg))

	return nil
}

func getToken(cfg *appConfig) (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	b, err := os.ReadFile(tokenPath(cfg))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errNoToken
		}
		return "", fmt.Errorf("reading token file %s: %w", tokenPath(cfg), err)
	}

	token = strings.TrimSpace(string(b))
	if token == "" {
		return "", errNoToken
	}

	// migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		os.Remove(tokenPath(cfg))
	}

	return token, nil
}

func clearToken(cfg *appConfig) error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}
	if err := os.Remove(tokenPath(cfg)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// downloadClient returns an HTTP client that sends the saved token, if any.
func downloadClient(ctx context.Context, cfg *appConfig) (*http.Client, error) {
	token, err := getToken(cfg)
	if err != nil {
		slog.Debug("no saved token, downloading anonymously", "error", err)
	}
	client, err := net.NewClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}
	return client, nil
}
