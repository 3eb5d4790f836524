package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mchmarny/dietpulse/pkg/logging"
	"github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080

	portFlag    = "port"
	logJSONFlag = "log-json"
)

func newServerCmd() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Start local HTTP server with the JSON data API",
		Action:  cmdStartServer,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  portFlag,
				Usage: "Port on which the server will listen",
				Value: serverPortDefault,
			},
			&cli.BoolFlag{
				Name:  logJSONFlag,
				Usage: "Write logs as JSON",
			},
		},
	}
}

func cmdStartServer(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if cmd.Bool(logJSONFlag) {
		level := "info"
		if cmd.Bool(debugFlag) {
			level = "debug"
		}
		slog.SetDefault(logging.NewJSONLogger(os.Stderr, level))
	}

	address := fmt.Sprintf("127.0.0.1:%d", cmd.Int(portFlag))

	s := &http.Server{
		Addr:           address,
		Handler:        logRequests(makeRouter(cfg)),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", "http://"+address)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(cfg *appConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /data/state", stateAPIHandler(cfg))
	mux.HandleFunc("GET /data/datasets", datasetsAPIHandler(cfg))
	mux.HandleFunc("GET /data/{name}/correlations", correlationsAPIHandler(cfg))
	mux.HandleFunc("GET /data/{name}/scatter", scatterAPIHandler(cfg))
	mux.HandleFunc("GET /data/{name}/countries", countriesAPIHandler(cfg))
	mux.HandleFunc("GET /data/{name}/regions", regionsAPIHandler(cfg))
	mux.HandleFunc("GET /data/{name}/missing", missingAPIHandler(cfg))

	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String())
	})
}
