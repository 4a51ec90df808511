package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pacerhttp "github.com/fyrsmithlabs/pacer/internal/http"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the extraction and prediction pipeline over HTTP until SIGINT or
SIGTERM.

Examples:
  pacer serve
  SERVER_HOST=0.0.0.0 SERVER_PORT=9090 pacer serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags)
		},
	}
}

// serve runs the HTTP server and blocks until ctx is cancelled, then shuts
// down within the configured timeout.
func serve(ctx context.Context, flags *globalFlags) error {
	a, err := newApp(ctx, flags, appOptions{daemon: true, model: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := pacerhttp.NewServer(pacerhttp.Deps{
		Coordinator: a.coordinator,
		Engine:      a.engine,
		Cache:       a.cache,
		Logger:      a.logger,
		Meter:       a.telemetry.Meter(instrumentationName),
	}, &pacerhttp.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	a.logger.Info(ctx, "starting pacer",
		zap.String("version", version),
		zap.Int("port", a.cfg.Server.Port),
		zap.String("llm_provider", a.cfg.LLM.Provider),
		zap.Bool("model_loaded", a.engine.Model().Loaded),
		zap.Duration("shutdown_timeout", a.cfg.Server.ShutdownTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	a.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}
