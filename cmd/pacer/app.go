package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pacer/internal/artifact"
	"github.com/fyrsmithlabs/pacer/internal/config"
	"github.com/fyrsmithlabs/pacer/internal/extraction"
	"github.com/fyrsmithlabs/pacer/internal/llmcache"
	"github.com/fyrsmithlabs/pacer/internal/llmcache/sqlite"
	"github.com/fyrsmithlabs/pacer/internal/logging"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
	"github.com/fyrsmithlabs/pacer/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/pacer"

// appOptions selects how much of the pipeline a command needs.
type appOptions struct {
	// daemon logs to stdout at the configured level; one-shot commands keep
	// stdout for their output and log warnings to stderr.
	daemon bool
	// model loads (and if necessary downloads) the regression model.
	model bool
}

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	telemetry   *telemetry.Telemetry
	cache       *llmcache.Cache
	store       *sqlite.Store
	coordinator *extraction.Coordinator
	engine      *prediction.Engine
}

// newApp wires the pipeline:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Opens the reply cache, with its SQLite tier when configured
//  4. Builds the language-model backend and the extraction coordinator
//  5. Loads the regression model and the prediction engine
func newApp(ctx context.Context, flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.LoadWithFile(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel, flags.verbose, opts.daemon)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if degraded, reasons := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", reasons))
	}

	a := &app{cfg: cfg, logger: logger, telemetry: tel}

	if err := a.initExtraction(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	handle := prediction.EmptyHandle()
	if opts.model {
		handle = prediction.LoadModel(ctx, cfg, a.fetcher(ctx), logger)
	}
	a.engine = prediction.NewEngine(handle,
		prediction.WithTracer(tel.Tracer(instrumentationName)),
		prediction.WithMetrics(prediction.NewMetrics()),
		prediction.WithLogger(logger),
	)

	return a, nil
}

// initLogger builds the zap logger. Daemon logs go to stdout; one-shot
// commands log warnings and errors to stderr unless verbose is set.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry, verbose, daemon bool) (*logging.Logger, error) {
	lcfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if !daemon {
		lcfg.Output.Stdout = false
		lcfg.Output.Stderr = true
		lcfg.Format = "console"
		lcfg.Level = zapcore.WarnLevel
	}
	if verbose {
		lcfg.Level = zapcore.DebugLevel
	}
	lp := tel.LoggerProvider()
	lcfg.Output.OTEL = lp != nil
	return logging.NewLogger(lcfg, lp)
}

func (a *app) initExtraction(ctx context.Context) error {
	opts := llmcache.Options{
		Capacity: a.cfg.Cache.Capacity,
		Logger:   a.logger,
		Metrics:  llmcache.NewMetrics(),
	}
	if a.cfg.Cache.Path != "" {
		store, err := sqlite.New(a.cfg.Cache.Path, a.cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("failed to open reply cache: %w", err)
		}
		a.store = store
		opts.Store = store
	}
	cache, err := llmcache.New(opts)
	if err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		return fmt.Errorf("failed to create reply cache: %w", err)
	}
	a.cache = cache

	completer, err := extraction.NewCompleter(a.cfg.LLM)
	switch {
	case errors.Is(err, extraction.ErrLLMDisabled):
		a.logger.Info(ctx, "language model fallback disabled", zap.Error(err))
		completer = nil
	case err != nil:
		return fmt.Errorf("failed to create language model client: %w", err)
	}

	a.coordinator = extraction.NewCoordinator(
		extraction.NewPatternExtractor(),
		extraction.NewModelExtractor(completer, cache, a.logger),
		extraction.WithTracer(a.telemetry.Tracer(instrumentationName)),
		extraction.WithMetrics(extraction.NewMetrics()),
		extraction.WithLogger(a.logger),
	)
	return nil
}

// fetcher returns the artifact store client, or nil when none is configured
// or it cannot be built.
func (a *app) fetcher(ctx context.Context) prediction.Fetcher {
	if !a.cfg.Artifact.Enabled() {
		return nil
	}
	f, err := artifact.NewS3Fetcher(ctx, a.cfg.Artifact, a.logger)
	if err != nil {
		a.logger.Warn(ctx, "artifact store unavailable", zap.Error(err))
		return nil
	}
	return f
}

// Close releases the cache and flushes telemetry and logs.
func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn(ctx, "failed to close reply cache", zap.Error(err))
		}
	} else if a.store != nil {
		_ = a.store.Close()
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
