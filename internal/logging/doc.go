// Package logging provides structured logging for pacer.
//
// Logger wraps zap with context-aware methods. Every entry logged with a
// context carries the OpenTelemetry trace/span IDs and the request ID when
// present, so a log line can be joined to the span and HTTP request that
// produced it.
//
// Usage:
//
//	cfg, err := logging.FromAppConfig(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.Info(ctx, "extraction finished", zap.String("source", "pattern"))
//
// Secrets are redacted twice: config.Secret never prints its value, and the
// stdout encoder drops values of sensitive keys (api_key, authorization,
// secret_key, ...) and values that look like provider API keys.
//
// Errors are never sampled. Below error, the first Initial entries with the
// same message per tick pass and then every Thereafter-th.
//
// Tests use NewTestLogger and its Assert helpers.
package logging
