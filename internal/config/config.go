// Package config provides configuration loading for pacer.
//
// Configuration is read once at startup from an optional YAML file and
// environment variables, in that order of increasing precedence, on top of
// hardcoded defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Supported language-model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderDisabled  = "disabled"
)

// Config holds the complete pacer configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Cache     CacheConfig     `koanf:"cache"`
	Model     ModelConfig     `koanf:"model"`
	Artifact  ArtifactConfig  `koanf:"artifact"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LLMConfig configures the language-model backend used by the extraction
// fallback.
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	APIKey      Secret        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxAttempts int           `koanf:"max_attempts"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`
}

// CacheConfig configures the language-model reply cache.
type CacheConfig struct {
	Capacity int `koanf:"capacity"`
	// Path enables the persistent SQLite tier when non-empty.
	Path string        `koanf:"path"`
	TTL  time.Duration `koanf:"ttl"`
}

// ModelConfig locates the regression model artifact on local disk.
type ModelConfig struct {
	Path string `koanf:"path"`
}

// ArtifactConfig holds coordinates of the S3-compatible object store the
// model artifact is fetched from when it is not present locally.
type ArtifactConfig struct {
	Bucket    string `koanf:"bucket"`
	Key       string `koanf:"key"`
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	AccessKey Secret `koanf:"access_key"`
	SecretKey Secret `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
}

// Enabled reports whether enough coordinates are present to attempt a fetch.
func (a ArtifactConfig) Enabled() bool {
	return a.Bucket != "" && a.Key != "" && a.AccessKey.IsSet() && a.SecretKey.IsSet()
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderDisabled:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be positive")
	}
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > 5 {
		return fmt.Errorf("llm max_attempts must be 1-5, got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be 0-2, got %v", c.LLM.Temperature)
	}

	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache ttl cannot be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint required when telemetry is enabled")
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry sampling_rate must be between 0 and 1, got %v", c.Telemetry.SamplingRate)
	}

	return nil
}
