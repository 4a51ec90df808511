package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome points HOME at an empty temp dir so the default config file
// location never picks up a developer's real config.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateHome(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.False(t, cfg.LLM.APIKey.IsSet())
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.MaxAttempts)
	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.Empty(t, cfg.Cache.Path)
	assert.Equal(t, filepath.Join(".cache", "models", "model.yaml"), cfg.Model.Path)
	assert.False(t, cfg.Artifact.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	isolateHome(t)

	path := writeConfig(t, `
server:
  port: 9191
llm:
  provider: anthropic
  api_key: sk-ant-file
  timeout: 5s
cache:
  capacity: 10
  path: /tmp/pacer-cache.db
model:
  path: /srv/models/hm.yaml
artifact:
  bucket: halfmarathon-ml
  key: models/hm.yaml
  endpoint: https://fra1.digitaloceanspaces.com
  region: fra1
  access_key: AKIA
  secret_key: shh
`, 0o600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.LLM.Model)
	assert.Equal(t, "sk-ant-file", cfg.LLM.APIKey.Value())
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.Cache.Capacity)
	assert.Equal(t, "/tmp/pacer-cache.db", cfg.Cache.Path)
	assert.Equal(t, "/srv/models/hm.yaml", cfg.Model.Path)
	assert.True(t, cfg.Artifact.Enabled())
	assert.Equal(t, "fra1", cfg.Artifact.Region)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	isolateHome(t)

	path := writeConfig(t, "llm:\n  model: gpt-4o\nmodel:\n  path: from-file.yaml\n", 0o600)
	t.Setenv("LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("MODEL_PATH", "from-env.yaml")
	t.Setenv("CACHE_CAPACITY", "42")
	t.Setenv("LLM_API_KEY", "sk-env")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, "from-env.yaml", cfg.Model.Path)
	assert.Equal(t, 42, cfg.Cache.Capacity)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey.Value())
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	isolateHome(t)
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey.Value())
}

func TestLoadWithFile_Errors(t *testing.T) {
	isolateHome(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("world readable file", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission model differs on windows")
		}
		path := writeConfig(t, "server:\n  port: 9000\n", 0o644)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insecure config file permissions")
	})

	t.Run("unknown provider", func(t *testing.T) {
		path := writeConfig(t, "llm:\n  provider: cohere\n", 0o600)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown llm provider")
	})

	t.Run("invalid port", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 70000\n", 0o600)
		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"LLM_API_KEY":             "llm.api_key",
		"MODEL_PATH":              "model.path",
		"ARTIFACT_SECRET_KEY":     "artifact.secret_key",
		"SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
		"PATH":                    "",
		"HOME":                    "",
		"OPENAI_API_KEY":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-live-123", s.Value())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	assert.Equal(t, "", Secret("").String())
}
