package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pacer/internal/config"
	"github.com/fyrsmithlabs/pacer/internal/logging"
)

const artifactBody = "kind: linear\nversion: test\nintercept: 0\nfeature_order: [time_5km_seconds]\ncoefficients: [4.5]\n"

// fakeS3 serves path-style GetObject requests from a map of "bucket/key".
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		assert.Contains(t, r.Header.Get("Authorization"), "AKIATEST")

		body, ok := objects[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(endpoint string) config.ArtifactConfig {
	return config.ArtifactConfig{
		Bucket:    "halfmarathon-ml",
		Key:       "models/hm.yaml",
		Endpoint:  endpoint,
		Region:    "fra1",
		AccessKey: config.Secret("AKIATEST"),
		SecretKey: config.Secret("secret"),
		PathStyle: true,
	}
}

func TestNewS3Fetcher_NotConfigured(t *testing.T) {
	_, err := NewS3Fetcher(context.Background(), config.ArtifactConfig{Bucket: "b"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestS3Fetcher_Fetch(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := fakeS3(t, map[string]string{"halfmarathon-ml/models/hm.yaml": artifactBody})

	logger := logging.NewTestLogger()
	f, err := NewS3Fetcher(context.Background(), testConfig(srv.URL), logger.Logger)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "nested", "model.yaml")
	require.NoError(t, f.Fetch(context.Background(), "halfmarathon-ml", "models/hm.yaml", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, artifactBody, string(data))
	logger.AssertLogged(t, zapcore.InfoLevel, "model artifact downloaded")

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestS3Fetcher_MissingObjectKeepsExistingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := fakeS3(t, nil)

	f, err := NewS3Fetcher(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	err = f.Fetch(context.Background(), "halfmarathon-ml", "models/missing.yaml", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://halfmarathon-ml/models/missing.yaml")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
