package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pacerhttp "github.com/fyrsmithlabs/pacer/internal/http"
	"github.com/fyrsmithlabs/pacer/internal/prediction"
)

const linearModel = `kind: linear
version: "2024.05"
intercept: 300
feature_order: [time_5km_seconds, age, gender_male]
coefficients: [4.2, 10, -120]
`

// isolateEnv gives each test an empty home, no language model and no model
// artifact, and returns the temp dir.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("LLM_PROVIDER", "disabled")
	t.Setenv("MODEL_PATH", filepath.Join(dir, "models", "model.yaml"))
	t.Setenv("ARTIFACT_BUCKET", "")
	t.Setenv("CACHE_PATH", "")
	t.Setenv("TELEMETRY_ENABLED", "false")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Commit:     unknown")
}

func TestEstimate_Text(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "", "estimate", "Jestem mężczyzną, mam 30 lat, 5 km biegam w 24:30")
	require.NoError(t, err)

	assert.Contains(t, out, "Gender:  male")
	assert.Contains(t, out, "Age:     30")
	assert.Contains(t, out, "5 km:    24:30 (1470 s)")
	assert.Contains(t, out, "Path:    quick")
	assert.Contains(t, out, "Half marathon: 1:49:16")
	assert.Contains(t, out, "Pace:          5:11 /km")
	assert.Contains(t, out, "Mode:          heuristic (heuristic-1.0)")
}

func TestEstimate_JSONFromStdin(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "male, 35 years old, 5k PB 22:10\n", "estimate", "--json", "-")
	require.NoError(t, err)

	var resp pacerhttp.EstimateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "quick", resp.Extraction.Path)
	assert.Empty(t, resp.Extraction.Missing)
	require.NotNil(t, resp.Extraction.Result.Age)
	assert.Equal(t, 35, *resp.Extraction.Result.Age)
	assert.True(t, resp.Prediction.Success)
	assert.Equal(t, prediction.ModeHeuristic, resp.Prediction.Mode)
	assert.Equal(t, 5932, resp.Prediction.Seconds)
}

func TestEstimate_MissingFieldFails(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "", "estimate", "Mam 28 lat, 5 km 26:45")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoEstimate)

	assert.Contains(t, out, "Gender:  -")
	assert.Contains(t, out, "Missing:")
	assert.Contains(t, out, "gender:")
	assert.Contains(t, out, "Cannot estimate:")
	assert.Contains(t, out, "Hint:")
}

func TestEstimate_UsesInstalledModel(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "models", "model.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(linearModel), 0o600))

	out, err := execute(t, "", "estimate", "--json", "M 30 lat 5km 24:30")
	require.NoError(t, err)

	var resp pacerhttp.EstimateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, prediction.ModeModel, resp.Prediction.Mode)
	assert.Equal(t, "2024.05", resp.Prediction.ModelVersion)
	// 300 + 4.2*1470 + 10*30 - 120
	assert.Equal(t, 6654, resp.Prediction.Seconds)
	assert.Equal(t, "1:50:54", resp.Prediction.Formatted)
}

func TestEstimate_NoText(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "   \n", "estimate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text given")
}

func TestExtract(t *testing.T) {
	isolateEnv(t)

	t.Run("json reports missing fields", func(t *testing.T) {
		out, err := execute(t, "", "extract", "--json", "Mam 28 lat, 5 km 26:45")
		require.NoError(t, err)

		var resp struct {
			pacerhttp.ExtractResponse
			Rules map[string]string `json:"rules"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Missing, 1)
		assert.Equal(t, "gender", resp.Missing[0].Field)
		assert.NotEmpty(t, resp.Missing[0].Hint)
		assert.Nil(t, resp.Rules)
	})

	t.Run("rules", func(t *testing.T) {
		out, err := execute(t, "", "extract", "--rules", "male, 35 years old, 24:30")
		require.NoError(t, err)
		assert.Contains(t, out, "(rule gender_word)")
	})
}

func TestPredict(t *testing.T) {
	isolateEnv(t)

	t.Run("accepts short gender and clock time", func(t *testing.T) {
		out, err := execute(t, "", "predict", "--gender", "K", "--age", "41", "--time", "27:10", "--json")
		require.NoError(t, err)

		var res prediction.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.True(t, res.Success)
		assert.Equal(t, 7623, res.Seconds)
		assert.Equal(t, "2:07:03", res.Formatted)
	})

	t.Run("seconds", func(t *testing.T) {
		out, err := execute(t, "", "predict", "--gender", "male", "--age", "30", "--time", "1470")
		require.NoError(t, err)
		assert.Contains(t, out, "Half marathon: 1:49:16")
	})

	t.Run("invalid age", func(t *testing.T) {
		out, err := execute(t, "", "predict", "--gender", "male", "--age", "12", "--time", "1470", "--json")
		require.ErrorIs(t, err, errNoEstimate)

		var res prediction.Result
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.False(t, res.Success)
		assert.Equal(t, "age", res.Field)
		assert.NotEmpty(t, res.Hint)
	})

	t.Run("missing gender", func(t *testing.T) {
		out, err := execute(t, "", "predict", "--age", "30", "--time", "1470")
		require.ErrorIs(t, err, errNoEstimate)
		assert.Contains(t, out, "Cannot estimate:")
	})
}

func TestPredictRequest(t *testing.T) {
	req := predictRequest("Kobieta", "41", "25 min")
	assert.Equal(t, "female", req.Gender)
	assert.Equal(t, "41", req.Age)
	assert.Equal(t, 1500, req.Time5KSeconds)

	req = predictRequest("other", "", "soon")
	assert.Equal(t, "other", req.Gender)
	assert.Nil(t, req.Age)
	assert.Equal(t, "soon", req.Time5KSeconds)
}

func TestModel(t *testing.T) {
	dir := isolateEnv(t)

	out, err := execute(t, "", "model", "--json")
	require.NoError(t, err)
	var meta prediction.Metadata
	require.NoError(t, json.Unmarshal([]byte(out), &meta))
	assert.False(t, meta.Loaded)
	assert.Equal(t, prediction.HeuristicVersion, meta.Version)

	path := filepath.Join(dir, "models", "model.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(linearModel), 0o600))

	out, err = execute(t, "", "model")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:  2024.05")
	assert.Contains(t, out, "Loaded:   true")
	assert.Contains(t, out, "Features: time_5km_seconds, age, gender_male")
}

func TestCache(t *testing.T) {
	dir := isolateEnv(t)

	t.Run("requires persistent tier", func(t *testing.T) {
		_, err := execute(t, "", "cache", "clear")
		assert.ErrorIs(t, err, errNoPersistentCache)
	})

	t.Run("clear and purge", func(t *testing.T) {
		t.Setenv("CACHE_PATH", filepath.Join(dir, "replies.db"))

		out, err := execute(t, "", "cache", "clear")
		require.NoError(t, err)
		assert.Equal(t, "0 cached replies removed\n", out)

		out, err = execute(t, "", "cache", "purge", "--json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"removed":0}`, out)
	})
}

func TestConfigFlag_MissingFile(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestServe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	isolateEnv(t)

	port := freePort(t)
	t.Setenv("SERVER_PORT", strconv.Itoa(port))
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("LOGGING_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, &globalFlags{})
	}()

	url := fmt.Sprintf("http://localhost:%d/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
