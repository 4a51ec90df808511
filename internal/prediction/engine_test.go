package prediction

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
	"github.com/fyrsmithlabs/pacer/internal/logging"
	"github.com/fyrsmithlabs/pacer/internal/telemetry"
)

// stubRegressor returns a fixed value, error or panic.
type stubRegressor struct {
	y     float64
	err   error
	panic bool
	got   []float64
}

func (s *stubRegressor) Predict(features []float64) (float64, error) {
	s.got = features
	if s.panic {
		panic("shape mismatch")
	}
	return s.y, s.err
}

func validResult() extraction.Result {
	return extraction.Result{
		Gender:        extraction.Male,
		Age:           extraction.IntPtr(30),
		Time5KSeconds: extraction.IntPtr(1470),
	}
}

func TestEngine_HeuristicRoundTrip(t *testing.T) {
	e := NewEngine(nil)

	res := e.Predict(context.Background(), validResult())

	require.True(t, res.Success)
	assert.Equal(t, ModeHeuristic, res.Mode)
	assert.Equal(t, HeuristicVersion, res.ModelVersion)
	assert.Equal(t, 6556, res.Seconds)
	assert.GreaterOrEqual(t, res.Seconds, MinSeconds)
	assert.LessOrEqual(t, res.Seconds, MaxSeconds)
	assert.Equal(t, FormatDuration(res.Seconds), res.Formatted)
	assert.Equal(t, "1:49:16", res.Formatted)
	assert.InDelta(t, 6556/HalfMarathonKm/60, res.PaceMinPerKm, 1e-9)
	assert.Equal(t, "5:11", res.PaceFormatted)
	assert.Empty(t, res.Error)
}

func TestEngine_BoundaryRejection(t *testing.T) {
	e := NewEngine(nil)

	tests := []struct {
		name string
		r    extraction.Result
	}{
		{"age 14", extraction.Result{Gender: extraction.Male, Age: extraction.IntPtr(14), Time5KSeconds: extraction.IntPtr(1470)}},
		{"age 91", extraction.Result{Gender: extraction.Male, Age: extraction.IntPtr(91), Time5KSeconds: extraction.IntPtr(1470)}},
		{"time 539", extraction.Result{Gender: extraction.Male, Age: extraction.IntPtr(30), Time5KSeconds: extraction.IntPtr(539)}},
		{"time 3601", extraction.Result{Gender: extraction.Male, Age: extraction.IntPtr(30), Time5KSeconds: extraction.IntPtr(3601)}},
		{"gender absent", extraction.Result{Age: extraction.IntPtr(30), Time5KSeconds: extraction.IntPtr(1470)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Predict(context.Background(), tt.r)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.NotEmpty(t, res.Hint)
			assert.Zero(t, res.Seconds)
			assert.Empty(t, res.Mode)
		})
	}
}

func TestEngine_ModelPath(t *testing.T) {
	reg := &stubRegressor{y: 6400.4}
	h := NewModelHandle(reg, Metadata{Version: "lin-1", FeatureOrder: []string{FeatureTime5K, FeatureGenderMale}})
	e := NewEngine(h)

	res := e.Predict(context.Background(), validResult())

	require.True(t, res.Success)
	assert.Equal(t, ModeModel, res.Mode)
	assert.Equal(t, "lin-1", res.ModelVersion)
	assert.Equal(t, 6400, res.Seconds)
	assert.Equal(t, "1:46:40", res.Formatted)
	assert.Equal(t, []float64{1470, 1}, reg.got)
}

func TestEngine_ModelFallback(t *testing.T) {
	tests := []struct {
		name string
		reg  *stubRegressor
	}{
		{"error", &stubRegressor{err: errors.New("incompatible features")}},
		{"panic", &stubRegressor{panic: true}},
		{"nan", &stubRegressor{y: math.NaN()}},
		{"inf", &stubRegressor{y: math.Inf(1)}},
		{"zero", &stubRegressor{y: 0}},
		{"negative", &stubRegressor{y: -100}},
		{"rounds to zero", &stubRegressor{y: 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewTestLogger()
			h := NewModelHandle(tt.reg, Metadata{Version: "broken", FeatureOrder: []string{FeatureAge}})
			e := NewEngine(h, WithLogger(logger.Logger))

			res := e.Predict(context.Background(), validResult())

			require.True(t, res.Success)
			assert.Equal(t, ModeHeuristic, res.Mode)
			assert.Equal(t, HeuristicVersion, res.ModelVersion, "fallback must not report the rejected model's version")
			assert.Equal(t, Heuristic(Input{extraction.Male, 30, 1470}), res.Seconds)
			assert.Equal(t, "broken", e.Model().Version)
			logger.AssertLogged(t, zapcore.DebugLevel, "model prediction rejected")
		})
	}
}

func TestEngine_PredictRequest(t *testing.T) {
	e := NewEngine(nil)

	res := e.PredictRequest(context.Background(), Request{Gender: "female", Age: "41", Time5KSeconds: 1630.0})
	require.True(t, res.Success)
	assert.Equal(t, Heuristic(Input{extraction.Female, 41, 1630}), res.Seconds)

	res = e.PredictRequest(context.Background(), Request{Gender: "female", Age: "41", Time5KSeconds: "27:10"})
	assert.False(t, res.Success)
	assert.Equal(t, extraction.FieldTime5K, res.Field)
}

func TestEngine_Telemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	e := NewEngine(nil, WithTracer(tel.Tracer(instrumentationName)))

	e.Predict(context.Background(), validResult())

	tel.AssertSpanExists(t, "prediction.Predict")
	tel.AssertSpanAttribute(t, "prediction.Predict", "prediction.mode", "heuristic")
	tel.AssertSpanAttribute(t, "prediction.Predict", "prediction.seconds", int64(6556))
}

func TestEngine_Metrics(t *testing.T) {
	m := NewMetrics()
	require.Same(t, m, NewMetrics())
	e := NewEngine(nil, WithMetrics(m))

	heuristicBefore := testutil.ToFloat64(m.Predictions.WithLabelValues(string(ModeHeuristic)))
	ageBefore := testutil.ToFloat64(m.ValidationFailures.WithLabelValues(extraction.FieldAge))

	e.Predict(context.Background(), validResult())
	e.PredictRequest(context.Background(), Request{Gender: "male", Age: 91, Time5KSeconds: 1470})

	assert.Equal(t, heuristicBefore+1, testutil.ToFloat64(m.Predictions.WithLabelValues(string(ModeHeuristic))))
	assert.Equal(t, ageBefore+1, testutil.ToFloat64(m.ValidationFailures.WithLabelValues(extraction.FieldAge)))
}

func TestEngine_Model(t *testing.T) {
	assert.Equal(t, HeuristicVersion, NewEngine(nil).Model().Version)

	h := NewModelHandle(&stubRegressor{y: 1}, Metadata{Version: "v2", Source: "s3://b/k"})
	meta := NewEngine(h).Model()
	assert.Equal(t, "v2", meta.Version)
	assert.Equal(t, "s3://b/k", meta.Source)
	assert.True(t, meta.Loaded)
}
