// Package prediction estimates half-marathon finish times.
//
// Every prediction passes one validation gate, then tries the loaded
// regression model and falls back to a closed-form heuristic when the model
// is absent or its output is unusable. Valid input always yields a
// successful result.
package prediction

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/extraction"
	"github.com/fyrsmithlabs/pacer/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/pacer/internal/prediction"

// Mode records which predictor produced a result.
type Mode string

const (
	ModeModel     Mode = "model"
	ModeHeuristic Mode = "heuristic"
)

// Result is the outcome of one prediction. On failure only Success, Field,
// Error and Hint are set.
type Result struct {
	Success       bool    `json:"success"`
	Seconds       int     `json:"seconds,omitempty"`
	Formatted     string  `json:"formatted,omitempty"`
	PaceMinPerKm  float64 `json:"pace_min_per_km,omitempty"`
	PaceFormatted string  `json:"pace_formatted,omitempty"`
	Mode          Mode    `json:"mode,omitempty"`
	ModelVersion  string  `json:"model_version,omitempty"`
	Field         string  `json:"field,omitempty"`
	Error         string  `json:"error,omitempty"`
	Hint          string  `json:"hint,omitempty"`
}

// Engine runs predictions against a read-only model handle.
type Engine struct {
	handle  *ModelHandle
	tracer  trace.Tracer
	metrics *Metrics
	logger  *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer for prediction spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine. A nil handle means heuristic only.
func NewEngine(handle *ModelHandle, opts ...Option) *Engine {
	if handle == nil {
		handle = EmptyHandle()
	}
	e := &Engine{
		handle: handle,
		tracer: otel.Tracer(instrumentationName),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns metadata of the model the engine uses.
func (e *Engine) Model() Metadata {
	return e.handle.Metadata()
}

// Predict predicts from an extraction result.
func (e *Engine) Predict(ctx context.Context, r extraction.Result) Result {
	return e.PredictRequest(ctx, RequestFromResult(r))
}

// PredictRequest validates req and predicts.
func (e *Engine) PredictRequest(ctx context.Context, req Request) Result {
	ctx, span := e.tracer.Start(ctx, "prediction.Predict")
	defer span.End()

	in, verr := Validate(req)
	if verr != nil {
		span.SetAttributes(
			attribute.Bool("prediction.success", false),
			attribute.String("prediction.invalid_field", verr.Field),
		)
		span.SetStatus(codes.Error, verr.Reason)
		if e.metrics != nil {
			e.metrics.ValidationFailures.WithLabelValues(verr.Field).Inc()
		}
		e.logger.Debug(ctx, "prediction input rejected",
			zap.String("field", verr.Field),
			zap.String("reason", verr.Reason),
		)
		return Result{Success: false, Field: verr.Field, Error: verr.Reason, Hint: verr.Hint}
	}

	res := e.predict(ctx, in)

	span.SetAttributes(
		attribute.Bool("prediction.success", true),
		attribute.String("prediction.mode", string(res.Mode)),
		attribute.Int("prediction.seconds", res.Seconds),
	)
	if e.metrics != nil {
		e.metrics.Predictions.WithLabelValues(string(res.Mode)).Inc()
		e.metrics.PredictedSeconds.Observe(float64(res.Seconds))
	}
	return res
}

func (e *Engine) predict(ctx context.Context, in Input) Result {
	if e.handle.Loaded() {
		secs, err := e.modelSeconds(in)
		if err == nil {
			return newResult(secs, ModeModel, e.handle.meta.Version)
		}
		if e.metrics != nil {
			e.metrics.ModelFallbacks.Inc()
		}
		e.logger.Debug(ctx, "model prediction rejected, using heuristic", zap.Error(err))
	}
	return newResult(Heuristic(in), ModeHeuristic, HeuristicVersion)
}

// modelSeconds runs the regressor, rejecting errors, panics and non-finite
// or non-positive output.
func (e *Engine) modelSeconds(in Input) (secs int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("regressor panic: %v", r)
		}
	}()

	y, err := e.handle.regressor.Predict(BuildFeatures(in, e.handle.meta.FeatureOrder))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) || y <= 0 {
		return 0, fmt.Errorf("invalid model output %v", y)
	}
	if y > math.MaxInt32 {
		return 0, fmt.Errorf("model output %v out of range", y)
	}
	secs = int(math.Round(y))
	if secs <= 0 {
		return 0, fmt.Errorf("invalid model output %v", y)
	}
	return secs, nil
}

func newResult(secs int, mode Mode, version string) Result {
	return Result{
		Success:       true,
		Seconds:       secs,
		Formatted:     FormatDuration(secs),
		PaceMinPerKm:  PaceMinPerKm(secs),
		PaceFormatted: FormatPace(secs),
		Mode:          mode,
		ModelVersion:  version,
	}
}
