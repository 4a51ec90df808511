package extraction

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/pacer/internal/extraction"

// Extraction paths, used as the metrics label.
const (
	PathQuick  = "quick"
	PathMerged = "merged"
)

// Outcome is a coordinated extraction with the tier results it merged.
type Outcome struct {
	Result  Result `json:"result"`
	Quick   Result `json:"quick"`
	Model   Result `json:"model"`
	LLMUsed bool   `json:"llm_used"`
}

// Path returns PathQuick when the model tier was not consulted.
func (o Outcome) Path() string {
	if o.LLMUsed {
		return PathMerged
	}
	return PathQuick
}

// Coordinator runs the quick pass and, when it leaves gaps, the model tier.
type Coordinator struct {
	quick   *PatternExtractor
	model   *ModelExtractor
	tracer  trace.Tracer
	metrics *Metrics
	logger  *logging.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTracer sets the tracer for extraction spans.
func WithTracer(t trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) { c.tracer = t }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a Coordinator. model may be nil.
func NewCoordinator(quick *PatternExtractor, model *ModelExtractor, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		quick:  quick,
		model:  model,
		tracer: otel.Tracer(instrumentationName),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.quick == nil {
		c.quick = NewPatternExtractor()
	}
	return c
}

// Extract returns the merged Result for text.
func (c *Coordinator) Extract(ctx context.Context, text string) Result {
	return c.Run(ctx, text).Result
}

// Run extracts from text. A complete quick pass is returned as is, without
// touching the model tier. Otherwise the model result fills the gaps; on a
// conflict the quick pass wins.
func (c *Coordinator) Run(ctx context.Context, text string) Outcome {
	ctx, span := c.tracer.Start(ctx, "extraction.Extract",
		trace.WithAttributes(attribute.Int("extraction.text_length", len(text))),
	)
	defer span.End()

	out := Outcome{Quick: c.quick.Extract(text)}
	out.Result = out.Quick

	if !out.Quick.Complete() && c.model.Available() {
		out.LLMUsed = true
		out.Model = c.model.Extract(ctx, text)
		out.Result = out.Quick.Merge(out.Model)
	}

	missing := out.Result.Missing()
	span.SetAttributes(
		attribute.Bool("extraction.llm_used", out.LLMUsed),
		attribute.Bool("extraction.complete", out.Result.Complete()),
		attribute.Int("extraction.missing", len(missing)),
	)

	if c.metrics != nil {
		c.metrics.Extractions.WithLabelValues(out.Path()).Inc()
		for _, m := range missing {
			c.metrics.MissingFields.WithLabelValues(m.Field).Inc()
		}
	}

	c.logger.Debug(ctx, "extraction finished",
		zap.String("path", out.Path()),
		zap.Bool("complete", out.Result.Complete()),
		zap.Int("missing", len(missing)),
	)

	return out
}
