package prediction

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the prediction engine.
type Metrics struct {
	Predictions        *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	ModelFallbacks     prometheus.Counter
	PredictedSeconds   prometheus.Histogram
}

// NewMetrics registers prediction metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Predictions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pacer_predictions_total",
					Help: "Total number of successful predictions by mode",
				},
				[]string{"mode"},
			),
			ValidationFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pacer_prediction_validation_failures_total",
					Help: "Total number of rejected prediction inputs by field",
				},
				[]string{"field"},
			),
			ModelFallbacks: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pacer_prediction_model_fallbacks_total",
					Help: "Total number of model predictions replaced by the heuristic",
				},
			),
			PredictedSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "pacer_predicted_seconds",
					Help:    "Predicted half-marathon finish times",
					Buckets: prometheus.LinearBuckets(3600, 1800, 7),
				},
			),
		}
	})
	return globalMetrics
}
