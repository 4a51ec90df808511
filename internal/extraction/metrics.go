package extraction

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the extraction pipeline.
type Metrics struct {
	Extractions   *prometheus.CounterVec
	MissingFields *prometheus.CounterVec
}

// NewMetrics registers extraction metrics once per process:
//   - pacer_extractions_total{path} - "quick" or "merged"
//   - pacer_extraction_missing_fields_total{field}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Extractions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pacer_extractions_total",
					Help: "Total number of extractions by path",
				},
				[]string{"path"},
			),
			MissingFields: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pacer_extraction_missing_fields_total",
					Help: "Total number of fields left absent after extraction",
				},
				[]string{"field"},
			),
		}
	})
	return globalMetrics
}
