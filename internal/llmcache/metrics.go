package llmcache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the reply cache.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Clears    prometheus.Counter
	Size      prometheus.Gauge
}

// NewMetrics registers the reply cache metrics once per process and returns
// them:
//   - pacer_llmcache_hits_total
//   - pacer_llmcache_misses_total
//   - pacer_llmcache_evictions_total
//   - pacer_llmcache_clears_total
//   - pacer_llmcache_entries
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Hits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pacer_llmcache_hits_total",
				Help: "Total number of model replies served from cache",
			}),
			Misses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pacer_llmcache_misses_total",
				Help: "Total number of cache misses that triggered a model call",
			}),
			Evictions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pacer_llmcache_evictions_total",
				Help: "Total number of replies evicted by the LRU policy",
			}),
			Clears: promauto.NewCounter(prometheus.CounterOpts{
				Name: "pacer_llmcache_clears_total",
				Help: "Total number of administrative cache clears",
			}),
			Size: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "pacer_llmcache_entries",
				Help: "Current number of replies held in memory",
			}),
		}
	})
	return globalMetrics
}
