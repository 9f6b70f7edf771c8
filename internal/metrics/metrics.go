// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the process-wide collectors.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	FetchesTotal      *prometheus.CounterVec
	ContextCharacters prometheus.Histogram
	RequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on the default registry.
// Repeated calls return the same instance.
//
// Metrics:
//   - reposum_requests_total{endpoint,status}
//   - reposum_fetches_total{outcome}
//   - reposum_context_characters
//   - reposum_request_duration_seconds{endpoint}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return globalMetrics
}

// NewMetricsWithRegistry registers the collectors on registry. Intended for tests
// that need isolated counters.
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	return newMetrics(promauto.With(registry))
}

func newMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reposum_requests_total",
				Help: "Total number of handled API requests",
			},
			[]string{"endpoint", "status"},
		),
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reposum_fetches_total",
				Help: "Total number of file content fetches by outcome",
			},
			[]string{"outcome"},
		),
		ContextCharacters: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reposum_context_characters",
				Help:    "Length in characters of assembled contexts",
				Buckets: prometheus.LinearBuckets(10000, 10000, 10),
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reposum_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"endpoint"},
		),
	}
}

// ObserveFetch counts one content fetch outcome.
func (metrics *Metrics) ObserveFetch(outcome string) {
	if metrics == nil {
		return
	}
	metrics.FetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one handled request.
func (metrics *Metrics) ObserveRequest(endpoint string, status string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	metrics.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveContext records the size of an assembled context.
func (metrics *Metrics) ObserveContext(characters int) {
	if metrics == nil {
		return
	}
	metrics.ContextCharacters.Observe(float64(characters))
}
