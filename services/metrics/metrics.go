package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmeonline/enrollments/core/enrollment"
)

const namespace = "program_enrollments"

// Collector holds the service metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	batchOutcomes   *prometheus.CounterVec
	recordStatuses  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batchOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Enrollment batches processed, by endpoint and aggregate outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		recordStatuses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Enrollment records processed, by endpoint and resulting status.",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "code"},
		),
	}
	c.registry.MustRegister(
		c.batchOutcomes,
		c.recordStatuses,
		c.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveBatch records the aggregate outcome of a batch and the status of each of its keys.
func (c *Collector) ObserveBatch(endpoint string, res enrollment.BatchResult) {
	c.batchOutcomes.WithLabelValues(endpoint, res.Outcome().String()).Inc()
	for _, status := range res.Statuses {
		c.recordStatuses.WithLabelValues(endpoint, string(status)).Inc()
	}
}

func (c *Collector) ObserveRequest(method, route, code string, elapsed time.Duration) {
	c.requestDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
