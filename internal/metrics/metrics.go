// Package metrics provides Prometheus metrics for the console.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlc_mutations_total",
			Help: "Mutation attempts by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	mutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlc_mutation_duration_seconds",
			Help:    "Time from request to resolution of a mutation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	mutationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlc_mutation_items_total",
			Help: "Items (artifacts or rows) submitted in successful mutations",
		},
		[]string{"op"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlc_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder feeds mutation observations into the package metrics.
type Recorder struct{}

// RecordMutation records one mutation attempt.
func (Recorder) RecordMutation(op, outcome string, items int, duration time.Duration) {
	mutationsTotal.WithLabelValues(op, outcome).Inc()
	mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
	if outcome == "success" {
		mutationItems.WithLabelValues(op).Add(float64(items))
	}
}

// RecordHTTPRequest records a served request. path should be the route pattern, not the raw URL.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
