package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Registry operation metrics
	registryOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation", "outcome"},
	)

	registryOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registry_operation_duration_seconds",
			Help:    "Duration of registry operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"operation"},
	)

	// Notification metrics
	registryEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_events_total",
			Help: "Total number of registry notification events emitted",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		registryOperationsTotal,
		registryOperationDuration,
		registryEventsTotal,
	)
}

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordOperation records metrics for a registry operation
func RecordOperation(operation, outcome string, duration time.Duration) {
	registryOperationsTotal.WithLabelValues(operation, outcome).Inc()
	registryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEvent records an emitted notification event
func RecordEvent(eventType string) {
	registryEventsTotal.WithLabelValues(eventType).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
