// Package metrics holds the Prometheus collectors for the file type service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fileentity"

var (
	// httpRequestsTotal counts handled requests by route pattern and status.
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// wizardStepsTotal counts wizard transitions by the state reached.
	wizardStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_steps_total",
			Help:      "Total number of upload wizard steps by resulting state",
		},
		[]string{"state"},
	)

	// wizardOutcomesTotal counts finished sessions.
	wizardOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_outcomes_total",
			Help:      "Total number of upload sessions by outcome",
		},
		[]string{"outcome"}, // committed, abandoned, rejected, expired
	)

	uploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Histogram of accepted upload sizes in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	uploadsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_active",
			Help:      "Number of uploads currently holding a limiter slot",
		},
	)

	// adminOperationsTotal counts file type administration calls.
	adminOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_operations_total",
			Help:      "Total number of file type administration operations",
		},
		[]string{"operation", "status"}, // status: success, error
	)

	sessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Total number of expired upload sessions removed by the sweeper",
		},
	)

	allMetrics = []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDuration,
		wizardStepsTotal,
		wizardOutcomesTotal,
		uploadBytes,
		uploadsActive,
		adminOperationsTotal,
		sessionsSweptTotal,
	}
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// Registry returns the process registry with all collectors plus the Go
// and process collectors registered.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(allMetrics...)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	return registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a finished request.
func RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordWizardStep records that a session reached state.
func RecordWizardStep(state string) {
	wizardStepsTotal.WithLabelValues(state).Inc()
}

// RecordWizardOutcome records how a session ended.
func RecordWizardOutcome(outcome string) {
	wizardOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordUploadSize records an accepted upload.
func RecordUploadSize(bytes int64) {
	uploadBytes.Observe(float64(bytes))
}

// SetUploadsActive sets the number of uploads holding a slot.
func SetUploadsActive(n int) {
	uploadsActive.Set(float64(n))
}

// RecordAdminOperation records an administration call.
func RecordAdminOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	adminOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSessionsSwept adds n to the swept session count.
func RecordSessionsSwept(n int) {
	sessionsSweptTotal.Add(float64(n))
}
