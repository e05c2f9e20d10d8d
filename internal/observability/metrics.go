package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	notificationsPublishedTotal *prometheus.CounterVec
	notificationFailuresTotal   *prometheus.CounterVec
	streamClientsActive         prometheus.Gauge

	uploadLatencySeconds prometheus.Histogram
	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec

	workflowTransitionsTotal *prometheus.CounterVec
	intentsReconciledTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "projtrack_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_notifications_published_total",
			Help: "Notifications persisted and fanned out, by type.",
		}, []string{"type"})

		notificationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_notification_failures_total",
			Help: "Notifications that could not be emitted after a successful mutation.",
		}, []string{"type"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "projtrack_notification_stream_clients",
			Help: "Live SSE and WebSocket notification subscribers.",
		})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "projtrack_upload_latency_seconds",
			Help:    "Time spent writing document binaries to storage.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_uploads_total",
			Help: "Documents stored, by MIME type.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_uploads_rejected_total",
			Help: "Uploads refused or failed, by reason.",
		}, []string{"reason"})

		workflowTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_workflow_transitions_total",
			Help: "Accepted status transitions, by entity and target state.",
		}, []string{"entity", "to"})

		intentsReconciledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "projtrack_intents_reconciled_total",
			Help: "Workflow intents handled by the reconciliation sweep, by kind and outcome.",
		}, []string{"kind", "outcome"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			notificationsPublishedTotal, notificationFailuresTotal, streamClientsActive,
			uploadLatencySeconds, uploadRequestsTotal, uploadRejectedTotal,
			workflowTransitionsTotal, intentsReconciledTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// NotificationsPublishedTotal exposes the published notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// NotificationFailures exposes the failed side-effect counter.
func NotificationFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationFailuresTotal
}

// StreamClientsActive exposes the live subscriber gauge.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}

// UploadLatency exposes the storage write histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// UploadRequests exposes the stored document counter.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the refused upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// WorkflowTransitions exposes the transition counter.
func WorkflowTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowTransitionsTotal
}

// IntentsReconciled exposes the sweep outcome counter.
func IntentsReconciled() *prometheus.CounterVec {
	RegisterMetrics()
	return intentsReconciledTotal
}
