package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the sync agent.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	submissionsTotal   *prometheus.CounterVec
	geofenceRejections *prometheus.CounterVec
	deliveriesTotal    *prometheus.CounterVec
	queuePending       prometheus.Gauge
	queueFailed        prometheus.Gauge
}

// NewMetricsService registers the agent's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_submissions_total",
		Help: "Attendance submissions by outcome",
	}, []string{"outcome"})

	geofenceRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_rejections_total",
		Help: "Geofence validation rejections by reason",
	}, []string{"reason"})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_deliveries_total",
		Help: "Remote delivery attempts by result",
	}, []string{"result"})

	queuePending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_pending",
		Help: "Items currently pending offline delivery",
	})

	queueFailed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_failed",
		Help: "Items that exhausted their retry budget",
	})

	registry.MustRegister(requestDuration, requestTotal, submissionsTotal,
		geofenceRejections, deliveriesTotal, queuePending, queueFailed)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		submissionsTotal:   submissionsTotal,
		geofenceRejections: geofenceRejections,
		deliveriesTotal:    deliveriesTotal,
		queuePending:       queuePending,
		queueFailed:        queueFailed,
	}
}

// Handler exposes the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records request metrics from the gin middleware.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordSubmission counts a submission outcome (direct, queued, rejected).
func (s *MetricsService) RecordSubmission(outcome string) {
	s.submissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordGeofenceRejection counts a failed validation by reason code.
func (s *MetricsService) RecordGeofenceRejection(reason models.GeofenceReason) {
	s.geofenceRejections.WithLabelValues(string(reason)).Inc()
}

// RecordDelivery counts a remote delivery attempt result (success, retry).
func (s *MetricsService) RecordDelivery(result string) {
	s.deliveriesTotal.WithLabelValues(result).Inc()
}

// UpdateQueueDepth reflects the queue's badge counters as gauges.
func (s *MetricsService) UpdateQueueDepth(status models.QueueStatus) {
	s.queuePending.Set(float64(status.Pending))
	s.queueFailed.Set(float64(status.Failed))
}
