package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Coordinator metrics
	OpsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvld_ops_processed_total",
			Help: "Total number of coordinator operations processed by type",
		},
		[]string{"op"},
	)

	SubscribersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cvld_subscribers_total",
			Help: "Current number of live event-stream subscribers",
		},
	)

	ObjectsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cvld_objects_total",
			Help: "Current number of objects in the store",
		},
	)

	QueriesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cvld_queries_active",
			Help: "Broadcast queries currently awaiting replies",
		},
	)

	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cvld_notifications_sent_total",
			Help: "Total number of frames delivered to subscribers",
		},
	)

	SendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cvld_send_failures_total",
			Help: "Total number of failed subscriber sends (each removes the subscriber)",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cvld_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cvld_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Persistence metrics
	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cvld_persist_failures_total",
			Help: "Total number of failed object persistence attempts",
		},
	)
)

// Register registers all metrics with the default prometheus registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		OpsProcessed,
		SubscribersTotal,
		ObjectsTotal,
		QueriesActive,
		NotificationsSent,
		SendFailures,
		APIRequestsTotal,
		APIRequestDuration,
		PersistFailures,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
