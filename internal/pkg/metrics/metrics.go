package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "cartrack"

// Registry holds every agent metric; the status server exposes it on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// APIRequestsTotal counts backend requests.
	// result: success, network_error, status_error, api_error, decode_error
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of backend API requests.",
		},
		[]string{"method", "path", "result"},
	)

	// TokenRefreshTotal counts identity token refreshes after a token_expired response.
	TokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Identity token refreshes triggered by an expired token.",
		},
		[]string{"result"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Location batch upload attempts by result (success, failed, cancelled).",
		},
		[]string{"result"},
	)

	UploadLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_latency_seconds",
			Help:      "Latency of location batch uploads.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	FixesUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_fixes_uploaded_total",
			Help:      "Location fixes acknowledged by the backend.",
		},
	)

	// SessionState is 1 for the current session kind and 0 for the others.
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the active kind).",
		},
		[]string{"kind"},
	)

	LoaderAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_attempts_total",
			Help:      "Remote configuration and profile fetch attempts.",
		},
		[]string{"resource", "result"},
	)

	// IngestedEventsTotal counts vehicle bus messages by kind (property, location) and result.
	IngestedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_events_total",
			Help:      "Vehicle bus messages folded into telemetry.",
		},
		[]string{"kind", "result"},
	)

	ArchivedBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_batches_total",
			Help:      "Acknowledged batches written to object storage.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		APIRequestsTotal,
		TokenRefreshTotal,
		UploadsTotal,
		UploadLatency,
		FixesUploadedTotal,
		SessionState,
		LoaderAttemptsTotal,
		IngestedEventsTotal,
		ArchivedBatchesTotal,
	)
}

// Result maps an error to the success/failed label pair.
func Result(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
