package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label cardinality is kept low on purpose: operation, method and status
// only. Remote IPs, owners, and caller names never appear as label values.
var (
	RequestsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_completed",
			Help: "Total number of completed HTTP requests by operation, method, and status",
		},
		[]string{"operation", "method", "status"},
	)

	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_ms",
			Help:    "Time to first byte of the response in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15),
		},
		[]string{"operation"},
	)

	RequestTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_time_ms",
			Help:    "Total request handling time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15),
		},
		[]string{"operation"},
	)

	InboundBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inbound_streamed_bytes",
			Help: "Total object bytes streamed in from clients",
		},
	)

	OutboundBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbound_streamed_bytes",
			Help: "Total object bytes streamed out to clients",
		},
	)

	DeletedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deleted_bytes",
			Help: "Total object bytes released by deletes",
		},
	)

	// Throttle observability.
	ThrottledRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_throttled_total",
			Help: "Total number of requests rejected by the throttle",
		},
	)

	HandledRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_handled_total",
			Help: "Total number of requests admitted by the throttle",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "throttle_queue_depth",
			Help: "Number of requests currently waiting for a throttle slot",
		},
	)

	SlotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "throttle_slots_in_use",
			Help: "Number of throttle slots currently occupied",
		},
	)

	// Placement refresh observability.
	RingRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_refreshes_total",
			Help: "Total placement snapshot refresh attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(RequestsCompleted)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(RequestTime)
	prometheus.MustRegister(InboundBytes)
	prometheus.MustRegister(OutboundBytes)
	prometheus.MustRegister(DeletedBytes)
	prometheus.MustRegister(ThrottledRequests)
	prometheus.MustRegister(HandledRequests)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(SlotsInUse)
	prometheus.MustRegister(RingRefreshes)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
