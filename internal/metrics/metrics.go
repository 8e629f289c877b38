package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flightbooking"

// Registry holds the service's Prometheus collectors.
type Registry struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Bookings
	BookingOperations *prometheus.CounterVec
	TxRetries         *prometheus.CounterVec

	// Cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Worker
	EventsConsumed *prometheus.CounterVec
	SeatDrift      prometheus.Gauge
}

// New registers all collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
		BookingOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_operations_total",
				Help:      "Booking engine operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tx_retries_total",
				Help:      "Transactions retried after a concurrent update",
			},
			[]string{"operation"},
		),
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits by key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses by key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		EventsConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_consumed_total",
				Help:      "Booking events handled by the worker, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		SeatDrift: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "seat_drift",
				Help:      "Seats whose status disagrees with confirmed bookings at the last audit",
			},
		),
	}
}

// Nop returns collectors registered nowhere, for callers that do not expose metrics.
func Nop() *Registry {
	return New(prometheus.NewRegistry())
}
