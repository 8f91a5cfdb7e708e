package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the API and its upstreams
type Metrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	quoteCache      *prometheus.CounterVec
	failovers       *prometheus.CounterVec
	breakerTrips    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xbridge_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xbridge_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xbridge_upstream_errors_total",
				Help: "Total number of failed routing API calls",
			},
			[]string{"endpoint"},
		),
		quoteCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xbridge_quote_cache_total",
				Help: "Quote cache lookups by result",
			},
			[]string{"result"},
		),
		failovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xbridge_provider_failovers_total",
				Help: "RPC endpoint failovers per chain",
			},
			[]string{"chain_id"},
		),
		breakerTrips: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "xbridge_breaker_trips_total",
				Help: "Times the routing API circuit breaker opened",
			},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.upstreamErrors,
		m.quoteCache,
		m.failovers,
		m.breakerTrips,
	)
	return m
}

// CacheResult counts a quote cache lookup
func (m *Metrics) CacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.quoteCache.WithLabelValues(result).Inc()
}

// UpstreamError counts a failed routing API call
func (m *Metrics) UpstreamError(endpoint string) {
	m.upstreamErrors.WithLabelValues(endpoint).Inc()
}

// Failover counts an RPC endpoint rotation
func (m *Metrics) Failover(chainID string) {
	m.failovers.WithLabelValues(chainID).Inc()
}

// BreakerTrip counts an opening of the routing API circuit breaker
func (m *Metrics) BreakerTrip(reason string) {
	m.breakerTrips.Inc()
}
