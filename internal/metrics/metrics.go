// Package metrics holds the Prometheus collectors of the analytics service. A nil
// *Registry is valid and records nothing, so components can be built without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for the service
type Registry struct {
	reg *prometheus.Registry

	// Venue fetch metrics
	VenueFetches *prometheus.CounterVec
	VenueLatency *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec

	// Cache performance metrics
	CacheLookups *prometheus.CounterVec

	// Analytics output
	Signals       *prometheus.CounterVec
	Opportunities prometheus.Gauge

	// Transport
	HTTPRequests *prometheus.CounterVec
	WSClients    prometheus.Gauge
}

// NewRegistry creates the collectors and registers them, together with the Go runtime
// and process collectors, on a private registry.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "market_analytics"
	}

	r := &Registry{
		reg: prometheus.NewRegistry(),

		VenueFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "venue_fetches_total",
				Help:      "Exchange fetches by exchange, operation and result",
			},
			[]string{"exchange", "operation", "result"},
		),

		VenueLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "venue_fetch_duration_seconds",
				Help:      "Exchange fetch latency in seconds",
				Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"exchange", "operation"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "venue_breaker_state",
				Help:      "Circuit breaker state per exchange (0 closed, 1 half-open, 2 open)",
			},
			[]string{"exchange"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Read-through cache lookups by key family and result",
			},
			[]string{"family", "result"},
		),

		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Signals emitted by detector and direction",
			},
			[]string{"detector", "direction"},
		),

		Opportunities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "arbitrage_opportunities",
				Help:      "Opportunities in the most recent arbitrage scan",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected websocket clients",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.VenueFetches,
		r.VenueLatency,
		r.BreakerState,
		r.CacheLookups,
		r.Signals,
		r.Opportunities,
		r.HTTPRequests,
		r.WSClients,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveFetch records the outcome and latency of one venue call.
func (r *Registry) ObserveFetch(exchange, operation string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.VenueFetches.WithLabelValues(exchange, operation, result).Inc()
	r.VenueLatency.WithLabelValues(exchange, operation).Observe(time.Since(started).Seconds())
}

// SetBreakerState records a breaker transition.
func (r *Registry) SetBreakerState(exchange string, state float64) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(exchange).Set(state)
}

// CacheResult counts a cache hit or miss for a key family such as "ict" or "arb".
func (r *Registry) CacheResult(family string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(family, result).Inc()
}

// SignalEmitted counts one emitted signal.
func (r *Registry) SignalEmitted(detector, direction string) {
	if r == nil {
		return
	}
	r.Signals.WithLabelValues(detector, direction).Inc()
}

// SetOpportunities records the size of the latest scan.
func (r *Registry) SetOpportunities(n int) {
	if r == nil {
		return
	}
	r.Opportunities.Set(float64(n))
}

// HTTPRequest counts one served request.
func (r *Registry) HTTPRequest(route, status string) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, status).Inc()
}

// WSClientDelta adjusts the websocket client gauge.
func (r *Registry) WSClientDelta(delta float64) {
	if r == nil {
		return
	}
	r.WSClients.Add(delta)
}
