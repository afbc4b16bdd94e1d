// Package metrics holds the Prometheus collectors exported by the recipebox backend.
// A nil *Metrics is valid and records nothing, so components can run without it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes
const (
	OutcomeFresh     = "fresh"     // served from a cache entry younger than its TTL
	OutcomeRefreshed = "refreshed" // fetched from the catalog and written back
	OutcomeStale     = "stale"     // catalog failed, expired entry served
	OutcomeEmpty     = "empty"     // catalog failed and nothing was cached
)

// Metrics bundles every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups     *prometheus.CounterVec
	catalogRequests  *prometheus.CounterVec
	favoritesPersist *prometheus.CounterVec
	favoritesCount   prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_cache_lookups_total",
			Help: "Catalog query cache lookups by operation and outcome.",
		}, []string{"operation", "outcome"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_catalog_requests_total",
			Help: "Outbound catalog requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
		favoritesPersist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_favorites_persist_total",
			Help: "Favorites persistence writes by result.",
		}, []string{"result"}),
		favoritesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recipebox_favorites_count",
			Help: "Number of favorited recipes held in memory.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recipebox_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recipebox_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.catalogRequests,
		m.favoritesPersist,
		m.favoritesCount,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCacheLookup counts one cache read-through by operation and outcome.
// All Observe and Set methods are no-ops on a nil *Metrics.
func (m *Metrics) ObserveCacheLookup(operation, outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(operation, outcome).Inc()
}

// ObserveCatalogRequest counts one upstream catalog call by endpoint and result.
func (m *Metrics) ObserveCatalogRequest(endpoint, result string) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(endpoint, result).Inc()
}

// ObserveFavoritesPersist counts one favorites write, labelled ok or error.
func (m *Metrics) ObserveFavoritesPersist(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.favoritesPersist.WithLabelValues(result).Inc()
}

// SetFavoritesCount records how many favorites are held in memory.
func (m *Metrics) SetFavoritesCount(n int) {
	if m == nil {
		return
	}
	m.favoritesCount.Set(float64(n))
}

// ObserveHTTPRequest counts a served request and records its latency.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
