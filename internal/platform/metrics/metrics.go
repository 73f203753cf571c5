package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the wall compositor.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	regionLoadsTotal     prometheus.Counter
	regionLoadFailsTotal prometheus.Counter
	regionReloadsTotal   prometheus.Counter
	regionsCreatedTotal  prometheus.Counter
	regionsRetiredTotal  prometheus.Counter
	reconcilePassesTotal prometheus.Counter
	regionsActive        prometheus.Gauge
	regionsInError       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the compositor.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	regionLoadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_region_loads_total",
		Help: "Total number of content navigations started",
	})
	regionLoadFailsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_region_load_failures_total",
		Help: "Total number of content loads that ended in the error state",
	})
	regionReloadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_region_reloads_total",
		Help: "Total number of explicit region reloads",
	})
	regionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_regions_created_total",
		Help: "Total number of region instances created",
	})
	regionsRetiredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_regions_retired_total",
		Help: "Total number of region instances retired and torn down",
	})
	reconcilePassesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wall_reconcile_passes_total",
		Help: "Total number of reconciliation passes",
	})
	regionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wall_regions_active",
		Help: "Number of live region instances",
	})
	regionsInError := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wall_regions_error",
		Help: "Number of region instances currently in the error state",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		regionLoadsTotal,
		regionLoadFailsTotal,
		regionReloadsTotal,
		regionsCreatedTotal,
		regionsRetiredTotal,
		reconcilePassesTotal,
		regionsActive,
		regionsInError,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		errorsTotal:          errorsTotal,
		regionLoadsTotal:     regionLoadsTotal,
		regionLoadFailsTotal: regionLoadFailsTotal,
		regionReloadsTotal:   regionReloadsTotal,
		regionsCreatedTotal:  regionsCreatedTotal,
		regionsRetiredTotal:  regionsRetiredTotal,
		reconcilePassesTotal: reconcilePassesTotal,
		regionsActive:        regionsActive,
		regionsInError:       regionsInError,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncRegionLoads increments the navigation counter.
func (m *Metrics) IncRegionLoads() {
	m.regionLoadsTotal.Inc()
}

// IncRegionLoadFailures increments the failed-load counter.
func (m *Metrics) IncRegionLoadFailures() {
	m.regionLoadFailsTotal.Inc()
}

// IncRegionReloads increments the explicit-reload counter.
func (m *Metrics) IncRegionReloads() {
	m.regionReloadsTotal.Inc()
}

// IncRegionsCreated increments the regions created counter.
func (m *Metrics) IncRegionsCreated() {
	m.regionsCreatedTotal.Inc()
}

// IncRegionsRetired increments the regions retired counter.
func (m *Metrics) IncRegionsRetired() {
	m.regionsRetiredTotal.Inc()
}

// IncReconcilePasses increments the reconciliation pass counter.
func (m *Metrics) IncReconcilePasses() {
	m.reconcilePassesTotal.Inc()
}

// SetRegionsActive sets the live-region gauge.
func (m *Metrics) SetRegionsActive(n int) {
	m.regionsActive.Set(float64(n))
}

// SetRegionsInError sets the error-region gauge.
func (m *Metrics) SetRegionsInError(n int) {
	m.regionsInError.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (e.g. active regions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
