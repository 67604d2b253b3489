// Package metrics provides the centralized Prometheus metrics registry for
// the pricing service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	ValuationsComputedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "valuations_computed_total",
		Help:      "Total number of valuations computed",
	})
	ValuationsUnavailableTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "valuations_unavailable_total",
		Help:      "Total number of valuation attempts that could not be priced",
	})
	EdgesDetectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "edges_detected_total",
		Help:      "Total number of edges detected",
	})
	EdgesRetiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "edges_retired_total",
		Help:      "Total number of edges retired",
	})
	SweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "sweeps_total",
		Help:      "Total number of edge sweeps by sport and outcome",
	}, []string{"sport", "outcome"})
	TicketsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "tickets_submitted_total",
		Help:      "Total number of tickets submitted",
	})
	CorrelationPairsComputedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "correlation_pairs_computed_total",
		Help:      "Total number of pairwise correlations computed",
	})
	StatsSourceTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "prop_edge",
		Name:      "stats_source_trips_total",
		Help:      "Total number of stats source circuit breaker trips",
	})
)

// Gauge metrics
var (
	ActiveEdges = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prop_edge",
		Name:      "active_edges",
		Help:      "Number of currently active edges by sport",
	}, []string{"sport"})
	UserExposure = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prop_edge",
		Name:      "user_exposure",
		Help:      "Open submitted-ticket exposure per user",
	}, []string{"user_id"})
	RegisteredModels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "prop_edge",
		Name:      "registered_models",
		Help:      "Number of models in the registry",
	})
)

// Histogram metrics
var (
	ValuationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prop_edge",
		Name:      "valuation_duration_seconds",
		Help:      "Duration of single-prop valuations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prop_edge",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of full edge sweeps in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(ValuationsComputedTotal)
		registry.MustRegister(ValuationsUnavailableTotal)
		registry.MustRegister(EdgesDetectedTotal)
		registry.MustRegister(EdgesRetiredTotal)
		registry.MustRegister(SweepsTotal)
		registry.MustRegister(TicketsSubmittedTotal)
		registry.MustRegister(CorrelationPairsComputedTotal)
		registry.MustRegister(StatsSourceTripsTotal)

		registry.MustRegister(ActiveEdges)
		registry.MustRegister(UserExposure)
		registry.MustRegister(RegisteredModels)

		registry.MustRegister(ValuationDuration)
		registry.MustRegister(SweepDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordValuation records a priced valuation and its latency.
func RecordValuation(durationSeconds float64) {
	ValuationsComputedTotal.Inc()
	ValuationDuration.Observe(durationSeconds)
}

// RecordValuationUnavailable records a failed pricing attempt.
func RecordValuationUnavailable() {
	ValuationsUnavailableTotal.Inc()
}

// RecordEdgeDetected records an edge detection event.
func RecordEdgeDetected() {
	EdgesDetectedTotal.Inc()
}

// RecordEdgeRetired records an edge retirement event.
func RecordEdgeRetired() {
	EdgesRetiredTotal.Inc()
}

// RecordSweep records a completed sweep for a sport.
func RecordSweep(sport, outcome string, durationSeconds float64) {
	SweepsTotal.WithLabelValues(sport, outcome).Inc()
	SweepDuration.Observe(durationSeconds)
}

// RecordTicketSubmitted records a ticket submission event.
func RecordTicketSubmitted() {
	TicketsSubmittedTotal.Inc()
}

// RecordCorrelationPair records one computed pairwise correlation.
func RecordCorrelationPair() {
	CorrelationPairsComputedTotal.Inc()
}

// RecordStatsSourceTrip records a stats source circuit breaker trip.
func RecordStatsSourceTrip() {
	StatsSourceTripsTotal.Inc()
}

// UpdateActiveEdges updates the active edge gauge for a sport.
func UpdateActiveEdges(sport string, count float64) {
	ActiveEdges.WithLabelValues(sport).Set(count)
}

// UpdateUserExposure updates the exposure gauge for a user.
func UpdateUserExposure(userID string, amount float64) {
	UserExposure.WithLabelValues(userID).Set(amount)
}

// UpdateRegisteredModels updates the model registry gauge.
func UpdateRegisteredModels(count float64) {
	RegisteredModels.Set(count)
}
