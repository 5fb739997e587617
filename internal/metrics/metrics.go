package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Pricing metrics
	PriceEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_evaluations_total",
			Help: "Total number of price evaluations",
		},
		[]string{"trigger", "outcome"},
	)

	PriceEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_refresh_duration_seconds",
			Help:    "Duration of a full refresh including input fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	PricePublications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_publications_total",
			Help: "Total number of published price changes",
		},
	)

	CurrentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricing_current_price",
			Help: "Last published price per item",
		},
		[]string{"item_id"},
	)

	RuleFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_rule_fetch_failures_total",
			Help: "Total number of failed rule or sales state fetches",
		},
	)

	InvalidRules = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_invalid_rules_total",
			Help: "Total number of rules skipped during evaluation",
		},
		[]string{"item_id"},
	)

	WatchedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricing_watched_items",
			Help: "Number of items with a live refresh schedule",
		},
	)

	// Cache metrics
	RuleCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_rule_cache_hit_total",
			Help: "Total number of rule cache hits",
		},
	)

	RuleCacheMiss = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_rule_cache_miss_total",
			Help: "Total number of rule cache misses",
		},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Event publishing metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_events_published_total",
			Help: "Total number of price change events sent downstream",
		},
		[]string{"sink", "status"},
	)

	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordEvaluation records one refresh attempt
func RecordEvaluation(trigger, outcome string, duration time.Duration) {
	PriceEvaluations.WithLabelValues(trigger, outcome).Inc()
	PriceEvaluationDuration.Observe(duration.Seconds())
}

// RecordPublication records a published price change
func RecordPublication(itemID string, price float64) {
	PricePublications.Inc()
	CurrentPrice.WithLabelValues(itemID).Set(price)
}

// RecordRuleFetchFailure records a failed input fetch
func RecordRuleFetchFailure() {
	RuleFetchFailures.Inc()
}

// RecordInvalidRules records rules skipped during evaluation
func RecordInvalidRules(itemID string, count int) {
	if count <= 0 {
		return
	}
	InvalidRules.WithLabelValues(itemID).Add(float64(count))
}

// SetWatchedItems records the number of live schedules
func SetWatchedItems(n int) {
	WatchedItems.Set(float64(n))
}

// ForgetItem drops per-item series once an item is no longer watched
func ForgetItem(itemID string) {
	CurrentPrice.DeleteLabelValues(itemID)
	InvalidRules.DeleteLabelValues(itemID)
}

// RecordRuleCacheHit records a rule cache hit
func RecordRuleCacheHit() {
	RuleCacheHit.Inc()
}

// RecordRuleCacheMiss records a rule cache miss
func RecordRuleCacheMiss() {
	RuleCacheMiss.Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventPublished records a downstream publish attempt
func RecordEventPublished(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(sink, status).Inc()
}

// SetCircuitState records a circuit breaker transition
func SetCircuitState(name string, state int) {
	CircuitState.WithLabelValues(name).Set(float64(state))
}

// RecordError records an error
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}
