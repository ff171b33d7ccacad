package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active requests in bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// InventoryLevel tracks the rentable quantity of every item
	InventoryLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_level",
			Help: "Current rentable quantity per item",
		},
		[]string{"store", "item"},
	)

	// PackagesTotal tracks how many packages each store offers
	PackagesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "packages_total",
			Help: "Number of packages per store",
		},
		[]string{"store"},
	)

	// MutationsTotal counts successful writes by entity and action
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_mutations_total",
			Help: "Total number of item and package writes",
		},
		[]string{"entity", "action"},
	)

	// RateLookups counts rate resolutions by outcome
	RateLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_lookups_total",
			Help: "Total number of daily rate lookups",
		},
		[]string{"entity", "outcome"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

// SetInventoryLevel records the quantity of an item
func SetInventoryLevel(store, item string, quantity int) {
	InventoryLevel.WithLabelValues(store, item).Set(float64(quantity))
}

// ForgetItem drops the series of a deleted item
func ForgetItem(store, item string) {
	InventoryLevel.DeleteLabelValues(store, item)
}
