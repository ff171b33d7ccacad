package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/rental-inventory/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes when a circuit opens and how long it stays open
type BreakerSettings struct {
	MaxRequests  uint32        // requests allowed through while half-open
	Interval     time.Duration // window over which failures are counted
	Timeout      time.Duration // time spent open before probing again
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings trips at 60% failures over at least 3 requests
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     15 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// CircuitBreakerWrapper wraps gobreaker with metrics
type CircuitBreakerWrapper struct {
	*gobreaker.CircuitBreaker
	name    string
	service string
}

// NewCircuitBreaker creates a new circuit breaker with Prometheus metrics.
// Errors for which isSuccessful returns true do not count as failures; nil
// counts every error.
func NewCircuitBreaker(name, service string, settings BreakerSettings, isSuccessful func(error) bool) *CircuitBreakerWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(float64(stateValue(to)))

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})

	// Initialize the metric with the current state (closed by default)
	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &CircuitBreakerWrapper{
		CircuitBreaker: cb,
		name:           name,
		service:        service,
	}
}

// Execute runs a function through the circuit breaker with metrics
func (cb *CircuitBreakerWrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(fn)

	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.service, cb.name).Inc()
		return result, FormatError(cb.name, err)
	}

	return result, nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreakerWrapper) GetState() string {
	return cb.State().String()
}

// GetStateValue returns numeric value for the state (0=closed, 1=open, 2=half-open)
func (cb *CircuitBreakerWrapper) GetStateValue() int {
	return stateValue(cb.State())
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return -1
	}
}

// ErrCircuitOpen is wrapped by errors returned while the circuit rejects calls
var ErrCircuitOpen = errors.New("circuit open")

// FormatError formats an error message with circuit breaker info
func FormatError(circuitName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s is open (service unavailable): %w", circuitName, ErrCircuitOpen)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state: %w", circuitName, ErrCircuitOpen)
	}
	return err
}
