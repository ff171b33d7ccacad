package patterns

import (
	"fmt"
	"time"

	"github.com/ashendes/rental-inventory/internal/metrics"
)

// Bulkhead bounds how many calls run at once
type Bulkhead struct {
	semaphore chan struct{}
	name      string
	service   string
	wait      time.Duration
}

// NewBulkhead creates a bulkhead with size slots. A caller gives up after
// waiting wait for a slot.
func NewBulkhead(size int, wait time.Duration, name, service string) *Bulkhead {
	if size < 1 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		name:      name,
		service:   service,
		wait:      wait,
	}
}

// Execute runs fn once a slot is free
func (b *Bulkhead) Execute(fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()

		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()

		return fn()

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: timeout acquiring slot", b.name)
	}
}

// Name returns the bulkhead name
func (b *Bulkhead) Name() string {
	return b.name
}
