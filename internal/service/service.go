// Package service implements the item and package use cases on top of a
// repository.Store.
package service

import (
	"time"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/pricing"
	"github.com/ashendes/rental-inventory/internal/reconcile"
	"github.com/google/uuid"
)

// Option customises a service
type Option func(*base)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithIDGenerator replaces uuid.NewString, mainly for tests
func WithIDGenerator(newID func() string) Option {
	return func(b *base) { b.newID = newID }
}

type base struct {
	validator *models.Validator
	now       func() time.Time
	newID     func() string
}

func newBase(opts []Option) base {
	b := base{
		validator: models.NewValidator(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// resolveStore picks the store a new record or a listing belongs to. A store
// carried by the token wins; otherwise the request must name one.
func resolveStore(caller auth.Caller, requested string) (string, error) {
	switch {
	case caller.StoreID == "" && requested == "":
		return "", apperr.Validation("Validation failed", "storeId: is required")
	case caller.StoreID == "":
		return requested, nil
	case requested == "" || requested == caller.StoreID:
		return caller.StoreID, nil
	default:
		return "", apperr.Validation("Validation failed", "storeId: does not match the caller's store")
	}
}

// visible reports whether caller may see records of storeID. Callers without
// a store are not scoped.
func visible(caller auth.Caller, storeID string) bool {
	return caller.StoreID == "" || caller.StoreID == storeID
}

// rateRecord is implemented by the persisted tier types
type rateRecord interface {
	*models.ItemRate | *models.PackageRate
}

// reconcileRates brings tiers in line with the requested ones, matching by
// MinDays. newRate builds a record for a requested tier that does not exist.
func reconcileRates[R rateRecord](
	existing []R,
	requested []models.RateRequest,
	minDays func(R) int,
	update func(R, models.RateRequest),
	newRate func(models.RateRequest) R,
) []R {
	plan := reconcile.Reconcile(existing, requested,
		minDays,
		func(r models.RateRequest) (int, bool) { return r.MinDays, true },
	)
	return plan.Apply(update, newRate)
}

func checkRates(requested []models.RateRequest) error {
	thresholds := make([]int, 0, len(requested))
	for _, r := range requested {
		thresholds = append(thresholds, r.MinDays)
	}
	return pricing.CheckUniqueThresholds(thresholds)
}

func quoteResponse(id string, q pricing.Quote) models.RateQuoteResponse {
	return models.RateQuoteResponse{
		ID:        id,
		Days:      q.Days,
		MinDays:   q.MinDays,
		DailyRate: q.DailyRate,
		Total:     q.Total,
	}
}

func rateOutcome(err error) string {
	if err == nil {
		return "found"
	}
	return apperr.KindOf(err).String()
}
