package pricing

import (
	"fmt"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/shopspring/decimal"
)

// Tier is a daily-rate rule that applies from a minimum rental length
type Tier interface {
	Threshold() int
	Rate() decimal.Decimal
	Active() bool
}

// Quote is the outcome of resolving a rental length against a tier set
type Quote struct {
	Days      int
	MinDays   int
	DailyRate decimal.Decimal
	Total     decimal.Decimal
}

// ApplicableRate returns the active tier with the largest threshold that does
// not exceed days.
func ApplicableRate[T Tier](tiers []T, days int) (T, error) {
	var zero T
	if days < 1 {
		return zero, apperr.Validation("Validation failed", "days: must be greater than 0")
	}
	if len(tiers) == 0 {
		return zero, apperr.NotFound("No rates defined")
	}

	var (
		best  T
		found bool
		tie   bool
	)
	for _, t := range tiers {
		if !t.Active() || t.Threshold() > days {
			continue
		}
		switch {
		case !found || t.Threshold() > best.Threshold():
			best, found, tie = t, true, false
		case t.Threshold() == best.Threshold():
			tie = true
		}
	}

	if !found {
		return zero, apperr.NoApplicableRate("No applicable rate found for %d days", days)
	}
	if tie {
		return zero, apperr.Unexpected("Rate tiers are inconsistent",
			fmt.Errorf("more than one active tier with min days %d", best.Threshold()))
	}
	return best, nil
}

// QuoteFor resolves the applicable tier and prices the whole rental
func QuoteFor[T Tier](tiers []T, days int) (Quote, error) {
	tier, err := ApplicableRate(tiers, days)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Days:      days,
		MinDays:   tier.Threshold(),
		DailyRate: tier.Rate(),
		Total:     tier.Rate().Mul(decimal.NewFromInt(int64(days))),
	}, nil
}

// CheckUniqueThresholds rejects a tier set in which two tiers share MinDays
func CheckUniqueThresholds(thresholds []int) error {
	seen := make(map[int]struct{}, len(thresholds))
	for _, d := range thresholds {
		if _, dup := seen[d]; dup {
			return apperr.Validation("Validation failed",
				fmt.Sprintf("rates: duplicate minDays %d", d))
		}
		seen[d] = struct{}{}
	}
	return nil
}
