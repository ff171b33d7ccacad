package models

import (
	"testing"
	"time"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecomputeQuantity(t *testing.T) {
	parent := &Item{
		Quantity: 999,
		Children: []*Item{{Quantity: 5}, {Quantity: 5}},
	}
	parent.RecomputeQuantity()
	assert.Equal(t, 10, parent.Quantity)

	childless := &Item{Quantity: 7}
	childless.RecomputeQuantity()
	assert.Equal(t, 7, childless.Quantity)
}

func TestAuditStamps(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var a Audit
	a.StampCreated(3, created)

	assert.Equal(t, 3, a.CreatedByID)
	assert.Equal(t, created, a.CreatedAt)
	require.NotNil(t, a.UpdatedByID)
	assert.Equal(t, 3, *a.UpdatedByID)

	a.StampUpdated(4, created.Add(time.Hour))
	assert.Equal(t, 3, a.CreatedByID)
	assert.Equal(t, 4, *a.UpdatedByID)
	assert.Equal(t, created.Add(time.Hour), a.UpdatedAt)
}

func TestRateRequestActiveDefaultsToTrue(t *testing.T) {
	inactive := false
	assert.True(t, RateRequest{MinDays: 1}.Active())
	assert.False(t, RateRequest{MinDays: 1, IsActive: &inactive}.Active())
}

func TestValidatorAcceptsValidItem(t *testing.T) {
	v := NewValidator()
	req := ItemRequest{
		Name:  "Tent",
		Price: decimal.NewFromInt(10),
		Rates: []RateRequest{
			{MinDays: 1, DailyRate: decimal.NewFromInt(50)},
			{MinDays: 3, DailyRate: decimal.NewFromInt(45)},
		},
		Children: []ChildItemRequest{{Name: "Size XL", Quantity: 4}},
	}
	assert.NoError(t, v.ValidateStruct(&req))
}

func TestValidatorReportsFieldErrors(t *testing.T) {
	v := NewValidator()
	req := ItemRequest{
		Quantity: -1,
		Price:    decimal.NewFromFloat(-0.5),
		Rates: []RateRequest{
			{MinDays: 0, DailyRate: decimal.NewFromInt(5)},
		},
	}

	err := v.ValidateStruct(&req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "name: is required")
	assert.Contains(t, appErr.Details, "quantity: must not be negative")
	assert.Contains(t, appErr.Details, "price: must not be negative")
	assert.Contains(t, appErr.Details, "rates[0].minDays: must be greater than 0")
}

func TestValidatorRejectsDuplicateKeys(t *testing.T) {
	v := NewValidator()
	pkg := PackageRequest{
		Name: "Camping set",
		Items: []PackageItemRequest{
			{ItemID: "a", Quantity: 1},
			{ItemID: "a", Quantity: 2},
		},
		Rates: []RateRequest{
			{MinDays: 2, DailyRate: decimal.NewFromInt(10)},
			{MinDays: 2, DailyRate: decimal.NewFromInt(9)},
		},
	}

	err := v.ValidateStruct(pkg)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details, "items: must not contain duplicate ItemID values")
	assert.Contains(t, appErr.Details, "rates: must not contain duplicate MinDays values")
}

func TestNewPackageResponseSortsAndNamesLines(t *testing.T) {
	pkg := &Package{
		ID:   "p1",
		Name: "Camping set",
		Items: []*PackageItem{
			{ItemID: "b", Quantity: 2, Item: &Item{Name: "Stove"}},
			{ItemID: "a", Quantity: 1},
		},
		Rates: []*PackageRate{
			{MinDays: 7, DailyRate: decimal.NewFromInt(40)},
			{MinDays: 1, DailyRate: decimal.NewFromInt(50)},
		},
	}

	resp := NewPackageResponse(pkg)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a", resp.Items[0].ItemID)
	assert.Equal(t, "", resp.Items[0].ItemName)
	assert.Equal(t, "Stove", resp.Items[1].ItemName)
	assert.Equal(t, 1, resp.Rates[0].MinDays)
	assert.Equal(t, 7, resp.Rates[1].MinDays)
}
