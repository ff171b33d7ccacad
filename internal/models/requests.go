package models

import "github.com/shopspring/decimal"

// RateRequest describes one desired rate tier of an item or package
type RateRequest struct {
	MinDays   int             `json:"minDays" binding:"gt=0"`
	DailyRate decimal.Decimal `json:"dailyRate" binding:"gte=0"`
	IsActive  *bool           `json:"isActive"`
}

// Active defaults to true when the caller omits the flag
func (r RateRequest) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// ChildItemRequest describes a variant of a parent item. ID is set when the
// child already exists and is left empty for a new child.
type ChildItemRequest struct {
	ID          *string         `json:"id,omitempty"`
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=2000"`
	Quantity    int             `json:"quantity" binding:"gte=0"`
	Price       decimal.Decimal `json:"price" binding:"gte=0"`
}

// ItemRequest is the body of item create and update calls
type ItemRequest struct {
	StoreID     string             `json:"storeId" binding:"max=50"`
	Name        string             `json:"name" binding:"required,max=200"`
	Description string             `json:"description" binding:"max=2000"`
	Quantity    int                `json:"quantity" binding:"gte=0"`
	Price       decimal.Decimal    `json:"price" binding:"gte=0"`
	Rates       []RateRequest      `json:"rates" binding:"omitempty,unique=MinDays,dive"`
	Children    []ChildItemRequest `json:"children" binding:"omitempty,dive"`
}

// PackageItemRequest describes one desired package line
type PackageItemRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"gt=0"`
}

// PackageRequest is the body of package create and update calls
type PackageRequest struct {
	StoreID     string               `json:"storeId" binding:"max=50"`
	Name        string               `json:"name" binding:"required,max=100"`
	Description string               `json:"description" binding:"max=500"`
	BasePrice   decimal.Decimal      `json:"basePrice" binding:"gte=0"`
	Items       []PackageItemRequest `json:"items" binding:"omitempty,unique=ItemID,dive"`
	Rates       []RateRequest        `json:"rates" binding:"omitempty,unique=MinDays,dive"`
}
