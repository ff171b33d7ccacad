package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RateResponse represents a rate tier in responses
type RateResponse struct {
	ID        string          `json:"id"`
	MinDays   int             `json:"minDays"`
	DailyRate decimal.Decimal `json:"dailyRate"`
	IsActive  bool            `json:"isActive"`
}

// ItemResponse represents an item with its variants and tiers
type ItemResponse struct {
	ID          string          `json:"id"`
	StoreID     string          `json:"storeId"`
	ParentID    *string         `json:"parentId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	HasChildren bool            `json:"hasChildren"`
	Children    []ItemResponse  `json:"children,omitempty"`
	Rates       []RateResponse  `json:"rates,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PackageItemResponse represents a package line
type PackageItemResponse struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// PackageResponse represents a package with its lines and tiers
type PackageResponse struct {
	ID          string                `json:"id"`
	StoreID     string                `json:"storeId"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	BasePrice   decimal.Decimal       `json:"basePrice"`
	Items       []PackageItemResponse `json:"items"`
	Rates       []RateResponse        `json:"rates"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// RateQuoteResponse is the applicable tier for a rental length
type RateQuoteResponse struct {
	ID        string          `json:"id"`
	Days      int             `json:"days"`
	MinDays   int             `json:"minDays"`
	DailyRate decimal.Decimal `json:"dailyRate"`
	Total     decimal.Decimal `json:"total"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Storage     string    `json:"storage"`
}

// NewItemResponse maps an item aggregate for output. Children are ordered by
// creation time and tiers by MinDays.
func NewItemResponse(item *Item) ItemResponse {
	resp := ItemResponse{
		ID:          item.ID,
		StoreID:     item.StoreID,
		ParentID:    item.ParentID,
		Name:        item.Name,
		Description: item.Description,
		Quantity:    item.Quantity,
		Price:       item.Price,
		HasChildren: item.HasChildren(),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}

	children := append([]*Item(nil), item.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})
	for _, child := range children {
		resp.Children = append(resp.Children, NewItemResponse(child))
	}

	for _, rate := range item.Rates {
		resp.Rates = append(resp.Rates, RateResponse{
			ID:        rate.ID,
			MinDays:   rate.MinDays,
			DailyRate: rate.DailyRate,
			IsActive:  rate.IsActive,
		})
	}
	sortRates(resp.Rates)
	return resp
}

// NewItemResponses maps a list of items
func NewItemResponses(items []*Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewItemResponse(item))
	}
	return out
}

// NewPackageResponse maps a package aggregate for output
func NewPackageResponse(pkg *Package) PackageResponse {
	resp := PackageResponse{
		ID:          pkg.ID,
		StoreID:     pkg.StoreID,
		Name:        pkg.Name,
		Description: pkg.Description,
		BasePrice:   pkg.BasePrice,
		Items:       make([]PackageItemResponse, 0, len(pkg.Items)),
		Rates:       make([]RateResponse, 0, len(pkg.Rates)),
		CreatedAt:   pkg.CreatedAt,
		UpdatedAt:   pkg.UpdatedAt,
	}
	for _, line := range pkg.Items {
		resp.Items = append(resp.Items, PackageItemResponse{
			ItemID:   line.ItemID,
			ItemName: line.ItemName(),
			Quantity: line.Quantity,
		})
	}
	sort.Slice(resp.Items, func(i, j int) bool {
		return resp.Items[i].ItemID < resp.Items[j].ItemID
	})
	for _, rate := range pkg.Rates {
		resp.Rates = append(resp.Rates, RateResponse{
			ID:        rate.ID,
			MinDays:   rate.MinDays,
			DailyRate: rate.DailyRate,
			IsActive:  rate.IsActive,
		})
	}
	sortRates(resp.Rates)
	return resp
}

// NewPackageResponses maps a list of packages
func NewPackageResponses(pkgs []*Package) []PackageResponse {
	out := make([]PackageResponse, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, NewPackageResponse(pkg))
	}
	return out
}

func sortRates(rates []RateResponse) {
	sort.Slice(rates, func(i, j int) bool {
		return rates[i].MinDays < rates[j].MinDays
	})
}
