package models

import "github.com/shopspring/decimal"

// Package represents a bundle of items rented together
type Package struct {
	ID          string          `gorm:"column:package_id;primaryKey;type:varchar(36)" json:"id"`
	StoreID     string          `gorm:"column:store_id;type:varchar(50);index;not null" json:"storeId"`
	Name        string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description string          `gorm:"column:description;type:varchar(500)" json:"description"`
	BasePrice   decimal.Decimal `gorm:"column:base_price;type:decimal(12,2);not null" json:"basePrice"`
	Audit       `gorm:"embedded"`

	// Relationships
	Items []*PackageItem `gorm:"foreignKey:PackageID" json:"items"`
	Rates []*PackageRate `gorm:"foreignKey:PackageID" json:"rates"`
}

// PackageItem is one line of a package: an item and how many of it
type PackageItem struct {
	ID        string `gorm:"column:package_item_id;primaryKey;type:varchar(36)" json:"id"`
	PackageID string `gorm:"column:package_id;type:varchar(36);not null;uniqueIndex:idx_package_items_item" json:"packageId"`
	ItemID    string `gorm:"column:item_id;type:varchar(36);not null;uniqueIndex:idx_package_items_item" json:"itemId"`
	Item      *Item  `gorm:"foreignKey:ItemID" json:"-"`
	Quantity  int    `gorm:"column:quantity;not null" json:"quantity"`
}

// ItemName returns the referenced item's name when it has been loaded
func (pi *PackageItem) ItemName() string {
	if pi.Item == nil {
		return ""
	}
	return pi.Item.Name
}

// PackageRate is one daily-rate tier of a package
type PackageRate struct {
	ID        string          `gorm:"column:package_rate_id;primaryKey;type:varchar(36)" json:"id"`
	PackageID string          `gorm:"column:package_id;type:varchar(36);not null;uniqueIndex:idx_package_rates_min_days" json:"packageId"`
	MinDays   int             `gorm:"column:min_days;not null;uniqueIndex:idx_package_rates_min_days" json:"minDays"`
	DailyRate decimal.Decimal `gorm:"column:daily_rate;type:decimal(12,2);not null" json:"dailyRate"`
	IsActive  bool            `gorm:"column:is_active;not null" json:"isActive"`
	Audit     `gorm:"embedded"`
}

func (r *PackageRate) Threshold() int        { return r.MinDays }
func (r *PackageRate) Rate() decimal.Decimal { return r.DailyRate }
func (r *PackageRate) Active() bool          { return r.IsActive }
