package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit holds the creator and updater stamps carried by every persisted record
type Audit struct {
	CreatedByID int       `gorm:"column:created_by_id;not null" json:"createdById"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedByID *int      `gorm:"column:updated_by_id" json:"updatedById,omitempty"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updatedAt"`
}

// StampCreated marks a new record. Creation also counts as the first update.
func (a *Audit) StampCreated(userID int, now time.Time) {
	a.CreatedByID = userID
	a.CreatedAt = now.UTC()
	a.StampUpdated(userID, now)
}

// StampUpdated marks a modified record
func (a *Audit) StampUpdated(userID int, now time.Time) {
	id := userID
	a.UpdatedByID = &id
	a.UpdatedAt = now.UTC()
}

// Item represents a rentable good, optionally a parent of variant items
type Item struct {
	ID          string          `gorm:"column:item_id;primaryKey;type:varchar(36)" json:"id"`
	StoreID     string          `gorm:"column:store_id;type:varchar(50);index;not null" json:"storeId"`
	ParentID    *string         `gorm:"column:parent_id;type:varchar(36);index" json:"parentId,omitempty"`
	Name        string          `gorm:"column:name;type:varchar(200);not null" json:"name"`
	Description string          `gorm:"column:description;type:text" json:"description"`
	Quantity    int             `gorm:"column:quantity;not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null" json:"price"`
	Audit       `gorm:"embedded"`

	// Relationships
	Children []*Item     `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Rates    []*ItemRate `gorm:"foreignKey:ItemID" json:"rates,omitempty"`
}

// HasChildren reports whether the item is a parent of variants
func (i *Item) HasChildren() bool {
	return len(i.Children) > 0
}

// RecomputeQuantity overwrites the quantity of a parent with the sum of its
// children. A childless item keeps its own quantity.
func (i *Item) RecomputeQuantity() {
	if !i.HasChildren() {
		return
	}
	total := 0
	for _, child := range i.Children {
		total += child.Quantity
	}
	i.Quantity = total
}

// ItemRate is one daily-rate tier of an item
type ItemRate struct {
	ID        string          `gorm:"column:item_rate_id;primaryKey;type:varchar(36)" json:"id"`
	ItemID    string          `gorm:"column:item_id;type:varchar(36);not null;uniqueIndex:idx_item_rates_min_days" json:"itemId"`
	MinDays   int             `gorm:"column:min_days;not null;uniqueIndex:idx_item_rates_min_days" json:"minDays"`
	DailyRate decimal.Decimal `gorm:"column:daily_rate;type:decimal(12,2);not null" json:"dailyRate"`
	IsActive  bool            `gorm:"column:is_active;not null" json:"isActive"`
	Audit     `gorm:"embedded"`
}

func (r *ItemRate) Threshold() int        { return r.MinDays }
func (r *ItemRate) Rate() decimal.Decimal { return r.DailyRate }
func (r *ItemRate) Active() bool          { return r.IsActive }
