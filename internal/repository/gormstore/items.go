package gormstore

import (
	"context"

	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type itemRepository struct {
	db *gorm.DB
}

func byCreation(db *gorm.DB) *gorm.DB {
	return db.Order("created_at").Order("item_id")
}

func (r *itemRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Children", byCreation).
		Preload("Children.Rates").
		Preload("Rates")
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	var item models.Item
	if err := r.withRelations(ctx).First(&item, "item_id = ?", id).Error; err != nil {
		return nil, translate(err, "Item")
	}
	return &item, nil
}

func (r *itemRepository) GetAll(ctx context.Context) ([]*models.Item, error) {
	return r.Find(ctx, repository.ItemFilter{})
}

func (r *itemRepository) Find(ctx context.Context, filter repository.ItemFilter) ([]*models.Item, error) {
	query := byCreation(r.withRelations(ctx))
	if filter.StoreID != "" {
		query = query.Where("store_id = ?", filter.StoreID)
	}
	if filter.RootOnly {
		query = query.Where("parent_id IS NULL")
	}
	if filter.Keyword != "" {
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(filter.Keyword))
	}

	var items []*models.Item
	if err := query.Find(&items).Error; err != nil {
		return nil, translate(err, "Item")
	}
	return items, nil
}

// Add inserts the item, its rates and its children with their rates
func (r *itemRepository) Add(ctx context.Context, item *models.Item) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
			return err
		}
		if err := createRates(tx, item.Rates); err != nil {
			return err
		}
		for _, child := range item.Children {
			if err := tx.Omit(clause.Associations).Create(child).Error; err != nil {
				return err
			}
			if err := createRates(tx, child.Rates); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Item")
}

// Update replaces the stored aggregate. Children and rates missing from item
// are deleted together with whatever references them.
func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("item_id").First(&models.Item{}, "item_id = ?", item.ID).Error; err != nil {
			return err
		}

		keep := make([]string, 0, len(item.Children))
		for _, child := range item.Children {
			keep = append(keep, child.ID)
		}
		var dropped []string
		orphans := tx.Model(&models.Item{}).Where("parent_id = ?", item.ID)
		if len(keep) > 0 {
			orphans = orphans.Where("item_id NOT IN ?", keep)
		}
		if err := orphans.Pluck("item_id", &dropped).Error; err != nil {
			return err
		}
		if err := deleteItems(tx, dropped); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return err
		}
		if err := replaceRates(tx, item.ID, item.Rates); err != nil {
			return err
		}
		for _, child := range item.Children {
			if err := tx.Omit(clause.Associations).Save(child).Error; err != nil {
				return err
			}
			if err := replaceRates(tx, child.ID, child.Rates); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Item")
}

// Remove deletes the item, its children, their rates and every package line
// referencing any of them
func (r *itemRepository) Remove(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("item_id").First(&models.Item{}, "item_id = ?", id).Error; err != nil {
			return err
		}
		var children []string
		if err := tx.Model(&models.Item{}).Where("parent_id = ?", id).Pluck("item_id", &children).Error; err != nil {
			return err
		}
		if err := deleteItems(tx, children); err != nil {
			return err
		}
		return deleteItems(tx, []string{id})
	})
	return translate(err, "Item")
}

func createRates(tx *gorm.DB, rates []*models.ItemRate) error {
	if len(rates) == 0 {
		return nil
	}
	return tx.Create(rates).Error
}

func replaceRates(tx *gorm.DB, itemID string, rates []*models.ItemRate) error {
	keep := make([]string, 0, len(rates))
	for _, rate := range rates {
		keep = append(keep, rate.ID)
	}
	stale := tx.Where("item_id = ?", itemID)
	if len(keep) > 0 {
		stale = stale.Where("item_rate_id NOT IN ?", keep)
	}
	if err := stale.Delete(&models.ItemRate{}).Error; err != nil {
		return err
	}
	for _, rate := range rates {
		if err := tx.Save(rate).Error; err != nil {
			return err
		}
	}
	return nil
}

// deleteItems removes childless items and the rows that reference them
func deleteItems(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("item_id IN ?", ids).Delete(&models.PackageItem{}).Error; err != nil {
		return err
	}
	if err := tx.Where("item_id IN ?", ids).Delete(&models.ItemRate{}).Error; err != nil {
		return err
	}
	return tx.Where("item_id IN ?", ids).Delete(&models.Item{}).Error
}
