package gormstore

import (
	"context"

	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type packageRepository struct {
	db *gorm.DB
}

func (r *packageRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_id") }).
		Preload("Items.Item").
		Preload("Rates")
}

func (r *packageRepository) GetByID(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	if err := r.withRelations(ctx).First(&pkg, "package_id = ?", id).Error; err != nil {
		return nil, translate(err, "Package")
	}
	return &pkg, nil
}

func (r *packageRepository) GetAll(ctx context.Context) ([]*models.Package, error) {
	return r.Find(ctx, repository.PackageFilter{})
}

func (r *packageRepository) Find(ctx context.Context, filter repository.PackageFilter) ([]*models.Package, error) {
	query := r.withRelations(ctx).Order("created_at").Order("package_id")
	if filter.StoreID != "" {
		query = query.Where("store_id = ?", filter.StoreID)
	}

	var packages []*models.Package
	if err := query.Find(&packages).Error; err != nil {
		return nil, translate(err, "Package")
	}
	return packages, nil
}

func (r *packageRepository) Add(ctx context.Context, pkg *models.Package) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(pkg).Error; err != nil {
			return err
		}
		if len(pkg.Items) > 0 {
			if err := tx.Omit(clause.Associations).Create(pkg.Items).Error; err != nil {
				return err
			}
		}
		if len(pkg.Rates) > 0 {
			if err := tx.Create(pkg.Rates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Package")
}

// Update replaces the stored package, its lines and its rates
func (r *packageRepository) Update(ctx context.Context, pkg *models.Package) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("package_id").First(&models.Package{}, "package_id = ?", pkg.ID).Error; err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(pkg).Error; err != nil {
			return err
		}

		lineIDs := make([]string, 0, len(pkg.Items))
		for _, line := range pkg.Items {
			lineIDs = append(lineIDs, line.ID)
		}
		staleLines := tx.Where("package_id = ?", pkg.ID)
		if len(lineIDs) > 0 {
			staleLines = staleLines.Where("package_item_id NOT IN ?", lineIDs)
		}
		if err := staleLines.Delete(&models.PackageItem{}).Error; err != nil {
			return err
		}
		for _, line := range pkg.Items {
			if err := tx.Omit(clause.Associations).Save(line).Error; err != nil {
				return err
			}
		}

		rateIDs := make([]string, 0, len(pkg.Rates))
		for _, rate := range pkg.Rates {
			rateIDs = append(rateIDs, rate.ID)
		}
		staleRates := tx.Where("package_id = ?", pkg.ID)
		if len(rateIDs) > 0 {
			staleRates = staleRates.Where("package_rate_id NOT IN ?", rateIDs)
		}
		if err := staleRates.Delete(&models.PackageRate{}).Error; err != nil {
			return err
		}
		for _, rate := range pkg.Rates {
			if err := tx.Save(rate).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Package")
}

func (r *packageRepository) Remove(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("package_id").First(&models.Package{}, "package_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("package_id = ?", id).Delete(&models.PackageItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("package_id = ?", id).Delete(&models.PackageRate{}).Error; err != nil {
			return err
		}
		return tx.Where("package_id = ?", id).Delete(&models.Package{}).Error
	})
	return translate(err, "Package")
}
