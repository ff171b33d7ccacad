package redisstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/go-redis/redis/v8"
)

type packageRepository struct {
	client *redis.Client
}

func packageCreated(p *models.Package) (int64, string) { return p.CreatedAt.UnixNano(), p.ID }

func (r *packageRepository) GetByID(ctx context.Context, id string) (*models.Package, error) {
	pkg, err := loadDoc[models.Package](ctx, r.client, packageKey(id))
	if err != nil {
		return nil, translate(err, "Package")
	}
	if err := r.attachItems(ctx, []*models.Package{pkg}); err != nil {
		return nil, translate(err, "Package")
	}
	return pkg, nil
}

func (r *packageRepository) GetAll(ctx context.Context) ([]*models.Package, error) {
	return r.Find(ctx, repository.PackageFilter{})
}

func (r *packageRepository) Find(ctx context.Context, filter repository.PackageFilter) ([]*models.Package, error) {
	index := allPackagesKey
	if filter.StoreID != "" {
		index = storePackagesKey(filter.StoreID)
	}
	ids, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, translate(err, "Package")
	}
	packages, err := loadDocs[models.Package](ctx, r.client, keysOf(packageKey, ids))
	if err != nil {
		return nil, translate(err, "Package")
	}
	sortByCreation(packages, packageCreated)
	if err := r.attachItems(ctx, packages); err != nil {
		return nil, translate(err, "Package")
	}
	return packages, nil
}

// attachItems loads the item referenced by every line so callers can show
// item names
func (r *packageRepository) attachItems(ctx context.Context, packages []*models.Package) error {
	seen := make(map[string]struct{})
	var ids []string
	for _, pkg := range packages {
		for _, line := range pkg.Items {
			if _, ok := seen[line.ItemID]; !ok {
				seen[line.ItemID] = struct{}{}
				ids = append(ids, line.ItemID)
			}
		}
	}
	items, err := loadDocs[models.Item](ctx, r.client, keysOf(itemKey, ids))
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, pkg := range packages {
		sort.Slice(pkg.Items, func(i, j int) bool { return pkg.Items[i].ItemID < pkg.Items[j].ItemID })
		for _, line := range pkg.Items {
			line.Item = byID[line.ItemID]
		}
	}
	return nil
}

func (r *packageRepository) Add(ctx context.Context, pkg *models.Package) error {
	found, err := exists(ctx, r.client, packageKey(pkg.ID))
	if err != nil {
		return translate(err, "Package")
	}
	if found {
		return apperr.Validation("Validation failed", "duplicate key: package "+pkg.ID)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return writePackages(ctx, pipe, []*models.Package{pkg})
	})
	return translate(err, "Package")
}

// Update replaces the stored package with its lines and rates
func (r *packageRepository) Update(ctx context.Context, pkg *models.Package) error {
	current, err := loadDoc[models.Package](ctx, r.client, packageKey(pkg.ID))
	if err != nil {
		return translate(err, "Package")
	}

	kept := make(map[string]struct{}, len(pkg.Items))
	for _, line := range pkg.Items {
		kept[line.ItemID] = struct{}{}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, line := range current.Items {
			if _, ok := kept[line.ItemID]; !ok {
				pipe.SRem(ctx, itemPackagesKey(line.ItemID), pkg.ID)
			}
		}
		if current.StoreID != pkg.StoreID {
			pipe.SRem(ctx, storePackagesKey(current.StoreID), pkg.ID)
		}
		return writePackages(ctx, pipe, []*models.Package{pkg})
	})
	return translate(err, "Package")
}

func (r *packageRepository) Remove(ctx context.Context, id string) error {
	pkg, err := loadDoc[models.Package](ctx, r.client, packageKey(id))
	if err != nil {
		return translate(err, "Package")
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, packageKey(id))
		pipe.SRem(ctx, allPackagesKey, id)
		pipe.SRem(ctx, storePackagesKey(pkg.StoreID), id)
		for _, line := range pkg.Items {
			pipe.SRem(ctx, itemPackagesKey(line.ItemID), id)
		}
		return nil
	})
	return translate(err, "Package")
}

// writePackages queues the documents and index entries of packages
func writePackages(ctx context.Context, pipe redis.Pipeliner, packages []*models.Package) error {
	for _, pkg := range packages {
		data, err := json.Marshal(pkg)
		if err != nil {
			return err
		}
		pipe.Set(ctx, packageKey(pkg.ID), data, 0)
		pipe.SAdd(ctx, allPackagesKey, pkg.ID)
		pipe.SAdd(ctx, storePackagesKey(pkg.StoreID), pkg.ID)
		for _, line := range pkg.Items {
			pipe.SAdd(ctx, itemPackagesKey(line.ItemID), pkg.ID)
		}
	}
	return nil
}
