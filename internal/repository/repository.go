// Package repository defines the storage contract shared by the relational and
// document store adapters.
package repository

import (
	"context"

	"github.com/ashendes/rental-inventory/internal/models"
)

// Repository is the small aggregate store every entity kind is persisted through.
// Implementations load and save whole aggregates: an item with its children and
// rates, a package with its lines and rates.
type Repository[T any, F any] interface {
	GetByID(ctx context.Context, id string) (*T, error)
	GetAll(ctx context.Context) ([]*T, error)
	Find(ctx context.Context, filter F) ([]*T, error)
	Add(ctx context.Context, entity *T) error
	// Update replaces the stored aggregate, deleting owned records that are
	// no longer part of it.
	Update(ctx context.Context, entity *T) error
	Remove(ctx context.Context, id string) error
}

// ItemFilter narrows an item query. Zero values do not filter.
type ItemFilter struct {
	StoreID  string
	RootOnly bool
	// Keyword matches item names case-insensitively
	Keyword string
}

// PackageFilter narrows a package query
type PackageFilter struct {
	StoreID string
}

type ItemRepository interface {
	Repository[models.Item, ItemFilter]
}

type PackageRepository interface {
	Repository[models.Package, PackageFilter]
}

// Store bundles the repositories of one storage backend
type Store interface {
	Items() ItemRepository
	Packages() PackageRepository
	// Driver names the backend, e.g. "postgres" or "redis"
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}
