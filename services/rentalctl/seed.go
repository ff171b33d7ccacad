package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashendes/rental-inventory/internal/client"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/patterns"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// seedConcurrency bounds parallel create calls against the service
const seedConcurrency = 4

// Inventory is the seed file layout. Package lines name items instead of
// referencing ids, which are assigned by the service.
type Inventory struct {
	StoreID  string               `json:"storeId"`
	Items    []models.ItemRequest `json:"items"`
	Packages []SeedPackage        `json:"packages"`
}

type SeedPackage struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	BasePrice   decimal.Decimal      `json:"basePrice"`
	Lines       []SeedLine           `json:"lines"`
	Rates       []models.RateRequest `json:"rates"`
}

type SeedLine struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// SeedResult summarises what was created
type SeedResult struct {
	Items    int `json:"items"`
	Variants int `json:"variants"`
	Packages int `json:"packages"`
}

func seedFile(ctx context.Context, c *client.Client, path string) (SeedResult, error) {
	var inv Inventory
	if err := readJSON(path, &inv); err != nil {
		return SeedResult{}, err
	}
	return seed(ctx, c, inv)
}

// seed creates every item, then every package, fanning out through a bulkhead
func seed(ctx context.Context, c *client.Client, inv Inventory) (SeedResult, error) {
	bulkhead := patterns.NewBulkhead(seedConcurrency, patterns.SlowServiceTimeout, "seed", "rentalctl")

	var (
		mu     sync.Mutex
		byName = make(map[string]string)
		result SeedResult
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, req := range inv.Items {
		req := req
		req.StoreID = inv.StoreID
		g.Go(func() error {
			return bulkhead.Execute(func() error {
				item, err := c.CreateItem(gctx, req)
				if err != nil {
					return fmt.Errorf("item %q: %w", req.Name, err)
				}
				mu.Lock()
				defer mu.Unlock()
				byName[item.Name] = item.ID
				for _, child := range item.Children {
					byName[child.Name] = child.ID
				}
				result.Items++
				result.Variants += len(item.Children)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, p := range inv.Packages {
		req, err := packageRequest(inv.StoreID, p, byName)
		if err != nil {
			return result, err
		}
		g.Go(func() error {
			return bulkhead.Execute(func() error {
				if _, err := c.CreatePackage(gctx, req); err != nil {
					return fmt.Errorf("package %q: %w", req.Name, err)
				}
				mu.Lock()
				result.Packages++
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	log.WithFields(log.Fields{
		"items":    result.Items,
		"variants": result.Variants,
		"packages": result.Packages,
	}).Info("Seed complete")
	return result, nil
}

func packageRequest(storeID string, p SeedPackage, byName map[string]string) (models.PackageRequest, error) {
	req := models.PackageRequest{
		StoreID:     storeID,
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		Rates:       p.Rates,
	}
	for _, line := range p.Lines {
		id, ok := byName[line.Item]
		if !ok {
			return req, fmt.Errorf("package %q: unknown item %q", p.Name, line.Item)
		}
		req.Items = append(req.Items, models.PackageItemRequest{ItemID: id, Quantity: line.Quantity})
	}
	return req, nil
}
