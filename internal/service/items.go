package service

import (
	"context"
	"fmt"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/metrics"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/pricing"
	"github.com/ashendes/rental-inventory/internal/reconcile"
	"github.com/ashendes/rental-inventory/internal/repository"
	log "github.com/sirupsen/logrus"
)

// ItemService manages items, their variants and their rate tiers
type ItemService struct {
	base
	items repository.ItemRepository
}

func NewItemService(items repository.ItemRepository, opts ...Option) *ItemService {
	return &ItemService{base: newBase(opts), items: items}
}

// load fetches an item the caller is allowed to see
func (s *ItemService) load(ctx context.Context, caller auth.Caller, id string) (*models.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(caller, item.StoreID) {
		return nil, apperr.NotFound("Item not found")
	}
	return item, nil
}

func (s *ItemService) Get(ctx context.Context, caller auth.Caller, id string) (*models.ItemResponse, error) {
	item, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	resp := models.NewItemResponse(item)
	return &resp, nil
}

// ListRoot returns the top-level items of a store with their variants
func (s *ItemService) ListRoot(ctx context.Context, caller auth.Caller, storeID string) ([]models.ItemResponse, error) {
	store, err := resolveStore(caller, storeID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.Find(ctx, repository.ItemFilter{StoreID: store, RootOnly: true})
	if err != nil {
		return nil, err
	}
	return models.NewItemResponses(items), nil
}

// Search matches item names case-insensitively. An empty keyword matches
// everything and an anonymous caller without storeID searches every store.
func (s *ItemService) Search(ctx context.Context, caller auth.Caller, storeID, keyword string) ([]models.ItemResponse, error) {
	store := storeID
	if caller.StoreID != "" {
		var err error
		if store, err = resolveStore(caller, storeID); err != nil {
			return nil, err
		}
	}
	items, err := s.items.Find(ctx, repository.ItemFilter{StoreID: store, Keyword: keyword})
	if err != nil {
		return nil, err
	}
	return models.NewItemResponses(items), nil
}

func (s *ItemService) validate(req *models.ItemRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	if err := checkRates(req.Rates); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(req.Children))
	for _, child := range req.Children {
		if child.ID == nil {
			continue
		}
		if _, dup := seen[*child.ID]; dup {
			return apperr.Validation("Validation failed", fmt.Sprintf("children: duplicate id %s", *child.ID))
		}
		seen[*child.ID] = struct{}{}
	}
	return nil
}

// Create stores a new item with its variants and tiers
func (s *ItemService) Create(ctx context.Context, caller auth.Caller, req models.ItemRequest) (*models.ItemResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	store, err := resolveStore(caller, req.StoreID)
	if err != nil {
		return nil, err
	}

	item := &models.Item{ID: s.newID(), StoreID: store}
	item.StampCreated(caller.UserID, s.now())
	if err := s.apply(caller, item, req); err != nil {
		return nil, err
	}

	if err := s.items.Add(ctx, item); err != nil {
		return nil, err
	}

	s.recordLevels(item)
	metrics.MutationsTotal.WithLabelValues("item", "create").Inc()
	log.WithFields(log.Fields{
		"item_id":  item.ID,
		"store_id": store,
		"user_id":  caller.UserID,
		"children": len(item.Children),
		"rates":    len(item.Rates),
	}).Info("Item created")

	resp := models.NewItemResponse(item)
	return &resp, nil
}

// Update replaces the item's fields and reconciles its variants and tiers.
// Variants are always written through their parent so the parent's
// quantity stays the sum of its children.
func (s *ItemService) Update(ctx context.Context, caller auth.Caller, id string, req models.ItemRequest) (*models.ItemResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if req.StoreID != "" && req.StoreID != item.StoreID {
		return nil, apperr.Validation("Validation failed", "storeId: cannot be changed")
	}
	if item.ParentID != nil && len(req.Children) > 0 {
		return nil, apperr.Validation("Validation failed", "children: a variant cannot have variants")
	}

	item.StampUpdated(caller.UserID, s.now())
	if err := s.apply(caller, item, req); err != nil {
		return nil, err
	}

	root, err := s.saveThroughRoot(ctx, caller, item)
	if err != nil {
		return nil, err
	}

	s.recordLevels(root)
	metrics.MutationsTotal.WithLabelValues("item", "update").Inc()
	log.WithFields(log.Fields{
		"item_id":  item.ID,
		"store_id": item.StoreID,
		"user_id":  caller.UserID,
		"quantity": item.Quantity,
	}).Info("Item updated")

	resp := models.NewItemResponse(item)
	return &resp, nil
}

// UpdateQuantity sets the stock of an item without variants
func (s *ItemService) UpdateQuantity(ctx context.Context, caller auth.Caller, id string, quantity int) (*models.ItemResponse, error) {
	if quantity < 0 {
		return nil, apperr.Validation("Validation failed", "quantity: must not be negative")
	}
	item, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if item.HasChildren() {
		return nil, apperr.Validation("Validation failed",
			"quantity: is derived from the variants of this item")
	}

	item.Quantity = quantity
	item.StampUpdated(caller.UserID, s.now())
	root, err := s.saveThroughRoot(ctx, caller, item)
	if err != nil {
		return nil, err
	}

	s.recordLevels(root)
	metrics.MutationsTotal.WithLabelValues("item", "quantity").Inc()
	log.WithFields(log.Fields{
		"item_id":  item.ID,
		"user_id":  caller.UserID,
		"quantity": quantity,
	}).Info("Item quantity updated")

	resp := models.NewItemResponse(item)
	return &resp, nil
}

// Delete removes an item together with its variants, their tiers and the
// package lines that reference any of them
func (s *ItemService) Delete(ctx context.Context, caller auth.Caller, id string) error {
	item, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}

	if item.ParentID == nil {
		if err := s.items.Remove(ctx, id); err != nil {
			return err
		}
	} else {
		parent, err := s.items.GetByID(ctx, *item.ParentID)
		if err != nil {
			return err
		}
		kept := parent.Children[:0]
		for _, child := range parent.Children {
			if child.ID != id {
				kept = append(kept, child)
			}
		}
		parent.Children = kept
		parent.RecomputeQuantity()
		parent.StampUpdated(caller.UserID, s.now())
		if err := s.items.Update(ctx, parent); err != nil {
			return err
		}
		s.recordLevels(parent)
	}

	metrics.ForgetItem(item.StoreID, item.ID)
	for _, child := range item.Children {
		metrics.ForgetItem(child.StoreID, child.ID)
	}
	metrics.MutationsTotal.WithLabelValues("item", "delete").Inc()
	log.WithFields(log.Fields{
		"item_id":  id,
		"store_id": item.StoreID,
		"user_id":  caller.UserID,
		"children": len(item.Children),
	}).Info("Item deleted")
	return nil
}

// Rate resolves the daily rate for a rental of days and prices it
func (s *ItemService) Rate(ctx context.Context, caller auth.Caller, id string, days int) (*models.RateQuoteResponse, error) {
	item, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.QuoteFor(item.Rates, days)
	metrics.RateLookups.WithLabelValues("item", rateOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	resp := quoteResponse(item.ID, quote)
	return &resp, nil
}

// PrimeMetrics publishes the stored quantity of every item
func (s *ItemService) PrimeMetrics(ctx context.Context) error {
	items, err := s.items.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		metrics.SetInventoryLevel(item.StoreID, item.ID, item.Quantity)
	}
	log.WithField("items", len(items)).Info("Inventory metrics primed")
	return nil
}

// apply copies the request onto item and reconciles its tiers and variants
func (s *ItemService) apply(caller auth.Caller, item *models.Item, req models.ItemRequest) error {
	now := s.now()
	item.Name = req.Name
	item.Description = req.Description
	item.Quantity = req.Quantity
	item.Price = req.Price

	item.Rates = reconcileRates(item.Rates, req.Rates,
		func(r *models.ItemRate) int { return r.MinDays },
		func(r *models.ItemRate, in models.RateRequest) {
			r.DailyRate = in.DailyRate
			r.IsActive = in.Active()
			r.StampUpdated(caller.UserID, now)
		},
		func(in models.RateRequest) *models.ItemRate {
			r := &models.ItemRate{
				ID:        s.newID(),
				ItemID:    item.ID,
				MinDays:   in.MinDays,
				DailyRate: in.DailyRate,
				IsActive:  in.Active(),
			}
			r.StampCreated(caller.UserID, now)
			return r
		},
	)

	current := make(map[string]struct{}, len(item.Children))
	for _, child := range item.Children {
		current[child.ID] = struct{}{}
	}
	for _, in := range req.Children {
		if in.ID == nil {
			continue
		}
		if _, ok := current[*in.ID]; !ok {
			return apperr.NotFound("Child item %s not found", *in.ID)
		}
	}

	plan := reconcile.Reconcile(item.Children, req.Children,
		func(c *models.Item) string { return c.ID },
		func(in models.ChildItemRequest) (string, bool) {
			if in.ID == nil {
				return "", false
			}
			return *in.ID, true
		},
	)
	item.Children = plan.Apply(
		func(c *models.Item, in models.ChildItemRequest) {
			copyChild(c, in)
			c.StampUpdated(caller.UserID, now)
		},
		func(in models.ChildItemRequest) *models.Item {
			parentID := item.ID
			c := &models.Item{ID: s.newID(), StoreID: item.StoreID, ParentID: &parentID}
			copyChild(c, in)
			c.StampCreated(caller.UserID, now)
			return c
		},
	)

	item.RecomputeQuantity()
	return nil
}

func copyChild(c *models.Item, in models.ChildItemRequest) {
	c.Name = in.Name
	c.Description = in.Description
	c.Quantity = in.Quantity
	c.Price = in.Price
}

// saveThroughRoot persists item. A variant is written as part of its parent,
// whose quantity is recomputed first; the root aggregate is returned.
func (s *ItemService) saveThroughRoot(ctx context.Context, caller auth.Caller, item *models.Item) (*models.Item, error) {
	if item.ParentID == nil {
		if err := s.items.Update(ctx, item); err != nil {
			return nil, err
		}
		return item, nil
	}

	parent, err := s.items.GetByID(ctx, *item.ParentID)
	if err != nil {
		return nil, err
	}
	replaced := false
	for i, child := range parent.Children {
		if child.ID == item.ID {
			parent.Children[i] = item
			replaced = true
		}
	}
	if !replaced {
		return nil, apperr.Unexpected("Item hierarchy is inconsistent",
			fmt.Errorf("item %s is not a child of %s", item.ID, *item.ParentID))
	}
	parent.RecomputeQuantity()
	parent.StampUpdated(caller.UserID, s.now())
	if err := s.items.Update(ctx, parent); err != nil {
		return nil, err
	}
	return parent, nil
}

func (s *ItemService) recordLevels(root *models.Item) {
	metrics.SetInventoryLevel(root.StoreID, root.ID, root.Quantity)
	for _, child := range root.Children {
		metrics.SetInventoryLevel(child.StoreID, child.ID, child.Quantity)
	}
}
