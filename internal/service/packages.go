package service

import (
	"context"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/metrics"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/pricing"
	"github.com/ashendes/rental-inventory/internal/reconcile"
	"github.com/ashendes/rental-inventory/internal/repository"
	log "github.com/sirupsen/logrus"
)

// PackageService manages packages, their lines and their rate tiers
type PackageService struct {
	base
	packages repository.PackageRepository
	items    repository.ItemRepository
}

func NewPackageService(packages repository.PackageRepository, items repository.ItemRepository, opts ...Option) *PackageService {
	return &PackageService{base: newBase(opts), packages: packages, items: items}
}

func (s *PackageService) load(ctx context.Context, caller auth.Caller, id string) (*models.Package, error) {
	pkg, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(caller, pkg.StoreID) {
		return nil, apperr.NotFound("Package not found")
	}
	return pkg, nil
}

func (s *PackageService) Get(ctx context.Context, caller auth.Caller, id string) (*models.PackageResponse, error) {
	pkg, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	resp := models.NewPackageResponse(pkg)
	return &resp, nil
}

func (s *PackageService) List(ctx context.Context, caller auth.Caller, storeID string) ([]models.PackageResponse, error) {
	store, err := resolveStore(caller, storeID)
	if err != nil {
		return nil, err
	}
	pkgs, err := s.packages.Find(ctx, repository.PackageFilter{StoreID: store})
	if err != nil {
		return nil, err
	}
	return models.NewPackageResponses(pkgs), nil
}

func (s *PackageService) validate(req *models.PackageRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}
	if err := checkRates(req.Rates); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, line := range req.Items {
		if _, dup := seen[line.ItemID]; dup {
			return apperr.Validation("Validation failed", "items: duplicate itemId "+line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
	}
	return nil
}

// lookupItems loads every item the request references. Items of other stores
// are reported as missing.
func (s *PackageService) lookupItems(ctx context.Context, storeID string, lines []models.PackageItemRequest) (map[string]*models.Item, error) {
	found := make(map[string]*models.Item, len(lines))
	for _, line := range lines {
		item, err := s.items.GetByID(ctx, line.ItemID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.NotFound("Item %s not found", line.ItemID)
			}
			return nil, err
		}
		if item.StoreID != storeID {
			return nil, apperr.NotFound("Item %s not found", line.ItemID)
		}
		found[item.ID] = item
	}
	return found, nil
}

func (s *PackageService) Create(ctx context.Context, caller auth.Caller, req models.PackageRequest) (*models.PackageResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	store, err := resolveStore(caller, req.StoreID)
	if err != nil {
		return nil, err
	}
	items, err := s.lookupItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	pkg := &models.Package{ID: s.newID(), StoreID: store}
	pkg.StampCreated(caller.UserID, s.now())
	s.apply(caller, pkg, req, items)

	if err := s.packages.Add(ctx, pkg); err != nil {
		return nil, err
	}

	metrics.PackagesTotal.WithLabelValues(store).Inc()
	metrics.MutationsTotal.WithLabelValues("package", "create").Inc()
	log.WithFields(log.Fields{
		"package_id": pkg.ID,
		"store_id":   store,
		"user_id":    caller.UserID,
		"lines":      len(pkg.Items),
		"rates":      len(pkg.Rates),
	}).Info("Package created")

	resp := models.NewPackageResponse(pkg)
	return &resp, nil
}

func (s *PackageService) Update(ctx context.Context, caller auth.Caller, id string, req models.PackageRequest) (*models.PackageResponse, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	pkg, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if req.StoreID != "" && req.StoreID != pkg.StoreID {
		return nil, apperr.Validation("Validation failed", "storeId: cannot be changed")
	}
	items, err := s.lookupItems(ctx, pkg.StoreID, req.Items)
	if err != nil {
		return nil, err
	}

	pkg.StampUpdated(caller.UserID, s.now())
	s.apply(caller, pkg, req, items)

	if err := s.packages.Update(ctx, pkg); err != nil {
		return nil, err
	}

	metrics.MutationsTotal.WithLabelValues("package", "update").Inc()
	log.WithFields(log.Fields{
		"package_id": pkg.ID,
		"store_id":   pkg.StoreID,
		"user_id":    caller.UserID,
		"lines":      len(pkg.Items),
	}).Info("Package updated")

	resp := models.NewPackageResponse(pkg)
	return &resp, nil
}

func (s *PackageService) Delete(ctx context.Context, caller auth.Caller, id string) error {
	pkg, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.packages.Remove(ctx, id); err != nil {
		return err
	}

	metrics.PackagesTotal.WithLabelValues(pkg.StoreID).Dec()
	metrics.MutationsTotal.WithLabelValues("package", "delete").Inc()
	log.WithFields(log.Fields{
		"package_id": id,
		"store_id":   pkg.StoreID,
		"user_id":    caller.UserID,
	}).Info("Package deleted")
	return nil
}

func (s *PackageService) Rate(ctx context.Context, caller auth.Caller, id string, days int) (*models.RateQuoteResponse, error) {
	pkg, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.QuoteFor(pkg.Rates, days)
	metrics.RateLookups.WithLabelValues("package", rateOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	resp := quoteResponse(pkg.ID, quote)
	return &resp, nil
}

// PrimeMetrics publishes the number of stored packages per store
func (s *PackageService) PrimeMetrics(ctx context.Context) error {
	pkgs, err := s.packages.GetAll(ctx)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, pkg := range pkgs {
		counts[pkg.StoreID]++
	}
	for store, n := range counts {
		metrics.PackagesTotal.WithLabelValues(store).Set(float64(n))
	}
	return nil
}

// apply copies the request onto pkg and reconciles its lines and tiers.
// items holds every item the request references.
func (s *PackageService) apply(caller auth.Caller, pkg *models.Package, req models.PackageRequest, items map[string]*models.Item) {
	now := s.now()
	pkg.Name = req.Name
	pkg.Description = req.Description
	pkg.BasePrice = req.BasePrice

	plan := reconcile.Reconcile(pkg.Items, req.Items,
		func(line *models.PackageItem) string { return line.ItemID },
		func(in models.PackageItemRequest) (string, bool) { return in.ItemID, true },
	)
	pkg.Items = plan.Apply(
		func(line *models.PackageItem, in models.PackageItemRequest) {
			line.Quantity = in.Quantity
			line.Item = items[in.ItemID]
		},
		func(in models.PackageItemRequest) *models.PackageItem {
			return &models.PackageItem{
				ID:        s.newID(),
				PackageID: pkg.ID,
				ItemID:    in.ItemID,
				Item:      items[in.ItemID],
				Quantity:  in.Quantity,
			}
		},
	)

	pkg.Rates = reconcileRates(pkg.Rates, req.Rates,
		func(r *models.PackageRate) int { return r.MinDays },
		func(r *models.PackageRate, in models.RateRequest) {
			r.DailyRate = in.DailyRate
			r.IsActive = in.Active()
			r.StampUpdated(caller.UserID, now)
		},
		func(in models.RateRequest) *models.PackageRate {
			r := &models.PackageRate{
				ID:        s.newID(),
				PackageID: pkg.ID,
				MinDays:   in.MinDays,
				DailyRate: in.DailyRate,
				IsActive:  in.Active(),
			}
			r.StampCreated(caller.UserID, now)
			return r
		},
	)
}
