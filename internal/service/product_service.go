package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService manages the catalog and stock levels
type ProductService struct {
	store   ProductStore
	emitter *Emitter
	cache   InventoryCache
	logger  *zap.Logger
}

// NewProductService creates a product service. cache may be nil.
func NewProductService(store ProductStore, emitter *Emitter, cache InventoryCache) *ProductService {
	return &ProductService{
		store:   store,
		emitter: emitter,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

type CreateProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Inventory   int      `json:"inventory"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"imageUrl"`
}

// UpdateProductRequest carries the fields to change; nil fields are kept
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Inventory   *int     `json:"inventory"`
	Category    *string  `json:"category"`
	ImageURL    *string  `json:"imageUrl"`
	IsActive    *bool    `json:"isActive"`
}

// ProductResult is a product after a write. Delivery is nil when no event was emitted.
type ProductResult struct {
	Product  *models.Product
	Delivery *Delivery
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return models.NewValidationError("name", "is required")
	}
	if p.Price < 0 {
		return models.NewValidationError("price", "must not be negative")
	}
	if p.Inventory < 0 {
		return models.NewValidationError("inventory", "must not be negative")
	}
	return nil
}

// CreateProduct adds a product and emits PRODUCT_CREATED
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*ProductResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	if req.Price == nil {
		return nil, models.NewValidationError("price", "is required")
	}
	p := &models.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Inventory:   req.Inventory,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		IsActive:    true,
	}
	if p.ImageURL == "" {
		p.ImageURL = models.DefaultProductImage
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	util.LoggerWithTrace(ctx, s.logger).Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("name", p.Name),
		zap.Int("inventory", p.Inventory))
	s.cacheInventory(ctx, p.ID, p.Inventory, p.UpdatedAt)

	d := s.emitter.Emit(ctx, models.ProductCreated{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Inventory: p.Inventory,
		Category:  p.Category,
		CreatedAt: p.CreatedAt,
	})
	return &ProductResult{Product: p, Delivery: &d}, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns active products, optionally in one category
func (s *ProductService) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	return s.store.ListProducts(ctx, category)
}

// UpdateProduct edits catalog fields. Inventory goes through the same
// absolute write as SetInventory and emits INVENTORY_UPDATED when it changes.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, req *UpdateProductRequest) (*ProductResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	if req.Inventory != nil && *req.Inventory < 0 {
		return nil, models.NewValidationError("inventory", "must not be negative")
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	result := &ProductResult{Product: p}
	if req.Inventory != nil && *req.Inventory != p.Inventory {
		updated, err := s.store.SetInventory(ctx, id, *req.Inventory)
		if err != nil {
			return nil, err
		}
		d := s.inventoryChanged(ctx, updated)
		result.Product = updated
		result.Delivery = &d
	}
	return result, nil
}

// SetInventory overwrites a product's stock and emits INVENTORY_UPDATED
func (s *ProductService) SetInventory(ctx context.Context, id string, inventory int) (*ProductResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.SetInventory")
	defer span.End()

	if inventory < 0 {
		return nil, models.NewValidationError("inventory", "must not be negative")
	}

	p, err := s.store.SetInventory(ctx, id, inventory)
	if err != nil {
		return nil, err
	}

	d := s.inventoryChanged(ctx, p)
	return &ProductResult{Product: p, Delivery: &d}, nil
}

func (s *ProductService) inventoryChanged(ctx context.Context, p *models.Product) Delivery {
	util.LoggerWithTrace(ctx, s.logger).Info("Inventory updated",
		zap.String("product_id", p.ID),
		zap.Int("inventory", p.Inventory))
	s.cacheInventory(ctx, p.ID, p.Inventory, p.UpdatedAt)

	return s.emitter.Emit(ctx, models.InventoryUpdated{
		ProductID: p.ID,
		Name:      p.Name,
		Inventory: p.Inventory,
		UpdatedAt: p.UpdatedAt,
	})
}

func (s *ProductService) cacheInventory(ctx context.Context, productID string, inventory int, version time.Time) {
	cacheInventory(ctx, s.cache, s.logger, productID, inventory, version)
}

// cacheInventory mirrors a stock level into the cache. The cache is advisory,
// so failures are only logged.
func cacheInventory(ctx context.Context, cache InventoryCache, logger *zap.Logger, productID string, inventory int, version time.Time) {
	if cache == nil {
		return
	}
	if version.IsZero() {
		version = time.Now()
	}
	if _, err := cache.SetInventory(ctx, productID, inventory, version); err != nil {
		logger.Warn("Failed to cache inventory",
			zap.String("product_id", productID),
			zap.Error(err))
	}
}
