package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecommerce-platform/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, price, inventory, category, image_url,
	is_active, created_at, updated_at`

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, inventory, category, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, p.Inventory, p.Category, p.ImageURL, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves active products, optionally in one category
func (s *Store) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	var products []models.Product
	var err error
	if category == "" {
		err = s.db.SelectContext(ctx, &products,
			"SELECT "+productColumns+" FROM products WHERE is_active ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &products,
			"SELECT "+productColumns+" FROM products WHERE is_active AND category = $1 ORDER BY created_at DESC", category)
	}
	return products, err
}

// UpdateProduct writes the catalog fields of p. Stock is never written here;
// p.Inventory is refreshed with the current level.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	err := s.db.QueryRowxContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, category = $4,
		    image_url = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING inventory, updated_at`,
		p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.IsActive, p.ID,
	).Scan(&p.Inventory, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, p.ID)
	}
	return err
}

// SetInventory overwrites a product's stock level
func (s *Store) SetInventory(ctx context.Context, id string, inventory int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET inventory = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+productColumns, inventory, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ApplyOrderPlaced decrements stock for each item, flooring at zero. It is
// idempotent per order: a repeated ORDER_PLACED, or one arriving after the
// order's ORDER_CANCELLED, changes nothing.
func (s *Store) ApplyOrderPlaced(ctx context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error) {
	return s.applyAdjustment(ctx, models.EventOrderPlaced, orderID, items)
}

// ApplyOrderCancelled restores stock for each item once per order, and only if
// the order's ORDER_PLACED was applied.
func (s *Store) ApplyOrderCancelled(ctx context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error) {
	return s.applyAdjustment(ctx, models.EventOrderCancelled, orderID, items)
}

func (s *Store) applyAdjustment(ctx context.Context, kind models.EventKind, orderID string, items []models.StockItem) (models.AdjustmentResult, error) {
	var result models.AdjustmentResult

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_key, event_type) VALUES ($1, $2)
		ON CONFLICT (event_key) DO NOTHING`,
		models.ProcessedEventKey(kind, orderID), kind)
	if err != nil {
		return result, fmt.Errorf("failed to record processed event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		result.Outcome = models.AdjustmentDuplicate
		return result, tx.Commit()
	}

	var update string
	switch kind {
	case models.EventOrderPlaced:
		cancelled, err := processed(ctx, tx, models.ProcessedEventKey(models.EventOrderCancelled, orderID))
		if err != nil {
			return result, err
		}
		if cancelled {
			result.Outcome = models.AdjustmentSuperseded
			return result, tx.Commit()
		}
		update = `UPDATE products SET inventory = GREATEST(inventory - $1, 0), updated_at = NOW()
			WHERE id = $2 RETURNING id, name, inventory`
	case models.EventOrderCancelled:
		placed, err := processed(ctx, tx, models.ProcessedEventKey(models.EventOrderPlaced, orderID))
		if err != nil {
			return result, err
		}
		if !placed {
			result.Outcome = models.AdjustmentNoop
			return result, tx.Commit()
		}
		update = `UPDATE products SET inventory = inventory + $1, updated_at = NOW()
			WHERE id = $2 RETURNING id, name, inventory`
	default:
		return result, fmt.Errorf("no inventory adjustment for %s", kind)
	}

	for _, item := range items {
		var change models.StockChange
		err := tx.GetContext(ctx, &change, update, item.Quantity, item.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			result.Missing = append(result.Missing, item.ProductID)
			continue
		}
		if err != nil {
			return models.AdjustmentResult{}, fmt.Errorf("failed to adjust inventory for %s: %w", item.ProductID, err)
		}
		result.Changes = mergeChange(result.Changes, change)
	}

	if err := tx.Commit(); err != nil {
		return models.AdjustmentResult{}, err
	}
	result.Outcome = models.AdjustmentApplied
	return result, nil
}

func processed(ctx context.Context, tx *sqlx.Tx, key string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_key = $1)", key)
	return exists, err
}

// mergeChange keeps one entry per product holding its latest stock level
func mergeChange(changes []models.StockChange, c models.StockChange) []models.StockChange {
	for i := range changes {
		if changes[i].ProductID == c.ProductID {
			changes[i] = c
			return changes
		}
	}
	return append(changes, c)
}
