package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecommerce-platform/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, total_amount, status, shipping_address, payment_method,
	payment_status, created_at, updated_at`

// CreateOrder inserts an order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, user_id, total_amount, status, shipping_address, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.ID, order.UserID, order.TotalAmount, order.Status,
		order.ShippingAddress, order.PaymentMethod, order.PaymentStatus,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
		order.Items[i].OrderID = order.ID
	}

	return tx.Commit()
}

// GetOrder retrieves an order with its items
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.loadItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrders returns all orders, optionally filtered by status, newest first
func (s *Store) ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	return orders, s.loadItems(ctx, s.db, orders)
}

// ListOrdersByUser retrieves orders for a user, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	return orders, s.loadItems(ctx, s.db, orders)
}

// ListPendingOrdersWithProduct finds pending orders that contain productID
func (s *Store) ListPendingOrdersWithProduct(ctx context.Context, productID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.status = $1
		  AND EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.product_id = $2)
		ORDER BY o.created_at`,
		models.OrderStatusPending, productID)
	if err != nil {
		return nil, err
	}
	return orders, s.loadItems(ctx, s.db, orders)
}

// TransitionOrder sets the order status when the current status is one of from.
// A nil from applies the change unconditionally. The check and the write are a
// single UPDATE so concurrent transitions cannot both succeed.
func (s *Store) TransitionOrder(ctx context.Context, id string, to models.OrderStatus, from []models.OrderStatus) (*models.Order, error) {
	var allowed []string
	for _, st := range from {
		allowed = append(allowed, string(st))
	}

	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND ($3::text[] IS NULL OR status = ANY($3::text[]))
		RETURNING `+orderColumns,
		to, id, pq.Array(allowed))
	if errors.Is(err, sql.ErrNoRows) {
		var current models.OrderStatus
		lookupErr := s.db.GetContext(ctx, &current, "SELECT status FROM orders WHERE id = $1", id)
		if errors.Is(lookupErr, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
		}
		if lookupErr != nil {
			return nil, lookupErr
		}
		return nil, &models.TransitionError{OrderID: id, From: current, To: to}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	orders := []models.Order{order}
	if err := s.loadItems(ctx, s.db, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (s *Store) loadItems(ctx context.Context, q sqlx.QueryerContext, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, q, &items, `
		SELECT order_id, product_id, name, price, quantity
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}
