package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// IdempotencyTTL is how long an Idempotency-Key maps to the order it created
const IdempotencyTTL = 24 * time.Hour

// OrderService handles order business logic
type OrderService struct {
	store   OrderStore
	emitter *Emitter
	idem    IdempotencyStore
	logger  *zap.Logger
}

// NewOrderService creates a new order service. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewOrderService(store OrderStore, emitter *Emitter, idem IdempotencyStore) *OrderService {
	return &OrderService{
		store:   store,
		emitter: emitter,
		idem:    idem,
		logger:  util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID          string             `json:"userId"`
	Items           []OrderItemRequest `json:"items"`
	TotalAmount     *float64           `json:"totalAmount"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	IdempotencyKey  string             `json:"-"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderResult is an order after a state change plus what happened to its event
type OrderResult struct {
	Order    *models.Order
	Delivery Delivery
	// Replayed is set when an Idempotency-Key matched an earlier order; no event was emitted.
	Replayed bool
}

func (r *CreateOrderRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return models.NewValidationError("userId", "is required")
	}
	if len(r.Items) == 0 {
		return models.NewValidationError("items", "must contain at least one item")
	}
	for i, it := range r.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductID) == "" {
			return models.NewValidationError(field+".productId", "is required")
		}
		if it.Quantity < 1 {
			return models.NewValidationError(field+".quantity", "must be at least 1")
		}
		if it.Price < 0 {
			return models.NewValidationError(field+".price", "must not be negative")
		}
	}
	if r.TotalAmount == nil {
		return models.NewValidationError("totalAmount", "is required")
	}
	if *r.TotalAmount < 0 {
		return models.NewValidationError("totalAmount", "must not be negative")
	}
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return models.NewValidationError("shippingAddress", "is required")
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return models.NewValidationError("paymentMethod", "is required")
	}
	return nil
}

// CreateOrder persists a pending order and then publishes ORDER_PLACED
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()
	logger := util.LoggerWithTrace(ctx, s.logger)

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	orderID := uuid.New().String()

	claimed := false
	if req.IdempotencyKey != "" && s.idem != nil {
		stored, ok, err := s.idem.ClaimIdempotencyKey(ctx, idempotencyKey(req.IdempotencyKey), orderID, IdempotencyTTL)
		switch {
		case err != nil:
			logger.Warn("Idempotency check unavailable, creating order anyway",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		case !ok:
			return s.replay(ctx, req.IdempotencyKey, stored)
		default:
			claimed = true
		}
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          req.UserID,
		TotalAmount:     *req.TotalAmount,
		Status:          models.OrderStatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Items:           make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		if claimed {
			if relErr := s.idem.ReleaseIdempotencyKey(ctx, idempotencyKey(req.IdempotencyKey)); relErr != nil {
				logger.Warn("Failed to release idempotency key", zap.Error(relErr))
			}
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	span.SetAttributes(attribute.String("order.id", order.ID))
	logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("items", len(order.Items)))

	delivery := s.emitter.Emit(ctx, models.OrderPlaced{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       order.EventItems(),
		TotalAmount: order.TotalAmount,
		Status:      order.Status,
		CreatedAt:   order.CreatedAt,
	})

	return &OrderResult{Order: order, Delivery: delivery}, nil
}

func (s *OrderService) replay(ctx context.Context, key, orderID string) (*OrderResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, models.ErrOrderNotFound) {
		return nil, models.ErrRequestInProgress
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", order.ID))
	return &OrderResult{Order: order, Replayed: true}, nil
}

func idempotencyKey(key string) string {
	return "order:" + key
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.store.GetOrder(ctx, id)
}

// ListOrders returns all orders, optionally filtered by status
func (s *OrderService) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	st := models.OrderStatus(status)
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}
	return s.store.ListOrders(ctx, st)
}

// ListOrdersByUser returns a user's orders, newest first
func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

// UpdateStatus is the administrative override: any valid status may be set
// from any status. It emits ORDER_STATUS_UPDATED.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	to := models.OrderStatus(status)
	if !to.Valid() {
		util.OrderTransitionsRejected.WithLabelValues("set_status").Inc()
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, status)
	}

	order, err := s.store.TransitionOrder(ctx, id, to, nil)
	if err != nil {
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues("set_status", string(to)).Inc()
	util.LoggerWithTrace(ctx, s.logger).Info("Order status overridden",
		zap.String("order_id", id),
		zap.String("status", string(to)))

	delivery := s.emitter.Emit(ctx, models.OrderStatusUpdated{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	})
	return &OrderResult{Order: order, Delivery: delivery}, nil
}

// CancelOrder cancels a pending or processing order and emits ORDER_CANCELLED
// so the product service restores stock.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.transition(ctx, "cancel", id, models.OrderStatusCancelled, models.CancellableStatuses)
	if err != nil {
		return nil, err
	}

	delivery := s.emitter.Emit(ctx, models.OrderCancelled{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.StockItems(),
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	})
	return &OrderResult{Order: order, Delivery: delivery}, nil
}

// ShipOrder moves a processing order to shipped and emits ORDER_SHIPPED
func (s *OrderService) ShipOrder(ctx context.Context, id string) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ShipOrder")
	defer span.End()

	order, err := s.transition(ctx, "ship", id, models.OrderStatusShipped, models.ShippableStatuses)
	if err != nil {
		return nil, err
	}

	delivery := s.emitter.Emit(ctx, models.OrderShipped{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     order.StockItems(),
		Status:    order.Status,
		UpdatedAt: order.UpdatedAt,
	})
	return &OrderResult{Order: order, Delivery: delivery}, nil
}

func (s *OrderService) transition(ctx context.Context, trigger, id string, to models.OrderStatus, from []models.OrderStatus) (*models.Order, error) {
	order, err := s.store.TransitionOrder(ctx, id, to, from)
	if err != nil {
		var te *models.TransitionError
		if errors.As(err, &te) {
			util.OrderTransitionsRejected.WithLabelValues(trigger).Inc()
			util.LoggerWithTrace(ctx, s.logger).Info("Order transition rejected",
				zap.String("order_id", id),
				zap.String("from", string(te.From)),
				zap.String("to", string(to)))
		}
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(trigger, string(to)).Inc()
	util.LoggerWithTrace(ctx, s.logger).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(to)))
	return order, nil
}

// HandleInventoryUpdated flags pending orders that reference a product whose
// stock just ran out. Orders are left untouched.
func (s *OrderService) HandleInventoryUpdated(ctx context.Context, ev models.InventoryUpdated) error {
	if ev.Inventory > 0 {
		return nil
	}

	orders, err := s.store.ListPendingOrdersWithProduct(ctx, ev.ProductID)
	if err != nil {
		return fmt.Errorf("failed to find pending orders for product %s: %w", ev.ProductID, err)
	}

	logger := util.LoggerWithTrace(ctx, s.logger)
	for _, o := range orders {
		util.StockOutOrdersTotal.Inc()
		logger.Warn("Pending order references out-of-stock product",
			zap.String("order_id", o.ID),
			zap.String("product_id", ev.ProductID),
			zap.String("product_name", ev.Name))
	}
	return nil
}

// HandleProductCreated records new catalog entries
func (s *OrderService) HandleProductCreated(ctx context.Context, ev models.ProductCreated) error {
	util.LoggerWithTrace(ctx, s.logger).Info("Product available for ordering",
		zap.String("product_id", ev.ProductID),
		zap.String("name", ev.Name),
		zap.Int("inventory", ev.Inventory))
	return nil
}

// HandleUserRegistered records new customers
func (s *OrderService) HandleUserRegistered(ctx context.Context, ev models.UserRegistered) error {
	util.LoggerWithTrace(ctx, s.logger).Info("New customer registered",
		zap.String("user_id", ev.UserID),
		zap.String("email", ev.Email))
	return nil
}
