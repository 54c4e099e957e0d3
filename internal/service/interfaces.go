package service

import (
	"context"
	"time"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/models"
)

// Publisher emits events; *broker.EventPublisher implements it
type Publisher interface {
	Publish(ctx context.Context, topic string, ev models.Event) broker.PublishResult
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListPendingOrdersWithProduct(ctx context.Context, productID string) ([]models.Order, error)
	// TransitionOrder sets the status when the current one is in from (nil = any)
	TransitionOrder(ctx context.Context, id string, to models.OrderStatus, from []models.OrderStatus) (*models.Order, error)
}

// InventoryAdjuster applies order events to stock atomically and at most once per order
type InventoryAdjuster interface {
	ApplyOrderPlaced(ctx context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error)
	ApplyOrderCancelled(ctx context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error)
}

type ProductStore interface {
	InventoryAdjuster
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context, category string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	SetInventory(ctx context.Context, id string, inventory int) (*models.Product, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type OutboxStore interface {
	EnqueueOutbox(ctx context.Context, ev *models.OutboxEvent) error
	PendingOutbox(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id string) error
	MarkOutboxAttempt(ctx context.Context, id, lastError string, maxAttempts int) error
}

type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

type InventoryCache interface {
	SetInventory(ctx context.Context, productID string, inventory int, version time.Time) (bool, error)
}
