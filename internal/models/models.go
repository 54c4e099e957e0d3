package models

import "time"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a member of the status enum
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable statuses. Shipped and delivered orders cannot be cancelled.
var CancellableStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

// ShippableStatuses lists the statuses an order may be shipped from
var ShippableStatuses = []OrderStatus{OrderStatusProcessing}

// PaymentStatus of an order
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Order represents a customer order
type Order struct {
	ID              string        `db:"id" json:"id"`
	UserID          string        `db:"user_id" json:"userId"`
	Items           []OrderItem   `db:"-" json:"items"`
	TotalAmount     float64       `db:"total_amount" json:"totalAmount"`
	Status          OrderStatus   `db:"status" json:"status"`
	ShippingAddress string        `db:"shipping_address" json:"shippingAddress"`
	PaymentMethod   string        `db:"payment_method" json:"paymentMethod"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"paymentStatus"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// OrderItem represents a line in an order. Items are never modified after creation.
type OrderItem struct {
	OrderID   string  `db:"order_id" json:"-"`
	ProductID string  `db:"product_id" json:"productId"`
	Name      string  `db:"name" json:"name"`
	Price     float64 `db:"price" json:"price"`
	Quantity  int     `db:"quantity" json:"quantity"`
}

// EventItems converts the order's items for ORDER_PLACED
func (o *Order) EventItems() []EventItem {
	items := make([]EventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return items
}

// StockItems converts the order's items for cancel and ship events
func (o *Order) StockItems() []StockItem {
	items := make([]StockItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, StockItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

// HasProduct reports whether any item references productID
func (o *Order) HasProduct(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// DefaultProductImage is used when a product is created without an image
const DefaultProductImage = "default-product.jpg"

// Product represents a product in the catalog
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	Inventory   int       `db:"inventory" json:"inventory"`
	Category    string    `db:"category" json:"category"`
	ImageURL    string    `db:"image_url" json:"imageUrl"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// UserRole of a registered user
type UserRole string

// User roles
const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents a registered account
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Outbox statuses
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OutboxEvent is an envelope whose publish failed and is waiting for the relay
type OutboxEvent struct {
	ID          string     `db:"id" json:"id"`
	Topic       string     `db:"topic" json:"topic"`
	EventType   EventKind  `db:"event_type" json:"eventType"`
	MessageKey  string     `db:"message_key" json:"messageKey"`
	Payload     []byte     `db:"payload" json:"payload"`
	Status      string     `db:"status" json:"status"`
	Attempts    int        `db:"attempts" json:"attempts"`
	LastError   string     `db:"last_error" json:"lastError"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
}

// AdjustmentOutcome describes what an inventory adjustment did
type AdjustmentOutcome string

// Adjustment outcomes
const (
	AdjustmentApplied    AdjustmentOutcome = "applied"
	AdjustmentDuplicate  AdjustmentOutcome = "duplicate"
	AdjustmentSuperseded AdjustmentOutcome = "superseded"
	AdjustmentNoop       AdjustmentOutcome = "noop"
)

// StockChange is a product's stock after an adjustment
type StockChange struct {
	ProductID string `db:"id" json:"productId"`
	Name      string `db:"name" json:"name"`
	Inventory int    `db:"inventory" json:"inventory"`
}

// AdjustmentResult is returned by inventory adjustments
type AdjustmentResult struct {
	Outcome AdjustmentOutcome
	Changes []StockChange
	Missing []string
}

// ProcessedEventKey identifies an order-level event for deduplication
func ProcessedEventKey(kind EventKind, orderID string) string {
	return string(kind) + ":" + orderID
}
