package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EventKind identifies the type carried in an Envelope
type EventKind string

// Event kinds
const (
	EventOrderPlaced        EventKind = "ORDER_PLACED"
	EventOrderStatusUpdated EventKind = "ORDER_STATUS_UPDATED"
	EventOrderCancelled     EventKind = "ORDER_CANCELLED"
	EventOrderShipped       EventKind = "ORDER_SHIPPED"
	EventProductCreated     EventKind = "PRODUCT_CREATED"
	EventInventoryUpdated   EventKind = "INVENTORY_UPDATED"
	EventUserRegistered     EventKind = "USER_REGISTERED"
	EventUserProfileUpdated EventKind = "USER_PROFILE_UPDATED"
)

// Topics
const (
	TopicOrderEvents   = "order-events"
	TopicProductEvents = "product-events"
	TopicUserEvents    = "user-events"
)

// DefaultMessageKey is used when the payload carries no orderId
const DefaultMessageKey = "default"

// AllEventKinds lists every kind the services know how to decode.
var AllEventKinds = []EventKind{
	EventOrderPlaced,
	EventOrderStatusUpdated,
	EventOrderCancelled,
	EventOrderShipped,
	EventProductCreated,
	EventInventoryUpdated,
	EventUserRegistered,
	EventUserProfileUpdated,
}

var kindTopics = map[EventKind]string{
	EventOrderPlaced:        TopicOrderEvents,
	EventOrderStatusUpdated: TopicOrderEvents,
	EventOrderCancelled:     TopicOrderEvents,
	EventOrderShipped:       TopicOrderEvents,
	EventProductCreated:     TopicProductEvents,
	EventInventoryUpdated:   TopicProductEvents,
	EventUserRegistered:     TopicUserEvents,
	EventUserProfileUpdated: TopicUserEvents,
}

// Known reports whether k is one of AllEventKinds
func (k EventKind) Known() bool {
	_, ok := kindTopics[k]
	return ok
}

// Topic returns the topic the owning service publishes k to. Empty for unknown kinds.
func (k EventKind) Topic() string {
	return kindTopics[k]
}

// ErrMalformedEvent is returned when an envelope or its payload cannot be decoded
var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the wire format shared by every service
type Envelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Key returns the partition key: payload.orderId when present, otherwise DefaultMessageKey.
func (e Envelope) Key() string {
	var keyed struct {
		OrderID interface{} `json:"orderId"`
	}
	if len(e.Payload) == 0 || json.Unmarshal(e.Payload, &keyed) != nil {
		return DefaultMessageKey
	}

	switch v := keyed.OrderID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v != 0 {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return DefaultMessageKey
}

// ParseEnvelope decodes raw message bytes into an Envelope
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return env, nil
}

// Event is implemented by every payload variant, including UnknownEvent
type Event interface {
	Kind() EventKind
}

type validatable interface {
	validate() error
}

// NewEnvelope wraps an event for publishing
func NewEnvelope(ev Event) (Envelope, error) {
	if u, ok := ev.(UnknownEvent); ok {
		return Envelope{Type: u.Type, Payload: u.Payload}, nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", ev.Kind(), err)
	}
	return Envelope{Type: ev.Kind(), Payload: payload}, nil
}

// DecodeEvent turns an envelope into its typed variant. Kinds outside
// AllEventKinds decode to UnknownEvent without error.
func DecodeEvent(env Envelope) (Event, error) {
	var ev Event

	switch env.Type {
	case EventOrderPlaced:
		ev = decodeInto[OrderPlaced](env.Payload)
	case EventOrderStatusUpdated:
		ev = decodeInto[OrderStatusUpdated](env.Payload)
	case EventOrderCancelled:
		ev = decodeInto[OrderCancelled](env.Payload)
	case EventOrderShipped:
		ev = decodeInto[OrderShipped](env.Payload)
	case EventProductCreated:
		ev = decodeInto[ProductCreated](env.Payload)
	case EventInventoryUpdated:
		ev = decodeInto[InventoryUpdated](env.Payload)
	case EventUserRegistered:
		ev = decodeInto[UserRegistered](env.Payload)
	case EventUserProfileUpdated:
		ev = decodeInto[UserProfileUpdated](env.Payload)
	default:
		return UnknownEvent{Type: env.Type, Payload: env.Payload}, nil
	}

	if d, ok := ev.(decodeFailure); ok {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, d.err)
	}
	if v, ok := ev.(validatable); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
		}
	}
	return ev, nil
}

type decodeFailure struct {
	err error
}

func (decodeFailure) Kind() EventKind { return "" }

func decodeInto[E Event](payload json.RawMessage) Event {
	var ev E
	if len(payload) == 0 {
		return decodeFailure{err: errors.New("empty payload")}
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return decodeFailure{err: err}
	}
	return ev
}

// EventItem is a priced line item as carried by ORDER_PLACED
type EventItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// StockItem is the unpriced line item carried by cancel and ship events, and
// the unit of inventory adjustment
type StockItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockOf drops prices from items
func StockOf(items []EventItem) []StockItem {
	out := make([]StockItem, 0, len(items))
	for _, it := range items {
		out = append(out, StockItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func validateItems(items []StockItem) error {
	if len(items) == 0 {
		return errors.New("items must not be empty")
	}
	for i, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("items[%d].productId is required", i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
	}
	return nil
}

// OrderPlaced is published after an order is persisted
type OrderPlaced struct {
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	Items       []EventItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (OrderPlaced) Kind() EventKind { return EventOrderPlaced }

func (e OrderPlaced) validate() error {
	if e.OrderID == "" {
		return errors.New("orderId is required")
	}
	return validateItems(StockOf(e.Items))
}

// OrderStatusUpdated is published for generic status changes
type OrderStatusUpdated struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (OrderStatusUpdated) Kind() EventKind { return EventOrderStatusUpdated }

func (e OrderStatusUpdated) validate() error {
	if e.OrderID == "" {
		return errors.New("orderId is required")
	}
	return nil
}

// OrderCancelled carries the items whose stock should be restored
type OrderCancelled struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Items     []StockItem `json:"items"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (OrderCancelled) Kind() EventKind { return EventOrderCancelled }

func (e OrderCancelled) validate() error {
	if e.OrderID == "" {
		return errors.New("orderId is required")
	}
	return validateItems(e.Items)
}

type OrderShipped struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Items     []StockItem `json:"items"`
	Status    OrderStatus `json:"status"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (OrderShipped) Kind() EventKind { return EventOrderShipped }

func (e OrderShipped) validate() error {
	if e.OrderID == "" {
		return errors.New("orderId is required")
	}
	return nil
}

type ProductCreated struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Inventory int       `json:"inventory"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ProductCreated) Kind() EventKind { return EventProductCreated }

func (e ProductCreated) validate() error {
	if e.ProductID == "" {
		return errors.New("productId is required")
	}
	return nil
}

// InventoryUpdated reports a product's stock after any change
type InventoryUpdated struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Inventory int       `json:"inventory"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (InventoryUpdated) Kind() EventKind { return EventInventoryUpdated }

func (e InventoryUpdated) validate() error {
	if e.ProductID == "" {
		return errors.New("productId is required")
	}
	if e.Inventory < 0 {
		return errors.New("inventory must not be negative")
	}
	return nil
}

type UserRegistered struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserRegistered) Kind() EventKind { return EventUserRegistered }

func (e UserRegistered) validate() error {
	if e.UserID == "" {
		return errors.New("userId is required")
	}
	return nil
}

type UserProfileUpdated struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserProfileUpdated) Kind() EventKind { return EventUserProfileUpdated }

func (e UserProfileUpdated) validate() error {
	if e.UserID == "" {
		return errors.New("userId is required")
	}
	return nil
}

// UnknownEvent holds an envelope whose type no service recognises
type UnknownEvent struct {
	Type    EventKind
	Payload json.RawMessage
}

func (u UnknownEvent) Kind() EventKind { return u.Type }
