// Package memory is an in-process implementation of the storage interfaces.
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ecommerce-platform/internal/models"
)

type Store struct {
	mu        sync.Mutex
	orders    map[string]models.Order
	products  map[string]models.Product
	users     map[string]models.User
	processed map[string]models.EventKind
	outbox    []models.OutboxEvent
	now       func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		orders:    make(map[string]models.Order),
		products:  make(map[string]models.Product),
		users:     make(map[string]models.User),
		processed: make(map[string]models.EventKind),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (s *Store) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	now := s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = copyOrder(*order)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	o = copyOrder(o)
	return &o, nil
}

func (s *Store) listOrders(match func(models.Order) bool, newestFirst bool) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if match(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListOrders(_ context.Context, status models.OrderStatus) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool {
		return status == "" || o.Status == status
	}, true), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool { return o.UserID == userID }, true), nil
}

func (s *Store) ListPendingOrdersWithProduct(_ context.Context, productID string) ([]models.Order, error) {
	return s.listOrders(func(o models.Order) bool {
		return o.Status == models.OrderStatusPending && o.HasProduct(productID)
	}, false), nil
}

func (s *Store) TransitionOrder(_ context.Context, id string, to models.OrderStatus, from []models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if from != nil && !containsStatus(from, o.Status) {
		return nil, &models.TransitionError{OrderID: id, From: o.Status, To: to}
	}

	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[id] = o

	o = copyOrder(o)
	return &o, nil
}

func containsStatus(list []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, category string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Product, 0)
	for _, p := range s.products {
		if p.IsActive && (category == "" || p.Category == category) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateProduct keeps the stored inventory, like the postgres store
func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, p.ID)
	}
	p.Inventory = existing.Inventory
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) SetInventory(_ context.Context, id string, inventory int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	p.Inventory = inventory
	p.UpdatedAt = s.now()
	s.products[id] = p
	return &p, nil
}

func (s *Store) ApplyOrderPlaced(_ context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error) {
	return s.applyAdjustment(models.EventOrderPlaced, orderID, items), nil
}

func (s *Store) ApplyOrderCancelled(_ context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error) {
	return s.applyAdjustment(models.EventOrderCancelled, orderID, items), nil
}

// applyAdjustment mirrors the postgres transaction: dedupe key, tombstone check, then per-item update
func (s *Store) applyAdjustment(kind models.EventKind, orderID string, items []models.StockItem) models.AdjustmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ProcessedEventKey(kind, orderID)
	if _, ok := s.processed[key]; ok {
		return models.AdjustmentResult{Outcome: models.AdjustmentDuplicate}
	}
	s.processed[key] = kind

	var delta func(inv, q int) int
	switch kind {
	case models.EventOrderPlaced:
		if _, ok := s.processed[models.ProcessedEventKey(models.EventOrderCancelled, orderID)]; ok {
			return models.AdjustmentResult{Outcome: models.AdjustmentSuperseded}
		}
		delta = func(inv, q int) int {
			if inv-q < 0 {
				return 0
			}
			return inv - q
		}
	default:
		if _, ok := s.processed[models.ProcessedEventKey(models.EventOrderPlaced, orderID)]; !ok {
			return models.AdjustmentResult{Outcome: models.AdjustmentNoop}
		}
		delta = func(inv, q int) int { return inv + q }
	}

	result := models.AdjustmentResult{Outcome: models.AdjustmentApplied}
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok {
			result.Missing = append(result.Missing, item.ProductID)
			continue
		}
		p.Inventory = delta(p.Inventory, item.Quantity)
		p.UpdatedAt = s.now()
		s.products[p.ID] = p

		change := models.StockChange{ProductID: p.ID, Name: p.Name, Inventory: p.Inventory}
		replaced := false
		for i := range result.Changes {
			if result.Changes[i].ProductID == p.ID {
				result.Changes[i] = change
				replaced = true
			}
		}
		if !replaced {
			result.Changes = append(result.Changes, change)
		}
	}
	return result
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(u.Email, "") {
		return fmt.Errorf("%w: %s", models.ErrEmailTaken, u.Email)
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) emailTaken(email, exceptID string) bool {
	for _, u := range s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, email)
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUserNotFound, u.ID)
	}
	if s.emailTaken(u.Email, u.ID) {
		return fmt.Errorf("%w: %s", models.ErrEmailTaken, u.Email)
	}
	existing.Name = u.Name
	existing.Email = u.Email
	existing.UpdatedAt = s.now()
	s.users[u.ID] = existing
	u.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *Store) EnqueueOutbox(_ context.Context, ev *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.Status = models.OutboxStatusPending
	ev.CreatedAt = s.now()
	s.outbox = append(s.outbox, *ev)
	return nil
}

func (s *Store) PendingOutbox(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OutboxEvent, 0)
	for _, ev := range s.outbox {
		if len(out) >= limit {
			break
		}
		if ev.Status == models.OutboxStatusPending {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, id string) error {
	return s.updateOutbox(id, func(ev *models.OutboxEvent) {
		now := s.now()
		ev.Status = models.OutboxStatusSent
		ev.Attempts++
		ev.PublishedAt = &now
	})
}

func (s *Store) MarkOutboxAttempt(_ context.Context, id, lastError string, maxAttempts int) error {
	return s.updateOutbox(id, func(ev *models.OutboxEvent) {
		ev.Attempts++
		ev.LastError = lastError
		if ev.Attempts >= maxAttempts {
			ev.Status = models.OutboxStatusFailed
		}
	})
}

func (s *Store) updateOutbox(id string, fn func(*models.OutboxEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outbox {
		if s.outbox[i].ID == id {
			fn(&s.outbox[i])
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

// Outbox returns a snapshot of every outbox row
func (s *Store) Outbox() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutboxEvent(nil), s.outbox...)
}
