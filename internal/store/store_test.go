package store

import (
	"context"
	"os"
	"testing"

	"ecommerce-platform/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL or skips the test
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL to run")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createProduct(t *testing.T, s *Store, inventory int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:        uuid.NewString(),
		Name:      "Widget",
		Price:     12.5,
		Inventory: inventory,
		ImageURL:  models.DefaultProductImage,
		IsActive:  true,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestCreateOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          uuid.NewString(),
		TotalAmount:     25,
		Status:          models.OrderStatusPending,
		ShippingAddress: "1 Main St",
		PaymentMethod:   "card",
		PaymentStatus:   models.PaymentStatusPending,
		Items: []models.OrderItem{
			{ProductID: "p-1", Name: "Widget", Price: 12.5, Quantity: 2},
		},
	}

	require.NoError(t, store.CreateOrder(ctx, order))
	assert.False(t, order.CreatedAt.IsZero())

	retrieved, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.UserID, retrieved.UserID)
	assert.Equal(t, order.TotalAmount, retrieved.TotalAmount)
	require.Len(t, retrieved.Items, 1)
	assert.Equal(t, 2, retrieved.Items[0].Quantity)

	_, err = store.GetOrder(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestTransitionOrderIsConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{
		ID: uuid.NewString(), UserID: "u", Status: models.OrderStatusPending,
		ShippingAddress: "x", PaymentMethod: "card", PaymentStatus: models.PaymentStatusPending,
		Items: []models.OrderItem{{ProductID: "p", Quantity: 1}},
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	_, err := store.TransitionOrder(ctx, order.ID, models.OrderStatusShipped, models.ShippableStatuses)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	updated, err := store.TransitionOrder(ctx, order.ID, models.OrderStatusProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	updated, err = store.TransitionOrder(ctx, order.ID, models.OrderStatusShipped, models.ShippableStatuses)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}

func TestInventoryAdjustments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := createProduct(t, store, 3)
	orderID := uuid.NewString()
	items := []models.StockItem{{ProductID: p.ID, Quantity: 5}}

	res, err := store.ApplyOrderPlaced(ctx, orderID, items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApplied, res.Outcome)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, 0, res.Changes[0].Inventory)

	res, err = store.ApplyOrderPlaced(ctx, orderID, items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentDuplicate, res.Outcome)

	res, err = store.ApplyOrderCancelled(ctx, orderID, items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApplied, res.Outcome)

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Inventory)
}

func TestUserEmailUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	email := uuid.NewString() + "@example.com"
	require.NoError(t, store.CreateUser(ctx, &models.User{ID: uuid.NewString(), Name: "A", Email: email, PasswordHash: "x", Role: models.UserRoleUser}))

	err := store.CreateUser(ctx, &models.User{ID: uuid.NewString(), Name: "B", Email: email, PasswordHash: "x", Role: models.UserRoleUser})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestUpdateProductLeavesInventory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := createProduct(t, store, 5)
	stale, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)

	_, err = store.ApplyOrderPlaced(ctx, uuid.NewString(), []models.StockItem{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	stale.Price = 15
	require.NoError(t, store.UpdateProduct(ctx, stale))
	assert.Equal(t, 3, stale.Inventory)

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Inventory)
	assert.Equal(t, 15.0, got.Price)
}
