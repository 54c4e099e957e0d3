package memory

import (
	"context"
	"testing"

	"ecommerce-platform/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s *Store, id string, inventory int) {
	t.Helper()
	require.NoError(t, s.CreateProduct(context.Background(), &models.Product{
		ID: id, Name: "Product " + id, Price: 10, Inventory: inventory, IsActive: true,
	}))
}

func inventoryOf(t *testing.T, s *Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Inventory
}

func TestApplyOrderPlacedFloorsAtZero(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 2)

	res, err := s.ApplyOrderPlaced(context.Background(), "o-1", []models.StockItem{{ProductID: "p-1", Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApplied, res.Outcome)
	assert.Equal(t, []models.StockChange{{ProductID: "p-1", Name: "Product p-1", Inventory: 0}}, res.Changes)
	assert.Equal(t, 0, inventoryOf(t, s, "p-1"))
}

func TestApplyOrderPlacedIsIdempotent(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 10)
	items := []models.StockItem{{ProductID: "p-1", Quantity: 3}}

	_, err := s.ApplyOrderPlaced(context.Background(), "o-1", items)
	require.NoError(t, err)
	res, err := s.ApplyOrderPlaced(context.Background(), "o-1", items)
	require.NoError(t, err)

	assert.Equal(t, models.AdjustmentDuplicate, res.Outcome)
	assert.Equal(t, 7, inventoryOf(t, s, "p-1"))
}

func TestApplyOrderCancelledRestoresOnce(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 10)
	items := []models.StockItem{{ProductID: "p-1", Quantity: 4}}

	_, err := s.ApplyOrderPlaced(context.Background(), "o-1", items)
	require.NoError(t, err)
	res, err := s.ApplyOrderCancelled(context.Background(), "o-1", items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentApplied, res.Outcome)

	res, err = s.ApplyOrderCancelled(context.Background(), "o-1", items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentDuplicate, res.Outcome)
	assert.Equal(t, 10, inventoryOf(t, s, "p-1"))
}

func TestCancelBeforePlacedLeavesStockAlone(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 10)
	items := []models.StockItem{{ProductID: "p-1", Quantity: 4}}

	res, err := s.ApplyOrderCancelled(context.Background(), "o-1", items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentNoop, res.Outcome)

	res, err = s.ApplyOrderPlaced(context.Background(), "o-1", items)
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentSuperseded, res.Outcome)
	assert.Equal(t, 10, inventoryOf(t, s, "p-1"))
}

func TestApplyReportsMissingProducts(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 10)

	res, err := s.ApplyOrderPlaced(context.Background(), "o-1", []models.StockItem{
		{ProductID: "ghost", Quantity: 1},
		{ProductID: "p-1", Quantity: 1},
		{ProductID: "p-1", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, res.Missing)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, 7, res.Changes[0].Inventory)
}

func TestTransitionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &models.Order{
		ID: "o-1", UserID: "u-1", Status: models.OrderStatusPending,
		Items: []models.OrderItem{{ProductID: "p-1", Quantity: 1}},
	}))

	_, err := s.TransitionOrder(ctx, "o-1", models.OrderStatusShipped, models.ShippableStatuses)
	var terr *models.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.OrderStatusPending, terr.From)

	o, err := s.TransitionOrder(ctx, "o-1", models.OrderStatusProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, o.Status)
	assert.Len(t, o.Items, 1)

	_, err = s.TransitionOrder(ctx, "missing", models.OrderStatusCancelled, nil)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestListPendingOrdersWithProduct(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, o := range []models.Order{
		{ID: "o-1", Status: models.OrderStatusPending, Items: []models.OrderItem{{ProductID: "p-1", Quantity: 1}}},
		{ID: "o-2", Status: models.OrderStatusProcessing, Items: []models.OrderItem{{ProductID: "p-1", Quantity: 1}}},
		{ID: "o-3", Status: models.OrderStatusPending, Items: []models.OrderItem{{ProductID: "p-2", Quantity: 1}}},
	} {
		o := o
		require.NoError(t, s.CreateOrder(ctx, &o))
	}

	orders, err := s.ListPendingOrdersWithProduct(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].ID)
}

func TestUserEmailUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u-1", Email: "a@example.com"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u-2", Email: "b@example.com"}))

	err := s.CreateUser(ctx, &models.User{ID: "u-3", Email: "A@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	err = s.UpdateUser(ctx, &models.User{ID: "u-2", Name: "B", Email: "a@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	require.NoError(t, s.UpdateUser(ctx, &models.User{ID: "u-2", Name: "B", Email: "b2@example.com"}))
	u, err := s.GetUserByEmail(ctx, "b2@example.com")
	require.NoError(t, err)
	assert.Equal(t, "B", u.Name)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestOutboxAttempts(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnqueueOutbox(ctx, &models.OutboxEvent{ID: "e-1", Topic: models.TopicOrderEvents}))
	require.NoError(t, s.EnqueueOutbox(ctx, &models.OutboxEvent{ID: "e-2", Topic: models.TopicOrderEvents}))

	require.NoError(t, s.MarkOutboxAttempt(ctx, "e-1", "timeout", 2))
	pending, err := s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, s.MarkOutboxAttempt(ctx, "e-1", "timeout", 2))
	require.NoError(t, s.MarkOutboxSent(ctx, "e-2"))

	pending, err = s.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rows := s.Outbox()
	assert.Equal(t, models.OutboxStatusFailed, rows[0].Status)
	assert.Equal(t, "timeout", rows[0].LastError)
	assert.Equal(t, models.OutboxStatusSent, rows[1].Status)
	assert.NotNil(t, rows[1].PublishedAt)
}

func TestUpdateProductLeavesInventory(t *testing.T) {
	s := New()
	seedProduct(t, s, "p-1", 5)
	ctx := context.Background()

	stale, err := s.GetProduct(ctx, "p-1")
	require.NoError(t, err)

	_, err = s.ApplyOrderPlaced(ctx, "o-1", []models.StockItem{{ProductID: "p-1", Quantity: 2}})
	require.NoError(t, err)

	stale.Price = 15
	require.NoError(t, s.UpdateProduct(ctx, stale))
	assert.Equal(t, 3, stale.Inventory)
	assert.Equal(t, 3, inventoryOf(t, s, "p-1"))
}
