package service

import (
	"context"
	"fmt"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryReconciler keeps product stock in step with order events. Each
// order's placement and cancellation is applied at most once, so redelivered
// messages leave stock unchanged.
type InventoryReconciler struct {
	store   InventoryAdjuster
	emitter *Emitter
	cache   InventoryCache
	logger  *zap.Logger
	now     func() time.Time
}

// NewInventoryReconciler creates a reconciler. cache may be nil.
func NewInventoryReconciler(store InventoryAdjuster, emitter *Emitter, cache InventoryCache) *InventoryReconciler {
	return &InventoryReconciler{
		store:   store,
		emitter: emitter,
		cache:   cache,
		logger:  util.GetLogger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type adjustFunc func(ctx context.Context, orderID string, items []models.StockItem) (models.AdjustmentResult, error)

// HandleOrderPlaced decrements stock for each item, never below zero
func (r *InventoryReconciler) HandleOrderPlaced(ctx context.Context, ev models.OrderPlaced) error {
	return r.adjust(ctx, ev.Kind(), ev.OrderID, models.StockOf(ev.Items), r.store.ApplyOrderPlaced)
}

// HandleOrderCancelled restores the stock taken by the order
func (r *InventoryReconciler) HandleOrderCancelled(ctx context.Context, ev models.OrderCancelled) error {
	return r.adjust(ctx, ev.Kind(), ev.OrderID, ev.Items, r.store.ApplyOrderCancelled)
}

func (r *InventoryReconciler) adjust(ctx context.Context, kind models.EventKind, orderID string, items []models.StockItem, apply adjustFunc) error {
	ctx, span := util.StartSpan(ctx, "InventoryReconciler."+string(kind))
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	start := time.Now()
	res, err := apply(ctx, orderID, items)
	util.InventoryAdjustLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.InventoryAdjustmentsTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("failed to apply %s for order %s: %w", kind, orderID, err)
	}
	util.InventoryAdjustmentsTotal.WithLabelValues(string(kind), string(res.Outcome)).Inc()

	logger := util.LoggerWithTrace(ctx, r.logger).With(
		zap.String("event_type", string(kind)),
		zap.String("order_id", orderID))

	switch res.Outcome {
	case models.AdjustmentDuplicate:
		logger.Info("Order event already applied, skipping")
		return nil
	case models.AdjustmentSuperseded:
		logger.Info("Order was cancelled before placement was applied, skipping")
		return nil
	case models.AdjustmentNoop:
		logger.Info("No placement recorded for cancelled order, nothing to restore")
		return nil
	}

	for _, id := range res.Missing {
		util.InventoryMissingProducts.Inc()
		logger.Warn("Product not found, skipping item", zap.String("product_id", id))
	}

	now := r.now()
	for _, c := range res.Changes {
		logger.Info("Inventory adjusted",
			zap.String("product_id", c.ProductID),
			zap.Int("inventory", c.Inventory))
		cacheInventory(ctx, r.cache, r.logger, c.ProductID, c.Inventory, now)
		r.emitter.Emit(ctx, models.InventoryUpdated{
			ProductID: c.ProductID,
			Name:      c.Name,
			Inventory: c.Inventory,
			UpdatedAt: now,
		})
	}
	return nil
}
