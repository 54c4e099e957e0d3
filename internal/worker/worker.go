package worker

import (
	"context"

	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/service"
	"ecommerce-platform/internal/util"

	"go.uber.org/zap"
)

// Worker consumes one service's subscriptions and routes events to its handlers
type Worker struct {
	name       string
	dispatcher *broker.Dispatcher
	logger     *zap.Logger
}

func newWorker(name string, cfg broker.DispatcherConfig, reader broker.MessageReader, router *broker.Router, dlq broker.DeadLetterSink) (*Worker, error) {
	logger := util.GetLogger().With(zap.String("worker", name))

	d, err := broker.NewDispatcher(cfg, reader, router, logger)
	if err != nil {
		return nil, err
	}
	if dlq != nil {
		d.WithDeadLetter(dlq)
	}

	return &Worker{name: name, dispatcher: d, logger: logger}, nil
}

// NewOrderWorker reacts to catalog and account events on behalf of the order service
func NewOrderWorker(cfg broker.DispatcherConfig, reader broker.MessageReader, orders *service.OrderService, dlq broker.DeadLetterSink) (*Worker, error) {
	router := broker.NewRouter()
	broker.On(router, orders.HandleInventoryUpdated)
	broker.On(router, orders.HandleProductCreated)
	broker.On(router, orders.HandleUserRegistered)
	router.IgnoreRest()

	return newWorker("order", cfg, reader, router, dlq)
}

// NewProductWorker applies order placements and cancellations to stock
func NewProductWorker(cfg broker.DispatcherConfig, reader broker.MessageReader, reconciler *service.InventoryReconciler, dlq broker.DeadLetterSink) (*Worker, error) {
	router := broker.NewRouter()
	broker.On(router, reconciler.HandleOrderPlaced)
	broker.On(router, reconciler.HandleOrderCancelled)
	router.IgnoreRest()

	return newWorker("product", cfg, reader, router, dlq)
}

// NewUserWorker records order and catalog activity for the user service
func NewUserWorker(cfg broker.DispatcherConfig, reader broker.MessageReader, users *service.UserService, dlq broker.DeadLetterSink) (*Worker, error) {
	router := broker.NewRouter()
	broker.On(router, users.HandleOrderPlaced)
	broker.On(router, users.HandleProductCreated)
	router.IgnoreRest()

	return newWorker("user", cfg, reader, router, dlq)
}

// Start blocks consuming until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker")
	return w.dispatcher.Run(ctx)
}

// Stop closes the underlying reader
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker")
	return w.dispatcher.Close()
}

// Dispatcher exposes the dispatcher, mainly for tests
func (w *Worker) Dispatcher() *broker.Dispatcher {
	return w.dispatcher
}
