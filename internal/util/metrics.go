package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected order creations",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"trigger", "status"})

	OrderTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of order status transitions rejected by the state machine",
	}, []string{"trigger"})

	StockOutOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_out_pending_orders_total",
		Help: "Pending orders found referencing a product that ran out of stock",
	})

	InventoryAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_total",
		Help: "Total number of inventory adjustments applied from order events",
	}, []string{"event_type", "outcome"})

	InventoryMissingProducts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_missing_products_total",
		Help: "Order event items that referenced a product that does not exist",
	})

	InventoryAdjustLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_adjust_latency_seconds",
		Help:    "Latency of inventory adjustment transactions",
		Buckets: prometheus.DefBuckets,
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of publish attempts",
	}, []string{"topic", "event_type", "result"})

	EventPublishLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_publish_latency_seconds",
		Help:    "Latency of broker writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Total number of messages consumed by the dispatcher",
	}, []string{"group", "event_type"})

	EventHandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_handler_failures_total",
		Help: "Total number of handler errors caught by the dispatcher",
	}, []string{"group", "event_type"})

	EventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_dead_lettered_total",
		Help: "Total number of messages forwarded to the dead-letter topic",
	}, []string{"group"})

	OutboxEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_enqueued_total",
		Help: "Total number of envelopes stored in the outbox after a failed publish",
	}, []string{"topic"})

	OutboxRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_relayed_total",
		Help: "Total number of outbox rows processed by the relay",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
