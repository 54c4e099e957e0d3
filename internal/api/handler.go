package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/service"
	"ecommerce-platform/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DeliveryHeader tells clients whether the event following a write was
// published, queued in the outbox, or dropped
const DeliveryHeader = "X-Event-Delivery"

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// BrokerStatus reports the broker connection state
type BrokerStatus interface {
	Connected() bool
}

// Options selects which services this process exposes. Nil services get no routes.
type Options struct {
	Orders   *service.OrderService
	Products *service.ProductService
	Users    *service.UserService
	Checks   map[string]ReadinessCheck
	Broker   BrokerStatus
}

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	products *service.ProductService
	users    *service.UserService
	checks   map[string]ReadinessCheck
	broker   BrokerStatus
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(opts Options) *Handler {
	return &Handler{
		orders:   opts.Orders,
		products: opts.Products,
		users:    opts.Users,
		checks:   opts.Checks,
		broker:   opts.Broker,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if h.orders != nil {
		h.orderRoutes(v1.Group("/orders"))
	}
	if h.products != nil {
		h.productRoutes(v1.Group("/products"))
	}
	if h.users != nil {
		h.userRoutes(v1.Group("/users"))
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck runs every registered dependency check
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}
	if h.broker != nil {
		// The producer connects lazily, so a disconnected broker does not fail readiness.
		deps["broker_connected"] = h.broker.Connected()
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}

func setDelivery(c *gin.Context, d service.Delivery) {
	c.Header(DeliveryHeader, d.Status())
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// writeError maps domain errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *models.ValidationError
	var te *models.TransitionError

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, models.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{"error": te.Error(), "currentStatus": te.From})
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrEmailTaken), errors.Is(err, models.ErrRequestInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		util.LoggerWithTrace(c.Request.Context(), h.logger).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
