package api

import (
	"net/http"

	"ecommerce-platform/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) orderRoutes(g *gin.RouterGroup) {
	g.POST("", h.createOrder)
	g.GET("", h.listOrders)
	g.GET("/user/:userId", h.listUserOrders)
	g.GET("/:id", h.getOrder)
	g.PATCH("/:id/status", h.updateOrderStatus)
	g.POST("/:id/cancel", h.cancelOrder)
	g.POST("/:id/ship", h.shipOrder)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	res, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if res.Replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, res.Order)
		return
	}
	setDelivery(c, res.Delivery)
	c.JSON(http.StatusCreated, res.Order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listUserOrders(c *gin.Context) {
	orders, err := h.orders.ListOrdersByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	h.orderResult(c, res, err)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	res, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	h.orderResult(c, res, err)
}

func (h *Handler) shipOrder(c *gin.Context) {
	res, err := h.orders.ShipOrder(c.Request.Context(), c.Param("id"))
	h.orderResult(c, res, err)
}

func (h *Handler) orderResult(c *gin.Context, res *service.OrderResult, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	setDelivery(c, res.Delivery)
	c.JSON(http.StatusOK, res.Order)
}
