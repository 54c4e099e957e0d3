package api

import (
	"net/http"

	"ecommerce-platform/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) productRoutes(g *gin.RouterGroup) {
	g.POST("", h.createProduct)
	g.GET("", h.listProducts)
	g.GET("/:id", h.getProduct)
	g.PATCH("/:id", h.updateProduct)
	g.PUT("/:id/inventory", h.setInventory)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	setDelivery(c, *res.Delivery)
	c.JSON(http.StatusCreated, res.Product)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.products.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	h.productResult(c, res, err)
}

type inventoryRequest struct {
	Inventory *int `json:"inventory" binding:"required"`
}

func (h *Handler) setInventory(c *gin.Context) {
	var req inventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.products.SetInventory(c.Request.Context(), c.Param("id"), *req.Inventory)
	h.productResult(c, res, err)
}

func (h *Handler) productResult(c *gin.Context, res *service.ProductResult, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	if res.Delivery != nil {
		setDelivery(c, *res.Delivery)
	}
	c.JSON(http.StatusOK, res.Product)
}
