package cart

import (
	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/middleware"
)

// Handlers serves the cart HTTP surface. Every endpoint requires auth;
// the cart is always the caller's own.
type Handlers struct {
	svc *Service
}

// NewHandlers builds the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the endpoints.
func (h *Handlers) Routes(r gin.IRouter, auth middleware.AuthConfig) {
	g := r.Group("/api/cart", middleware.Auth(auth))
	g.GET("", h.get)
	g.POST("/items", h.addItem)
	g.PUT("/items/:productId", h.updateQuantity)
	g.DELETE("/items/:productId", h.removeItem)
	g.DELETE("", h.clear)
	g.POST("/validate", h.validate)
}

func (h *Handlers) get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, v)
}

type addItemBody struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func (h *Handlers) addItem(c *gin.Context) {
	var body addItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("productId and quantity are required"))
		return
	}
	v, err := h.svc.AddItem(c.Request.Context(), middleware.UserID(c), body.ProductID, body.Quantity)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, v)
}

type quantityBody struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handlers) updateQuantity(c *gin.Context) {
	var body quantityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("quantity is required"))
		return
	}
	v, err := h.svc.UpdateQuantity(c.Request.Context(), middleware.UserID(c), c.Param("productId"), *body.Quantity)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, v)
}

func (h *Handlers) removeItem(c *gin.Context) {
	v, err := h.svc.RemoveItem(c.Request.Context(), middleware.UserID(c), c.Param("productId"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, v)
}

func (h *Handlers) clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"cleared": true})
}

func (h *Handlers) validate(c *gin.Context) {
	v, err := h.svc.Validate(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, v)
}
