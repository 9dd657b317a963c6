package order

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/idempotency"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
)

// Handlers serves the order HTTP surface.
type Handlers struct {
	svc *Service
}

// NewHandlers builds the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the endpoints. Order creation runs behind both the
// rate limiter and the idempotency layer.
func (h *Handlers) Routes(r gin.IRouter, auth middleware.AuthConfig, limiter ratelimit.Limiter, idem *idempotency.Store) {
	g := r.Group("/api/orders", middleware.Auth(auth))
	g.POST("", middleware.RateLimit(limiter), middleware.Idempotent(idem), h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
}

type createBody struct {
	Items         []LineInput `json:"items" binding:"required"`
	Address       Address     `json:"address" binding:"required"`
	PaymentMethod string      `json:"paymentMethod" binding:"required"`
}

func (h *Handlers) create(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("items, address, and paymentMethod are required"))
		return
	}

	o, err := h.svc.Create(c.Request.Context(), CreateInput{
		UserID:        middleware.UserID(c),
		Items:         body.Items,
		Address:       body.Address,
		PaymentMethod: PaymentMethod(body.PaymentMethod),
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.Created(c, o)
}

func (h *Handlers) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	list, total, err := h.svc.List(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.Page(c, list, page, limit, total)
}

func (h *Handlers) get(c *gin.Context) {
	o, err := h.svc.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, o)
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (h *Handlers) cancel(c *gin.Context) {
	var body cancelBody
	_ = c.ShouldBindJSON(&body)

	o, err := h.svc.Cancel(c.Request.Context(), middleware.UserID(c), c.Param("id"), body.Reason)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, o)
}
