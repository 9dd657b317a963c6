package product

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/middleware"
)

// Handlers serves the catalog HTTP surface. All endpoints are public.
type Handlers struct {
	svc *Service
}

// NewHandlers builds the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the endpoints.
func (h *Handlers) Routes(r gin.IRouter) {
	r.GET("/api/products", h.list)
	r.GET("/api/products/:id", h.get)
	r.GET("/api/categories", h.categories)
	r.GET("/api/banners", h.banners)
}

func (h *Handlers) list(c *gin.Context) {
	// Repeated ?id= params switch to batch mode, used by other
	// services' clients.
	if ids := c.QueryArray("id"); len(ids) > 0 {
		items, err := h.svc.GetMany(c.Request.Context(), ids)
		if err != nil {
			middleware.Fail(c, err)
			return
		}
		middleware.OK(c, items)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := Query{
		CategoryID: c.Query("category"),
		Search:     c.Query("search"),
		Featured:   c.Query("featured") == "true",
		Page:       page,
		Limit:      limit,
	}

	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.Page(c, items, q.Page, q.Limit, total)
}

func (h *Handlers) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, p)
}

func (h *Handlers) categories(c *gin.Context) {
	list, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, list)
}

func (h *Handlers) banners(c *gin.Context) {
	list, err := h.svc.Banners(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, list)
}
