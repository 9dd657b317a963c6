package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/middleware"
)

// Handlers serves the notification HTTP surface: the unread inbox,
// device registration, preferences, and the live websocket stream.
type Handlers struct {
	svc *Service
}

// NewHandlers builds the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the endpoints.
func (h *Handlers) Routes(r gin.IRouter, auth middleware.AuthConfig) {
	g := r.Group("/api/notifications", middleware.Auth(auth))
	g.GET("", h.unread)
	g.POST("/:id/read", h.markRead)
	g.POST("/read-all", h.markAllRead)
	g.GET("/stream", h.stream)
	g.GET("/preferences", h.getPreferences)
	g.PUT("/preferences", h.setPreferences)

	d := r.Group("/api/devices", middleware.Auth(auth))
	d.POST("", h.registerDevice)
	d.DELETE("/:token", h.unregisterDevice)
}

func (h *Handlers) unread(c *gin.Context) {
	list, err := h.svc.Unread(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"notifications": list, "count": len(list)})
}

func (h *Handlers) markRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"read": true})
}

func (h *Handlers) markAllRead(c *gin.Context) {
	count, err := h.svc.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"read": count})
}

func (h *Handlers) stream(c *gin.Context) {
	if h.svc.stream == nil {
		middleware.Fail(c, apierror.New(apierror.CodeServiceUnavailable, "Live notifications are not enabled"))
		return
	}
	h.svc.stream.Handler(c, middleware.UserID(c))
}

type deviceBody struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

func (h *Handlers) registerDevice(c *gin.Context) {
	var body deviceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("token and platform are required"))
		return
	}
	if err := h.svc.RegisterDevice(c.Request.Context(), middleware.UserID(c), body.Token, body.Platform); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.Created(c, gin.H{"registered": true})
}

func (h *Handlers) unregisterDevice(c *gin.Context) {
	if err := h.svc.UnregisterDevice(c.Request.Context(), middleware.UserID(c), c.Param("token")); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"unregistered": true})
}

func (h *Handlers) getPreferences(c *gin.Context) {
	p, err := h.svc.GetPreferences(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, p)
}

func (h *Handlers) setPreferences(c *gin.Context) {
	var p Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		middleware.Fail(c, apierror.Validation("Invalid preferences payload"))
		return
	}
	if err := h.svc.SetPreferences(c.Request.Context(), middleware.UserID(c), p); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, p)
}
