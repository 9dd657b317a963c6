package user

import (
	"github.com/gin-gonic/gin"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
)

// Handlers serves the user service HTTP surface.
type Handlers struct {
	svc *Service
}

// NewHandlers builds the handler set.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the endpoints. OTP requests get their own tight limiter
// so codes cannot be farmed.
func (h *Handlers) Routes(r gin.IRouter, auth middleware.AuthConfig, otpLimiter ratelimit.Limiter) {
	authGroup := r.Group("/api/auth")
	authGroup.POST("/request-otp", middleware.RateLimit(otpLimiter), h.requestOTP)
	authGroup.POST("/verify-otp", h.verifyOTP)

	me := r.Group("/api/users/me", middleware.Auth(auth))
	me.GET("", h.profile)
	me.PUT("", h.updateProfile)
	me.GET("/addresses", h.listAddresses)
	me.POST("/addresses", h.addAddress)
}

type requestOTPBody struct {
	Phone string `json:"phone" binding:"required"`
}

func (h *Handlers) requestOTP(c *gin.Context) {
	var body requestOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("phone is required"))
		return
	}
	if err := h.svc.RequestOTP(c.Request.Context(), body.Phone); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"sent": true})
}

type verifyOTPBody struct {
	Phone string `json:"phone" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

func (h *Handlers) verifyOTP(c *gin.Context) {
	var body verifyOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("phone and otp are required"))
		return
	}
	u, token, err := h.svc.VerifyOTP(c.Request.Context(), body.Phone, body.OTP)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gin.H{"user": u, "token": token})
}

func (h *Handlers) profile(c *gin.Context) {
	u, err := h.svc.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, u)
}

type updateProfileBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handlers) updateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.Fail(c, apierror.Validation("invalid profile body"))
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.UserID(c), body.Name, body.Email)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, u)
}

func (h *Handlers) listAddresses(c *gin.Context) {
	list, err := h.svc.Addresses(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, list)
}

func (h *Handlers) addAddress(c *gin.Context) {
	var a Address
	if err := c.ShouldBindJSON(&a); err != nil {
		middleware.Fail(c, apierror.Validation("invalid address body"))
		return
	}
	a.UserID = middleware.UserID(c)
	created, err := h.svc.AddAddress(c.Request.Context(), a)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.Created(c, created)
}
