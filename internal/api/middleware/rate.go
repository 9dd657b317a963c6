package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vurksha/backend/internal/api/apierror"
)

// ThrottleConfig defines the in-process overload guard. This sits in
// front of the store-backed limiter: it needs no network hop, so it
// keeps shedding load even when the store is down.
type ThrottleConfig struct {
	RequestsPerSecond int
	Burst             int
}

// DefaultThrottleConfig returns the production throttle settings.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		RequestsPerSecond: 100,
		Burst:             200,
	}
}

// Throttle creates a per-IP token bucket middleware.
func Throttle(cfg ThrottleConfig) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	// Evict buckets idle for an hour so the map stays bounded.
	go func() {
		for range time.Tick(10 * time.Minute) {
			mu.Lock()
			for ip, cl := range clients {
				if time.Since(cl.lastSeen) > time.Hour {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			Fail(c, apierror.RateLimited(1))
			return
		}
		c.Next()
	}
}

// GlobalThrottle creates a process-wide token bucket middleware.
func GlobalThrottle(cfg ThrottleConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			Fail(c, apierror.RateLimited(1))
			return
		}
		c.Next()
	}
}
