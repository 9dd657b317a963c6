// Package health exposes liveness and readiness probes. Liveness only
// proves the process is serving; readiness additionally verifies the
// critical dependencies, so an instance with a dead store is pulled
// from rotation instead of failing requests.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// checkTimeout bounds each dependency probe. A hung dependency reports
// as down rather than hanging the probe.
const checkTimeout = 5 * time.Second

// Status of a single dependency or the service overall.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// CheckFunc probes one dependency. A nil error means up.
type CheckFunc func(ctx context.Context) error

// Check is a registered dependency probe.
type Check struct {
	Name string
	// Critical checks gate readiness; non-critical ones only appear in
	// the detail report.
	Critical bool
	Probe    CheckFunc
}

// Result is the outcome of one probe run.
type Result struct {
	Status  Status `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// Report is the full health document.
type Report struct {
	Status    Status            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]Result `json:"checks"`
}

// Checker runs registered probes and serves the health endpoints.
type Checker struct {
	service string
	version string

	mu     sync.RWMutex
	checks []Check
}

// NewChecker builds a checker identifying itself as service/version.
func NewChecker(service, version string) *Checker {
	return &Checker{service: service, version: version}
}

// Register adds a dependency probe.
func (c *Checker) Register(name string, critical bool, probe CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, Check{Name: name, Critical: critical, Probe: probe})
}

// Run probes every dependency concurrently and assembles the report.
// The overall status is down iff any critical check failed.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	report := Report{
		Status:    StatusUp,
		Service:   c.service,
		Version:   c.version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Result, len(checks)),
	}

	type outcome struct {
		check  Check
		result Result
	}
	results := make(chan outcome, len(checks))
	for _, check := range checks {
		go func(check Check) {
			results <- outcome{check: check, result: runProbe(ctx, check.Probe)}
		}(check)
	}
	for range checks {
		o := <-results
		report.Checks[o.check.Name] = o.result
		if o.check.Critical && o.result.Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

func runProbe(ctx context.Context, probe CheckFunc) Result {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- probe(ctx) }()

	select {
	case err := <-done:
		res := Result{Status: StatusUp, Latency: time.Since(start).Round(time.Millisecond).String()}
		if err != nil {
			res.Status = StatusDown
			res.Error = err.Error()
		}
		return res
	case <-ctx.Done():
		return Result{
			Status:  StatusDown,
			Latency: time.Since(start).Round(time.Millisecond).String(),
			Error:   "check timed out",
		}
	}
}

// Routes mounts the probe endpoints on r.
func (c *Checker) Routes(r gin.IRoutes) {
	r.GET("/health/live", c.handleLive)
	r.GET("/health/ready", c.handleReady)
	r.GET("/health", c.handleDetail)
}

func (c *Checker) handleLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive", "service": c.service})
}

func (c *Checker) handleReady(ctx *gin.Context) {
	report := c.Run(ctx.Request.Context())
	code := http.StatusOK
	if report.Status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, gin.H{"status": report.Status})
}

func (c *Checker) handleDetail(ctx *gin.Context) {
	report := c.Run(ctx.Request.Context())
	code := http.StatusOK
	if report.Status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, report)
}
