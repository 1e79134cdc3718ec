package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type graphChecker interface {
	VerifyConnectivity(ctx context.Context) error
}

// Checker handles health check endpoints
type Checker struct {
	db        *sqlx.DB
	graph     graphChecker
	redis     pinger
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker. redis may be nil when locking is
// disabled.
func NewChecker(db *sqlx.DB, graph graphChecker, redis pinger, version string) *Checker {
	return &Checker{
		db:        db,
		graph:     graph,
		redis:     redis,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	reqCtx := ctx.Request().Context()

	c.runCheck(status, "database", func() error {
		if c.db == nil {
			return errNotConfigured
		}
		return c.db.Ping()
	})

	c.runCheck(status, "graph", func() error {
		if c.graph == nil {
			return errNotConfigured
		}
		return c.graph.VerifyConnectivity(reqCtx)
	})

	// Redis is optional; skip the check entirely when locking is disabled.
	if c.redis != nil {
		c.runCheck(status, "redis", func() error {
			return c.redis.Ping(reqCtx)
		})
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

var errNotConfigured = notConfiguredError{}

type notConfiguredError struct{}

func (notConfiguredError) Error() string { return "not configured" }

func (c *Checker) runCheck(status *HealthStatus, name string, check func() error) {
	start := time.Now()
	err := check()
	latency := time.Since(start)

	if err != nil {
		status.Status = "unhealthy"
		status.Checks[name] = &CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
		return
	}
	status.Checks[name] = &CheckResult{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
