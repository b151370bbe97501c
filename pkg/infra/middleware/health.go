package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the health status.
type HealthStatus string

const (
	// HealthStatusUp indicates the service is healthy.
	HealthStatusUp HealthStatus = "UP"
	// HealthStatusDown indicates the service is unhealthy.
	HealthStatusDown HealthStatus = "DOWN"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  HealthStatus           `json:"status"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
	Version string                 `json:"version,omitempty"`
}

// CheckResult represents an individual health check result.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthChecker is a function that performs a health check.
type HealthChecker func(ctx context.Context) error

// HealthManager manages health checks.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	timeout  time.Duration
}

// NewHealthManager creates a new health manager. Each check is bounded by timeout.
func NewHealthManager(version string, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		timeout:  timeout,
	}
}

// RegisterChecker registers a health checker.
func (h *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// Check performs all health checks.
func (h *HealthManager) Check(ctx context.Context) HealthResponse {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := HealthResponse{Status: HealthStatusUp, Version: h.version}
	if len(h.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(h.checkers))
	for name, checker := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := checker(checkCtx)
		cancel()

		if err != nil {
			resp.Status = HealthStatusDown
			resp.Checks[name] = CheckResult{Status: HealthStatusDown, Message: err.Error()}
			continue
		}
		resp.Checks[name] = CheckResult{Status: HealthStatusUp}
	}
	return resp
}

// Handler serves the aggregated health report; 503 when any check fails.
func (h *HealthManager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := h.Check(c.Request.Context())
		status := http.StatusOK
		if resp.Status == HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
