package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/todomini/todomini-server/pkg/logger"
)

// Check probes one dependency; nil means healthy.
type Check func(ctx context.Context) error

// RegisterHealth mounts /health (process liveness) and /ready (every check
// must pass within timeout).
func RegisterHealth(r *gin.Engine, started time.Time, timeout time.Duration, checks map[string]Check) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		ready := true
		deps := make(map[string]bool, len(names))
		for _, n := range names {
			err := checks[n](ctx)
			deps[n] = err == nil
			if err != nil {
				ready = false
				logger.Warnf("readiness: %s: %v", n, err)
			}
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(started).String()})
	})
}
