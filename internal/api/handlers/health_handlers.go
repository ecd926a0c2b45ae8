package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joltify-bridge/bridge_service/pkg/logger"
	"github.com/joltify-bridge/bridge_service/pkg/metrics"
)

// ReadinessProbe reports whether a dependency is usable.
type ReadinessProbe func() error

// CoreHandlers serves health, readiness and metrics endpoints.
type CoreHandlers struct {
	version string
	probes  map[string]ReadinessProbe
	started time.Time
	logger  *logger.Logger
}

// NewCoreHandlers creates the core handlers. probes is keyed by dependency
// name; each probe must be cheap.
func NewCoreHandlers(version string, probes map[string]ReadinessProbe, logger *logger.Logger) *CoreHandlers {
	return &CoreHandlers{
		version: version,
		probes:  probes,
		started: time.Now(),
		logger:  logger,
	}
}

// Health reports liveness plus dependency status.
func (h *CoreHandlers) Health(c *gin.Context) {
	status := http.StatusOK
	deps := make(map[string]string, len(h.probes))
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}
	c.JSON(status, gin.H{
		"status":       httpStatusWord(status),
		"uptime":       time.Since(h.started).String(),
		"dependencies": deps,
	})
}

// Ready reports whether the service can accept traffic.
func (h *CoreHandlers) Ready(c *gin.Context) {
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not ready",
				"dependency": name,
				"error":      err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live is a bare liveness probe.
func (h *CoreHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Version reports the build version.
func (h *CoreHandlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.version})
}

// Metrics serves the Prometheus scrape endpoint.
func (h *CoreHandlers) Metrics(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
