// Package health serves the kubelet-facing liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/driftspace-vr/driftspace/server/go/internal/v1/logging"
)

// Pinger reports snapshot-store connectivity. A nil Pinger means persistence
// is disabled and the relay is ready on its own.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler manages health check endpoints
type Handler struct {
	snapshots Pinger
}

// NewHandler creates a new health check handler
func NewHandler(snapshots Pinger) *Handler {
	return &Handler{snapshots: snapshots}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 only if all critical dependencies are healthy, 503 otherwise
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	snapshotStatus := h.checkSnapshots(ctx)
	checks["snapshot_redis"] = snapshotStatus
	if snapshotStatus != "healthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkSnapshots verifies snapshot-store connectivity with a PING
func (h *Handler) checkSnapshots(ctx context.Context) string {
	if h.snapshots == nil {
		return "healthy" // persistence disabled, in-memory mode
	}

	if err := h.snapshots.Ping(ctx); err != nil {
		logging.Error(ctx, "snapshot store health check failed", zap.Error(err))
		return "unhealthy"
	}

	return "healthy"
}
