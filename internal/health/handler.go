// Package health exposes liveness and readiness probes for the gateway.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amazingchow/game-companion-gateway/internal/logging"
)

// pinger is satisfied by *cache.Service and *store.Store.
type pinger interface {
	Ping(ctx context.Context) error
}

// kafkaChecker is satisfied by *bus.Producer.
type kafkaChecker interface {
	Healthy() bool
}

// Handler manages health check endpoints.
type Handler struct {
	redis pinger
	mongo pinger
	kafka kafkaChecker
}

// NewHandler builds a Handler. Any dependency left nil is reported healthy
// (treated as not deployed in this configuration).
func NewHandler(redis pinger, mongo pinger, kafka kafkaChecker) *Handler {
	return &Handler{redis: redis, mongo: mongo, kafka: kafka}
}

// LivenessResponse is the liveness probe response.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the readiness probe response.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Liveness returns 200 if the process is alive, with no dependency checks.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness returns 200 only if every configured dependency is healthy, 503
// otherwise.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"redis": h.checkPinger(ctx, "redis", h.redis),
		"mongo": h.checkPinger(ctx, "mongo", h.mongo),
		"kafka": h.checkKafka(),
	}

	allHealthy := true
	for _, v := range checks {
		if v != "healthy" {
			allHealthy = false
		}
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

func (h *Handler) checkPinger(ctx context.Context, name string, p pinger) string {
	if p == nil {
		return "healthy"
	}
	if err := p.Ping(ctx); err != nil {
		logging.Error(ctx, name+" health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}

func (h *Handler) checkKafka() string {
	if h.kafka == nil {
		return "healthy"
	}
	if !h.kafka.Healthy() {
		return "unhealthy"
	}
	return "healthy"
}
