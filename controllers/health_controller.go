// controllers/health_controller.go
package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rescuelink/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const version = "1.0.0"

type HealthController struct {
	redis     *redis.Client
	registry  *ViewRegistry
	startedAt time.Time
}

func NewHealthController(redisClient *redis.Client, registry *ViewRegistry) *HealthController {
	return &HealthController{
		redis:     redisClient,
		registry:  registry,
		startedAt: time.Now(),
	}
}

// HealthCheck reports the gateway's own dependencies. The backend API is not
// probed.
// @Router /health [get]
func (hc *HealthController) HealthCheck(c *gin.Context) {
	checks := map[string]string{"views": "healthy"}
	if hc.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	}

	response := utils.HealthCheckResponse(checks, version, time.Since(hc.startedAt).Round(time.Second).String())
	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.Header("X-Mounted-Views", strconv.Itoa(hc.registry.Len()))
	c.JSON(status, response)
}
