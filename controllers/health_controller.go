package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController serves liveness and database status
type HealthController struct {
	store  Pinger
	driver string
}

// NewHealthController creates a HealthController
func NewHealthController(store Pinger, driver string) *HealthController {
	return &HealthController{store: store, driver: driver}
}

// Health handles GET /api/v1/health
func (h *HealthController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Consulting Portal API is running",
	})
}

// DatabaseStatus handles GET /api/v1/database/status
func (h *HealthController) DatabaseStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondError(c, utils.NewAppError("DATABASE_CONNECTION_ERROR", "Database connection failed", http.StatusServiceUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"driver":  h.driver,
	})
}
