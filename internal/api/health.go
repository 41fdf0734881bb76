package api

import (
	"net/http"
	"time"

	"ai-assistant-hub/backend/pkg/config"

	"github.com/gin-gonic/gin"

	"gorm.io/gorm"
)

// HealthHandler reports process and database liveness
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Database:  "ok",
		Timestamp: time.Now(),
	}

	if h.db != nil {
		if err := config.Ping(h.db); err != nil {
			response.Status = "degraded"
			response.Database = "unreachable"
		}
	}

	status := http.StatusOK
	if response.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}

// RegisterRoutes registers the health endpoint
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}
