package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dineops/customer-sync/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	analytics *database.Analytics
	version   string
}

func NewHealthController(analytics *database.Analytics, version string) *HealthController {
	return &HealthController{
		analytics: analytics,
		version:   version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check analytics database connectivity
	if h.analytics != nil {
		sqlDB, err := h.analytics.DB.DB()
		if err != nil {
			checks["analytics_db"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.Ping(); err != nil {
			checks["analytics_db"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["analytics_db"] = "ok"
		}
	} else {
		checks["analytics_db"] = "not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
