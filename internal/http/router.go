package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/database/profiles"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	// SyncService drives the sync endpoints. Required.
	SyncService SyncService

	// Analytics is the destination store, used for health checks and the
	// read-only analytics endpoints. Optional.
	Analytics *database.Analytics

	// Application info
	Version string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Analytics, cfg.Version)
	syncController := NewSyncController(cfg.SyncService)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Sync lifecycle endpoints
	router.POST("/api/sync/start", syncController.StartSync)
	router.GET("/api/sync/status/:id", syncController.GetStatus)
	router.GET("/api/sync/tasks", syncController.ListTasks)
	router.POST("/api/sync/cancel/:id", syncController.CancelSync)

	// Read-only analytics endpoints
	if cfg.Analytics != nil {
		analyticsController := NewAnalyticsController(profiles.NewRepository(cfg.Analytics))
		router.GET("/api/analytics/segments", analyticsController.GetSegments)
		router.GET("/api/analytics/customers/:id", analyticsController.GetCustomer)
		router.GET("/api/analytics/suggestions", analyticsController.GetSuggestions)
	}

	return router
}
