package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/oversite/patrol-backend/internal/handlers"
	"github.com/oversite/patrol-backend/internal/middleware"
)

type RouterConfig struct {
	SyncHandler    *handlers.SyncHandler
	GuardHandler   *handlers.GuardHandler
	AuthMiddleware *middleware.DeviceAuthMiddleware
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)

	// Device-facing API; capability token checked here and nowhere deeper.
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireScope(middleware.ScopeSync))
	{
		api.POST("/scans/sync", cfg.SyncHandler.IngestScans)
		api.GET("/guards/:badge/status", cfg.GuardHandler.GetStatus)
		api.GET("/guards/:badge/scans", cfg.GuardHandler.ListScans)
	}

	return router
}
