package app

import (
	"github.com/gin-gonic/gin"

	"github.com/oversite/patrol-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		SyncHandler:    handlerset.Sync,
		GuardHandler:   handlerset.Guard,
		AuthMiddleware: mw.DeviceAuth,
		AllowOrigins:   cfg.AllowOrigins,
	})
}
