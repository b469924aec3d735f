package app

import (
	"github.com/oversite/patrol-backend/internal/middleware"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
)

type Middleware struct {
	DeviceAuth *middleware.DeviceAuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		DeviceAuth: middleware.NewDeviceAuthMiddleware(log, cfg.JWTSecretKey),
	}
}
