package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/oversite/patrol-backend/internal/clients/redis"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/services"
)

type Clients struct {
	StatusCache services.StatusCache
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis is optional; without it status queries always hit the store.
	var cache services.StatusCache
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := redis.NewStatusCache(log, cfg.StatusCacheTTL)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis status cache: %w", err)
		}
		cache = c
	}

	return Clients{StatusCache: cache}, nil
}
