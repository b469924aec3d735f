package app

import (
	"strings"
	"time"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/utils"
)

type Config struct {
	JWTSecretKey      string
	CatalogFile       string
	AllowOrigins      []string
	IngestItemTimeout time.Duration
	StatusCacheTTL    time.Duration
	Port              string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	catalogFile := utils.GetEnv("CATALOG_FILE", "", log)
	allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
	ingestItemTimeoutSeconds := utils.GetEnvAsInt("INGEST_ITEM_TIMEOUT", 10, log)
	statusCacheTTLSeconds := utils.GetEnvAsInt("STATUS_CACHE_TTL", 30, log)
	port := utils.GetEnv("PORT", "8080", log)
	return Config{
		JWTSecretKey:      jwtSecretKey,
		CatalogFile:       catalogFile,
		AllowOrigins:      strings.Split(allowOrigins, ","),
		IngestItemTimeout: time.Duration(ingestItemTimeoutSeconds) * time.Second,
		StatusCacheTTL:    time.Duration(statusCacheTTLSeconds) * time.Second,
		Port:              port,
	}
}
