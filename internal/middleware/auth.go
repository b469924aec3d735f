package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
)

// ScopeSync authorizes scan upload and state queries from guard devices.
const ScopeSync = "patrol:sync"

const deviceIDKey = "device_id"

// DeviceAuthMiddleware verifies the capability token issued to guard
// devices. Authorization stops at this boundary; nothing below the handlers
// ever consults the token.
type DeviceAuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewDeviceAuthMiddleware(log *logger.Logger, secret string) *DeviceAuthMiddleware {
	middlewareLog := log.With("middleware", "DeviceAuthMiddleware")
	return &DeviceAuthMiddleware{log: middlewareLog, secret: []byte(secret)}
}

type deviceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func (am *DeviceAuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		claims := &deviceClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return am.secret, nil
		})
		if err != nil || !token.Valid {
			am.log.Debug("Rejected device token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !hasScope(claims.Scope, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}

		c.Set(deviceIDKey, claims.Subject)
		c.Next()
	}
}

// DeviceID returns the device identifier recorded by RequireScope.
func DeviceID(c *gin.Context) string {
	v, ok := c.Get(deviceIDKey)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func hasScope(granted, required string) bool {
	for _, s := range strings.Fields(granted) {
		if s == required {
			return true
		}
	}
	return false
}
