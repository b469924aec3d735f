package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/services"
)

type GuardHandler struct {
	log           *logger.Logger
	statusService services.StatusService
}

func NewGuardHandler(log *logger.Logger, statusService services.StatusService) *GuardHandler {
	handlerLog := log.With("handler", "GuardHandler")
	return &GuardHandler{log: handlerLog, statusService: statusService}
}

func (gh *GuardHandler) GetStatus(c *gin.Context) {
	badgeNumber, ok := badgeParam(c)
	if !ok {
		return
	}
	status, err := gh.statusService.GetByBadge(c.Request.Context(), badgeNumber)
	if err != nil {
		if errors.Is(err, services.ErrGuardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown badge number"})
			return
		}
		gh.log.Error("Status query failed", "badge_number", badgeNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status query failed"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (gh *GuardHandler) ListScans(c *gin.Context) {
	badgeNumber, ok := badgeParam(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}
	events, err := gh.statusService.ListScans(c.Request.Context(), badgeNumber, limit)
	if err != nil {
		if errors.Is(err, services.ErrGuardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown badge number"})
			return
		}
		gh.log.Error("Scan listing failed", "badge_number", badgeNumber, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": events})
}

func badgeParam(c *gin.Context) (int, bool) {
	badgeNumber, err := strconv.Atoi(c.Param("badge"))
	if err != nil || badgeNumber <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "badge must be a positive integer"})
		return 0, false
	}
	return badgeNumber, true
}
