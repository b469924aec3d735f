package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/services"
	"github.com/oversite/patrol-backend/internal/types"
)

type SyncHandler struct {
	log           *logger.Logger
	ingestService services.IngestService
}

func NewSyncHandler(log *logger.Logger, ingestService services.IngestService) *SyncHandler {
	handlerLog := log.With("handler", "SyncHandler")
	return &SyncHandler{log: handlerLog, ingestService: ingestService}
}

type syncScanRequest struct {
	GuardName    string          `json:"guard_name"`
	BadgeNumber  int             `json:"badge_number"`
	CheckpointID uint            `json:"checkpoint_id"`
	Note         string          `json:"note"`
	Timestamp    string          `json:"timestamp"`
	Geo          *types.GeoPoint `json:"geo"`
	ClientUUID   string          `json:"client_uuid"`
}

// IngestScans accepts a batch of replayed scans. A malformed payload rejects
// the whole request with no effect; business rejections are per item and
// reported alongside the applied UUIDs.
func (sh *SyncHandler) IngestScans(c *gin.Context) {
	var req struct {
		Scans []syncScanRequest `json:"scans"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Scans) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scans must not be empty"})
		return
	}

	batch := make([]types.ScanSubmission, 0, len(req.Scans))
	for i, item := range req.Scans {
		submission, err := parseScanRequest(item)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("scan %d: %s", i, err.Error())})
			return
		}
		batch = append(batch, *submission)
	}

	result, err := sh.ingestService.Ingest(c.Request.Context(), batch)
	if err != nil {
		if errors.Is(err, c.Request.Context().Err()) && c.Request.Context().Err() != nil {
			// The device disconnected mid-batch; whatever committed stays
			// durable and the replay will dedupe it.
			return
		}
		sh.log.Error("Batch ingestion aborted", "error", err, "applied", len(result.Applied))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":    "ingestion temporarily unavailable",
			"applied":  appliedStrings(result.Applied),
			"rejected": result.Rejected,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applied":  appliedStrings(result.Applied),
		"rejected": result.Rejected,
	})
}

func parseScanRequest(item syncScanRequest) (*types.ScanSubmission, error) {
	if item.BadgeNumber <= 0 {
		return nil, fmt.Errorf("badge_number must be positive")
	}
	if item.CheckpointID == 0 {
		return nil, fmt.Errorf("checkpoint_id required")
	}
	clientUUID, err := uuid.Parse(item.ClientUUID)
	if err != nil {
		return nil, fmt.Errorf("client_uuid is not a valid UUID")
	}
	scannedAt, err := time.Parse(time.RFC3339, item.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("timestamp must be ISO-8601 with offset")
	}
	return &types.ScanSubmission{
		GuardName:    item.GuardName,
		BadgeNumber:  item.BadgeNumber,
		CheckpointID: item.CheckpointID,
		Note:         item.Note,
		ScannedAt:    scannedAt,
		Geo:          item.Geo,
		ClientUUID:   clientUUID,
	}, nil
}

func appliedStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
