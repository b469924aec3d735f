package syncagent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/oversite/patrol-backend/internal/pkg/httpx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

// Sender uploads pending scans to the ingestion endpoint. Transient
// failures are retried in place with backoff; anything else is reported to
// the agent, which decides per item what to do with the queue.
type Sender struct {
	client *resty.Client
	log    *logger.Logger
}

func NewSender(serverURL, deviceToken string, timeout time.Duration, baseLog *logger.Logger) *Sender {
	senderLog := baseLog.With("component", "Sender")

	client := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(timeout).
		SetAuthToken(deviceToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return httpx.IsRetryableError(err)
			}
			return httpx.IsRetryableHTTPStatus(r.StatusCode())
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			// A throttling server's Retry-After overrides the default wait.
			var raw *http.Response
			if r != nil {
				raw = r.RawResponse
			}
			return httpx.RetryAfterDuration(raw, c.RetryWaitTime, c.RetryMaxWaitTime), nil
		})

	return &Sender{client: client, log: senderLog}
}

type wireScan struct {
	GuardName    string          `json:"guard_name"`
	BadgeNumber  int             `json:"badge_number"`
	CheckpointID uint            `json:"checkpoint_id"`
	Note         string          `json:"note,omitempty"`
	Timestamp    string          `json:"timestamp"`
	Geo          *types.GeoPoint `json:"geo,omitempty"`
	ClientUUID   string          `json:"client_uuid"`
}

type wireResponse struct {
	Applied  []string              `json:"applied"`
	Rejected []types.ScanRejection `json:"rejected"`
	Error    string                `json:"error"`
}

// PushResult is the server's verdict on one upload attempt.
type PushResult struct {
	Applied  []uuid.UUID
	Rejected []types.ScanRejection
}

func (s *Sender) Push(ctx context.Context, scans []*LocalScan) (*PushResult, error) {
	payload := struct {
		Scans []wireScan `json:"scans"`
	}{Scans: make([]wireScan, 0, len(scans))}
	for _, scan := range scans {
		item := wireScan{
			GuardName:    scan.GuardName,
			BadgeNumber:  scan.BadgeNumber,
			CheckpointID: scan.CheckpointID,
			Note:         scan.Note,
			Timestamp:    scan.ScannedAt.Format(time.RFC3339),
			ClientUUID:   scan.ClientUUID.String(),
		}
		if scan.Lat != nil && scan.Long != nil {
			item.Geo = &types.GeoPoint{Lat: *scan.Lat, Long: *scan.Long}
		}
		payload.Scans = append(payload.Scans, item)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/api/scans/sync")
	if err != nil {
		return nil, fmt.Errorf("upload batch: %w", err)
	}

	var body wireResponse
	if len(resp.Body()) > 0 {
		// A 503 mid-batch still carries the UUIDs applied before the
		// failure; marking those synced now shrinks the next replay.
		if err := json.Unmarshal(resp.Body(), &body); err != nil && resp.IsSuccess() {
			return nil, fmt.Errorf("decode sync response: %w", err)
		}
	}

	result := &PushResult{Rejected: body.Rejected}
	for _, raw := range body.Applied {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.log.Warn("Server returned unparseable applied uuid", "value", raw)
			continue
		}
		result.Applied = append(result.Applied, id)
	}

	if resp.IsSuccess() {
		return result, nil
	}
	return result, fmt.Errorf("sync endpoint returned %d: %s", resp.StatusCode(), body.Error)
}
