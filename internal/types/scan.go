package types

import (
	"time"

	"github.com/google/uuid"
)

// GeoPoint is an optional device-reported location attached to a scan.
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// ScanSubmission is one replayed scan as handed to the ingestion engine,
// already validated and well-typed.
type ScanSubmission struct {
	GuardName    string
	BadgeNumber  int
	CheckpointID uint
	Note         string
	ScannedAt    time.Time
	Geo          *GeoPoint
	ClientUUID   uuid.UUID
}

// ScanRejection reports a per-item business rejection inside a batch.
type ScanRejection struct {
	ClientUUID uuid.UUID `json:"client_uuid"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
}

// IngestResult accumulates the outcome of one batch. Applied carries every
// client UUID durably recorded, including duplicates of earlier attempts.
type IngestResult struct {
	Applied  []uuid.UUID     `json:"applied"`
	Rejected []ScanRejection `json:"rejected"`
}

// GuardStatus is the state-query projection consumed by the guard-facing UI.
type GuardStatus struct {
	BadgeNumber     int     `json:"badge_number"`
	GuardName       string  `json:"guard_name"`
	ServiceName     string  `json:"service_name,omitempty"`
	CheckpointIndex int     `json:"checkpoint_index"`
	CheckpointTotal int     `json:"checkpoint_total"`
	RoundActive     bool    `json:"round_active"`
	Completion      float64 `json:"completion"`
}
