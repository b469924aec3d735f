package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScanEvent is the append-only record of one accepted checkpoint scan. Rows
// are never updated or deleted. ClientUUID is the idempotency key generated
// on the device once per physical scan; the unique index on it is what makes
// batch replay safe.
type ScanEvent struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	GuardID      uuid.UUID      `gorm:"type:uuid;not null;index;column:guard_id" json:"guard_id"`
	CheckpointID uint           `gorm:"not null;column:checkpoint_id" json:"checkpoint_id"`
	ServiceID    uuid.UUID      `gorm:"type:uuid;not null;column:service_id" json:"service_id"`
	ScannedAt    time.Time      `gorm:"not null;column:scanned_at" json:"scanned_at"`
	Geo          datatypes.JSON `gorm:"column:geo" json:"geo,omitempty"`
	Note         string         `gorm:"column:note" json:"note,omitempty"`
	ClientUUID   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;column:client_uuid" json:"client_uuid"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (ScanEvent) TableName() string {
	return "scan_event"
}

func (se *ScanEvent) BeforeCreate(tx *gorm.DB) error {
	if se.ID == uuid.Nil {
		se.ID = uuid.New()
	}
	return nil
}
