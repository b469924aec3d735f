package types

import (
	"time"
)

// Checkpoint is a physical location identified by a scannable tag. The
// integer id doubles as the ordering key for a service's patrol sequence.
type Checkpoint struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;column:name" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Checkpoint) TableName() string {
	return "checkpoint"
}
