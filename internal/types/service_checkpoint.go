package types

import (
	"github.com/google/uuid"
)

// ServiceCheckpoint associates a checkpoint with a client service. The
// composite primary key makes the pair unique; the resolver rejects scans of
// checkpoints that appear here under more than one service.
type ServiceCheckpoint struct {
	ServiceID    uuid.UUID `gorm:"type:uuid;primaryKey;column:service_id" json:"service_id"`
	CheckpointID uint      `gorm:"primaryKey;column:checkpoint_id" json:"checkpoint_id"`
}

func (ServiceCheckpoint) TableName() string {
	return "service_checkpoint"
}
