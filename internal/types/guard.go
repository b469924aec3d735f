package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guard holds a guard's identity and current round progress.
//
// LastCheckpointIndex = 0 with RoundActive = false means "awaiting round
// start"; the service association may only change in that state.
type Guard struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BadgeNumber         int        `gorm:"uniqueIndex;not null;column:badge_number" json:"badge_number"`
	Name                string     `gorm:"not null;column:name" json:"name"`
	CurrentServiceID    *uuid.UUID `gorm:"type:uuid;column:current_service_id" json:"current_service_id"`
	LastCheckpointIndex int        `gorm:"not null;default:0;column:last_checkpoint_index" json:"last_checkpoint_index"`
	RoundActive         bool       `gorm:"not null;default:false;column:round_active" json:"round_active"`
	CreatedAt           time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`
}

func (Guard) TableName() string {
	return "guard"
}

func (g *Guard) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// AwaitingStart reports whether the guard may bind to a (possibly different)
// service on the next scan.
func (g *Guard) AwaitingStart() bool {
	return g.LastCheckpointIndex == 0 && !g.RoundActive
}
