package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientService is a customer contract defining one ordered patrol route.
type ClientService struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;column:name" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ClientService) TableName() string {
	return "client_service"
}

func (cs *ClientService) BeforeCreate(tx *gorm.DB) error {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	return nil
}
