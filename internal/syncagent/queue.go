package syncagent

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
)

const (
	StatusPending  = "pending"
	StatusSynced   = "synced"
	StatusRejected = "rejected"
)

// ErrDuplicatePending means a pending scan for the same guard and checkpoint
// is already queued. Queuing it again would be rejected by the server at
// sync time anyway, so the device surfaces this to the user immediately.
var ErrDuplicatePending = errors.New("a pending scan for this guard and checkpoint is already queued")

// LocalScan is one locally captured scan awaiting upload. ClientUUID is
// assigned when the scan is first queued and never regenerated, so replays
// across app restarts dedupe server-side.
type LocalScan struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	ClientUUID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;column:client_uuid"`
	GuardName     string    `gorm:"not null;column:guard_name"`
	BadgeNumber   int       `gorm:"not null;index;column:badge_number"`
	CheckpointID  uint      `gorm:"not null;column:checkpoint_id"`
	Note          string    `gorm:"column:note"`
	Lat           *float64  `gorm:"column:lat"`
	Long          *float64  `gorm:"column:long"`
	ScannedAt     time.Time `gorm:"not null;column:scanned_at"`
	Status        string    `gorm:"not null;default:pending;index;column:status"`
	RejectCode    string    `gorm:"column:reject_code"`
	RejectMessage string    `gorm:"column:reject_message"`
	Attempts      int       `gorm:"not null;default:0;column:attempts"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (LocalScan) TableName() string {
	return "local_scan"
}

// Queue is the durable local scan queue backed by a sqlite file on the
// device. Records are only marked synced once the server confirms their
// UUID; they are never deleted.
type Queue struct {
	db  *gorm.DB
	log *logger.Logger
}

func OpenQueue(path string, baseLog *logger.Logger) (*Queue, error) {
	queueLog := baseLog.With("component", "Queue")

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	if err := gdb.AutoMigrate(&LocalScan{}); err != nil {
		return nil, fmt.Errorf("migrate queue db: %w", err)
	}
	return &Queue{db: gdb, log: queueLog}, nil
}

// Enqueue stores a new scan as pending. It assigns the idempotency key and
// applies the local duplicate pre-check.
func (q *Queue) Enqueue(scan *LocalScan) error {
	if scan.BadgeNumber <= 0 {
		return fmt.Errorf("badge number must be positive")
	}
	if scan.CheckpointID == 0 {
		return fmt.Errorf("checkpoint id required")
	}
	if scan.ClientUUID == uuid.Nil {
		scan.ClientUUID = uuid.New()
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now()
	}
	scan.Status = StatusPending

	var count int64
	if err := q.db.Model(&LocalScan{}).
		Where("badge_number = ? AND checkpoint_id = ? AND status = ?", scan.BadgeNumber, scan.CheckpointID, StatusPending).
		Count(&count).Error; err != nil {
		return fmt.Errorf("pending pre-check: %w", err)
	}
	if count > 0 {
		return ErrDuplicatePending
	}

	if err := q.db.Create(scan).Error; err != nil {
		return fmt.Errorf("queue scan: %w", err)
	}
	q.log.Info("Scan queued",
		"badge_number", scan.BadgeNumber,
		"checkpoint_id", scan.CheckpointID,
		"client_uuid", scan.ClientUUID.String())
	return nil
}

// Pending returns unsent scans in capture order, which is the order the
// server must apply them in.
func (q *Queue) Pending() ([]*LocalScan, error) {
	var scans []*LocalScan
	if err := q.db.
		Where("status = ?", StatusPending).
		Order("id ASC").
		Find(&scans).Error; err != nil {
		return nil, err
	}
	return scans, nil
}

func (q *Queue) MarkSynced(clientUUIDs []uuid.UUID) error {
	if len(clientUUIDs) == 0 {
		return nil
	}
	return q.db.Model(&LocalScan{}).
		Where("client_uuid IN ?", clientUUIDs).
		Updates(map[string]interface{}{"status": StatusSynced}).Error
}

// MarkRejected parks a scan the server deterministically refused. It will
// not be replayed; the code and message are kept for the user to act on.
func (q *Queue) MarkRejected(clientUUID uuid.UUID, code, message string) error {
	return q.db.Model(&LocalScan{}).
		Where("client_uuid = ?", clientUUID).
		Updates(map[string]interface{}{
			"status":         StatusRejected,
			"reject_code":    code,
			"reject_message": message,
		}).Error
}

func (q *Queue) BumpAttempts(clientUUIDs []uuid.UUID) error {
	if len(clientUUIDs) == 0 {
		return nil
	}
	return q.db.Model(&LocalScan{}).
		Where("client_uuid IN ?", clientUUIDs).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}
