package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

type ScanEventRepo interface {
	ExistsByClientUUID(dbc dbctx.Context, clientUUID uuid.UUID) (bool, error)
	// Insert appends the event. It returns false when a row with the same
	// client UUID already exists (a concurrent replay won the race); the
	// caller must treat that as already-applied and roll back any progress
	// mutation made for this item.
	Insert(dbc dbctx.Context, event *types.ScanEvent) (bool, error)
	ListByGuard(dbc dbctx.Context, guardID uuid.UUID, limit int) ([]*types.ScanEvent, error)
}

type scanEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScanEventRepo(db *gorm.DB, baseLog *logger.Logger) ScanEventRepo {
	repoLog := baseLog.With("repo", "ScanEventRepo")
	return &scanEventRepo{db: db, log: repoLog}
}

func (er *scanEventRepo) ExistsByClientUUID(dbc dbctx.Context, clientUUID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = er.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ScanEvent{}).
		Where("client_uuid = ?", clientUUID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (er *scanEventRepo) Insert(dbc dbctx.Context, event *types.ScanEvent) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = er.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_uuid"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (er *scanEventRepo) ListByGuard(dbc dbctx.Context, guardID uuid.UUID, limit int) ([]*types.ScanEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = er.db
	}

	query := transaction.WithContext(dbc.Ctx).
		Where("guard_id = ?", guardID).
		Order("scanned_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var results []*types.ScanEvent
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
