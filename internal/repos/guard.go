package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

type GuardRepo interface {
	// GetByBadge returns nil without error when no guard has the badge.
	// With forUpdate the guard row is locked for the duration of the
	// enclosing transaction, serializing concurrent scans for one guard.
	GetByBadge(dbc dbctx.Context, badgeNumber int, forUpdate bool) (*types.Guard, error)
	Create(dbc dbctx.Context, guard *types.Guard) error
	// UpdateProgress writes the round progress fields in one statement. It
	// must run inside the same transaction as the scan event insert.
	UpdateProgress(dbc dbctx.Context, guardID uuid.UUID, serviceID *uuid.UUID, index int, active bool) error
}

type guardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGuardRepo(db *gorm.DB, baseLog *logger.Logger) GuardRepo {
	repoLog := baseLog.With("repo", "GuardRepo")
	return &guardRepo{db: db, log: repoLog}
}

func (gr *guardRepo) GetByBadge(dbc dbctx.Context, badgeNumber int, forUpdate bool) (*types.Guard, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = gr.db
	}

	query := transaction.WithContext(dbc.Ctx)
	// sqlite has no row locks; its single-writer model covers the tests.
	if forUpdate && transaction.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var results []*types.Guard
	if err := query.
		Where("badge_number = ?", badgeNumber).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (gr *guardRepo) Create(dbc dbctx.Context, guard *types.Guard) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(dbc.Ctx).Create(guard).Error
}

func (gr *guardRepo) UpdateProgress(dbc dbctx.Context, guardID uuid.UUID, serviceID *uuid.UUID, index int, active bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = gr.db
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Guard{}).
		Where("id = ?", guardID).
		Updates(map[string]interface{}{
			"current_service_id":    serviceID,
			"last_checkpoint_index": index,
			"round_active":          active,
		}).Error
}
