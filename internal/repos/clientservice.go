package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

type ClientServiceRepo interface {
	Create(dbc dbctx.Context, services []*types.ClientService) error
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ClientService, error)
	GetByName(dbc dbctx.Context, name string) (*types.ClientService, error)
	// AttachCheckpoint associates a checkpoint with a service; attaching the
	// same pair twice is a no-op.
	AttachCheckpoint(dbc dbctx.Context, serviceID uuid.UUID, checkpointID uint) error
}

type clientServiceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientServiceRepo(db *gorm.DB, baseLog *logger.Logger) ClientServiceRepo {
	repoLog := baseLog.With("repo", "ClientServiceRepo")
	return &clientServiceRepo{db: db, log: repoLog}
}

func (sr *clientServiceRepo) Create(dbc dbctx.Context, services []*types.ClientService) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(services) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&services).Error
}

func (sr *clientServiceRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ClientService, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.ClientService
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *clientServiceRepo) GetByName(dbc dbctx.Context, name string) (*types.ClientService, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	var results []*types.ClientService
	if err := transaction.WithContext(dbc.Ctx).
		Where("name = ?", name).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (sr *clientServiceRepo) AttachCheckpoint(dbc dbctx.Context, serviceID uuid.UUID, checkpointID uint) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = sr.db
	}

	assoc := types.ServiceCheckpoint{ServiceID: serviceID, CheckpointID: checkpointID}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assoc).Error
}
