package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

type CheckpointRepo interface {
	Create(dbc dbctx.Context, checkpoints []*types.Checkpoint) error
	GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Checkpoint, error)
	GetByName(dbc dbctx.Context, name string) (*types.Checkpoint, error)
	// ListForService returns the service's checkpoints ordered by ascending
	// checkpoint id. This ordering defines the patrol sequence.
	ListForService(dbc dbctx.Context, serviceID uuid.UUID) ([]*types.Checkpoint, error)
	// ServicesOwning returns every service associated with the checkpoint,
	// ordered by name so shared-checkpoint errors read deterministically.
	ServicesOwning(dbc dbctx.Context, checkpointID uint) ([]*types.ClientService, error)
}

type checkpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	repoLog := baseLog.With("repo", "CheckpointRepo")
	return &checkpointRepo{db: db, log: repoLog}
}

func (cr *checkpointRepo) Create(dbc dbctx.Context, checkpoints []*types.Checkpoint) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}
	if len(checkpoints) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&checkpoints).Error
}

func (cr *checkpointRepo) GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Checkpoint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Checkpoint
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

func (cr *checkpointRepo) GetByName(dbc dbctx.Context, name string) (*types.Checkpoint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Checkpoint
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

func (cr *checkpointRepo) ListForService(dbc dbctx.Context, serviceID uuid.UUID) ([]*types.Checkpoint, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Checkpoint
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN service_checkpoint ON service_checkpoint.checkpoint_id = checkpoint.id").
		Where("service_checkpoint.service_id = ?", serviceID).
		Order("checkpoint.id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *checkpointRepo) ServicesOwning(dbc dbctx.Context, checkpointID uint) ([]*types.ClientService, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.ClientService
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.ClientService{}).
		Joins("JOIN service_checkpoint ON service_checkpoint.service_id = client_service.id").
		Where("service_checkpoint.checkpoint_id = ?", checkpointID).
		Order("client_service.name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
