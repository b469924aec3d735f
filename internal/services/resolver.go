package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/pkg/rounderr"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// ServiceResolver determines which client service owns a checkpoint. A
// checkpoint owned by zero or several services is a catalog misconfiguration
// and always rejects; the resolver never picks one arbitrarily.
type ServiceResolver interface {
	Resolve(dbc dbctx.Context, checkpointID uint) (*types.ClientService, error)
}

type serviceResolver struct {
	db             *gorm.DB
	log            *logger.Logger
	checkpointRepo repos.CheckpointRepo
}

func NewServiceResolver(db *gorm.DB, baseLog *logger.Logger, checkpointRepo repos.CheckpointRepo) ServiceResolver {
	serviceLog := baseLog.With("service", "ServiceResolver")
	return &serviceResolver{db: db, log: serviceLog, checkpointRepo: checkpointRepo}
}

func (sr *serviceResolver) Resolve(dbc dbctx.Context, checkpointID uint) (*types.ClientService, error) {
	owners, err := sr.checkpointRepo.ServicesOwning(dbc, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("lookup owning services for checkpoint %d: %w", checkpointID, err)
	}
	switch len(owners) {
	case 0:
		return nil, &rounderr.NoServiceForCheckpoint{CheckpointID: checkpointID}
	case 1:
		return owners[0], nil
	default:
		names := make([]string, 0, len(owners))
		for _, svc := range owners {
			names = append(names, svc.Name)
		}
		sr.log.Warn("Checkpoint mapped to multiple services", "checkpoint_id", checkpointID, "services", names)
		return nil, &rounderr.SharedCheckpoint{CheckpointID: checkpointID, ServiceNames: names}
	}
}
