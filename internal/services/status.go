package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// ErrGuardNotFound is returned by status queries for unknown badge numbers.
var ErrGuardNotFound = errors.New("guard not found")

// StatusCache is an optional read-through cache in front of the state-query
// endpoint. Implementations must tolerate concurrent use; a nil cache
// disables caching entirely.
type StatusCache interface {
	Get(ctx context.Context, badgeNumber int) (*types.GuardStatus, bool, error)
	Set(ctx context.Context, badgeNumber int, status *types.GuardStatus) error
	Invalidate(ctx context.Context, badgeNumber int) error
}

// StatusService answers the guard-facing state query: current service,
// round progress, and derived completion percentage.
type StatusService interface {
	GetByBadge(ctx context.Context, badgeNumber int) (*types.GuardStatus, error)
	ListScans(ctx context.Context, badgeNumber int, limit int) ([]*types.ScanEvent, error)
}

type statusService struct {
	db             *gorm.DB
	log            *logger.Logger
	guardRepo      repos.GuardRepo
	serviceRepo    repos.ClientServiceRepo
	checkpointRepo repos.CheckpointRepo
	scanRepo       repos.ScanEventRepo
	cache          StatusCache
}

func NewStatusService(db *gorm.DB, baseLog *logger.Logger, guardRepo repos.GuardRepo, serviceRepo repos.ClientServiceRepo, checkpointRepo repos.CheckpointRepo, scanRepo repos.ScanEventRepo, cache StatusCache) StatusService {
	serviceLog := baseLog.With("service", "StatusService")
	return &statusService{
		db:             db,
		log:            serviceLog,
		guardRepo:      guardRepo,
		serviceRepo:    serviceRepo,
		checkpointRepo: checkpointRepo,
		scanRepo:       scanRepo,
		cache:          cache,
	}
}

func (ss *statusService) GetByBadge(ctx context.Context, badgeNumber int) (*types.GuardStatus, error) {
	if ss.cache != nil {
		cached, hit, err := ss.cache.Get(ctx, badgeNumber)
		if err != nil {
			ss.log.Warn("Status cache read failed", "badge_number", badgeNumber, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	status, err := ss.loadStatus(ctx, badgeNumber)
	if err != nil {
		return nil, err
	}

	if ss.cache != nil {
		if err := ss.cache.Set(ctx, badgeNumber, status); err != nil {
			ss.log.Warn("Status cache write failed", "badge_number", badgeNumber, "error", err)
		}
	}
	return status, nil
}

func (ss *statusService) loadStatus(ctx context.Context, badgeNumber int) (*types.GuardStatus, error) {
	dbc := dbctx.Context{Ctx: ctx}

	guard, err := ss.guardRepo.GetByBadge(dbc, badgeNumber, false)
	if err != nil {
		return nil, fmt.Errorf("fetch guard by badge %d: %w", badgeNumber, err)
	}
	if guard == nil {
		return nil, ErrGuardNotFound
	}

	status := &types.GuardStatus{
		BadgeNumber:     guard.BadgeNumber,
		GuardName:       guard.Name,
		CheckpointIndex: guard.LastCheckpointIndex,
		RoundActive:     guard.RoundActive,
	}

	if guard.CurrentServiceID == nil {
		return status, nil
	}

	services, err := ss.serviceRepo.GetByIDs(dbc, []uuid.UUID{*guard.CurrentServiceID})
	if err != nil {
		return nil, fmt.Errorf("load service %s: %w", *guard.CurrentServiceID, err)
	}
	if len(services) == 0 {
		return status, nil
	}
	status.ServiceName = services[0].Name

	sequence, err := ss.checkpointRepo.ListForService(dbc, *guard.CurrentServiceID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint sequence: %w", err)
	}
	status.CheckpointTotal = len(sequence)
	if status.CheckpointTotal > 0 {
		status.Completion = float64(status.CheckpointIndex) / float64(status.CheckpointTotal)
	}
	return status, nil
}

func (ss *statusService) ListScans(ctx context.Context, badgeNumber int, limit int) ([]*types.ScanEvent, error) {
	dbc := dbctx.Context{Ctx: ctx}

	guard, err := ss.guardRepo.GetByBadge(dbc, badgeNumber, false)
	if err != nil {
		return nil, fmt.Errorf("fetch guard by badge %d: %w", badgeNumber, err)
	}
	if guard == nil {
		return nil, ErrGuardNotFound
	}
	return ss.scanRepo.ListByGuard(dbc, guard.ID, limit)
}
