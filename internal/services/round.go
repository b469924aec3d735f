package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/pkg/rounderr"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// ApplyOutcome is the accepted result of one scan against the round state
// machine. Completed means the scan closed the round and the guard was reset
// to awaiting-start.
type ApplyOutcome struct {
	ServiceID uuid.UUID
	NewIndex  int
	Completed bool
}

// RoundService is the round state machine. Apply validates one scan against
// the guard's current progress and decides accept/reject without touching
// the store; the caller persists the outcome atomically with the scan event.
//
// Apply must be called with the guard row locked by the enclosing
// transaction, otherwise two concurrent scans could both read the same index
// and silently skip a checkpoint.
type RoundService interface {
	Apply(dbc dbctx.Context, guard *types.Guard, checkpointID uint) (*ApplyOutcome, error)
}

type roundService struct {
	db             *gorm.DB
	log            *logger.Logger
	resolver       ServiceResolver
	checkpointRepo repos.CheckpointRepo
	serviceRepo    repos.ClientServiceRepo
}

func NewRoundService(db *gorm.DB, baseLog *logger.Logger, resolver ServiceResolver, checkpointRepo repos.CheckpointRepo, serviceRepo repos.ClientServiceRepo) RoundService {
	serviceLog := baseLog.With("service", "RoundService")
	return &roundService{
		db:             db,
		log:            serviceLog,
		resolver:       resolver,
		checkpointRepo: checkpointRepo,
		serviceRepo:    serviceRepo,
	}
}

func (rs *roundService) Apply(dbc dbctx.Context, guard *types.Guard, checkpointID uint) (*ApplyOutcome, error) {
	service, err := rs.boundService(dbc, guard, checkpointID)
	if err != nil {
		return nil, err
	}

	sequence, err := rs.checkpointRepo.ListForService(dbc, service.ID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint sequence for service %s: %w", service.ID, err)
	}
	if len(sequence) == 0 {
		return nil, &rounderr.EmptyServiceSequence{ServiceID: service.ID, ServiceName: service.Name}
	}

	newIndex, completed, err := decideTransition(guard.LastCheckpointIndex, checkpointID, sequence, service.Name)
	if err != nil {
		rs.log.Debug("Scan rejected",
			"badge_number", guard.BadgeNumber,
			"checkpoint_id", checkpointID,
			"current_index", guard.LastCheckpointIndex,
			"reason", err.Error())
		return nil, err
	}

	return &ApplyOutcome{ServiceID: service.ID, NewIndex: newIndex, Completed: completed}, nil
}

// boundService returns the service this scan is validated against: the one
// resolved from the scanned checkpoint when the guard is awaiting a round
// start (first-touch binding), or the already-bound one mid-round.
func (rs *roundService) boundService(dbc dbctx.Context, guard *types.Guard, checkpointID uint) (*types.ClientService, error) {
	if guard.AwaitingStart() {
		return rs.resolver.Resolve(dbc, checkpointID)
	}
	if guard.CurrentServiceID == nil {
		// Mid-round progress with no service association cannot be produced
		// by any accepted transition; abort the transaction.
		return nil, fmt.Errorf("guard %d is mid-round without a bound service", guard.BadgeNumber)
	}
	found, err := rs.serviceRepo.GetByIDs(dbc, []uuid.UUID{*guard.CurrentServiceID})
	if err != nil {
		return nil, fmt.Errorf("load bound service %s: %w", *guard.CurrentServiceID, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("bound service %s for guard %d no longer exists", *guard.CurrentServiceID, guard.BadgeNumber)
	}
	return found[0], nil
}

// decideTransition is the pure sequencing rule. The sequence is the bound
// service's checkpoint list ordered by ascending checkpoint id; lastIndex is
// the number of checkpoints already visited this round.
func decideTransition(lastIndex int, scanned uint, sequence []*types.Checkpoint, serviceName string) (newIndex int, completed bool, err error) {
	expectedIdx := lastIndex
	if expectedIdx < 0 || expectedIdx >= len(sequence) {
		// The catalog shrank under a round in flight; the only way forward
		// is a fresh round.
		expectedIdx = 0
	}
	expected := sequence[expectedIdx]

	if scanned == expected.ID {
		next := expectedIdx + 1
		if next == len(sequence) {
			return 0, true, nil
		}
		return next, false, nil
	}

	for _, cp := range sequence {
		if cp.ID == scanned {
			return 0, false, &rounderr.OutOfSequence{
				ScannedCheckpointID:  scanned,
				ExpectedCheckpointID: expected.ID,
				ExpectedName:         expected.Name,
				CurrentIndex:         lastIndex,
			}
		}
	}
	return 0, false, &rounderr.WrongService{CheckpointID: scanned, BoundServiceName: serviceName}
}
