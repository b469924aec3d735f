package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/pkg/rounderr"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// errAlreadyApplied aborts an item transaction when the scan event insert
// loses the client-uuid race to a concurrent replay. The rollback discards
// the progress update computed in this transaction; the item is reported as
// applied because the winning transaction recorded it.
var errAlreadyApplied = errors.New("scan already applied")

// IngestService replays batches of offline-originated scans exactly once.
//
// Items run strictly in submission order, one transaction per item, because
// later items routinely depend on state advanced by earlier ones (two
// consecutive checkpoints of one offline round arrive in the same batch).
// Business rejections are per-item and never abort the batch; infrastructure
// errors abort it, which is safe to retry thanks to the client-uuid dedupe.
type IngestService interface {
	Ingest(ctx context.Context, batch []types.ScanSubmission) (*types.IngestResult, error)
}

type ingestService struct {
	db          *gorm.DB
	log         *logger.Logger
	registry    GuardRegistry
	rounds      RoundService
	guardRepo   repos.GuardRepo
	scanRepo    repos.ScanEventRepo
	cache       StatusCache
	itemTimeout time.Duration
}

func NewIngestService(db *gorm.DB, baseLog *logger.Logger, registry GuardRegistry, rounds RoundService, guardRepo repos.GuardRepo, scanRepo repos.ScanEventRepo, cache StatusCache, itemTimeout time.Duration) IngestService {
	serviceLog := baseLog.With("service", "IngestService")
	if itemTimeout <= 0 {
		itemTimeout = 10 * time.Second
	}
	return &ingestService{
		db:          db,
		log:         serviceLog,
		registry:    registry,
		rounds:      rounds,
		guardRepo:   guardRepo,
		scanRepo:    scanRepo,
		cache:       cache,
		itemTimeout: itemTimeout,
	}
}

func (is *ingestService) Ingest(ctx context.Context, batch []types.ScanSubmission) (*types.IngestResult, error) {
	result := &types.IngestResult{}

	for i := range batch {
		item := &batch[i]

		// Cancellation is cooperative at item boundaries; everything
		// committed so far stays durable and is reported back on replay.
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := is.applyOne(ctx, item); err != nil {
			if errors.Is(err, errAlreadyApplied) {
				result.Applied = append(result.Applied, item.ClientUUID)
				continue
			}
			if rej, ok := rounderr.AsRejection(err); ok {
				is.log.Info("Scan rejected",
					"badge_number", item.BadgeNumber,
					"checkpoint_id", item.CheckpointID,
					"client_uuid", item.ClientUUID.String(),
					"code", rej.Code())
				result.Rejected = append(result.Rejected, types.ScanRejection{
					ClientUUID: item.ClientUUID,
					Code:       rej.Code(),
					Message:    rej.Error(),
				})
				continue
			}
			return result, fmt.Errorf("apply scan %s: %w", item.ClientUUID, err)
		}

		result.Applied = append(result.Applied, item.ClientUUID)
		is.invalidateStatus(ctx, item.BadgeNumber)
	}

	return result, nil
}

func (is *ingestService) applyOne(ctx context.Context, item *types.ScanSubmission) error {
	itemCtx, cancel := context.WithTimeout(ctx, is.itemTimeout)
	defer cancel()

	return is.db.WithContext(itemCtx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: itemCtx, Tx: tx}

		exists, err := is.scanRepo.ExistsByClientUUID(dbc, item.ClientUUID)
		if err != nil {
			return fmt.Errorf("dedupe lookup: %w", err)
		}
		if exists {
			return errAlreadyApplied
		}

		guard, err := is.registry.FindOrCreate(dbc, item.BadgeNumber, item.GuardName)
		if err != nil {
			return err
		}

		outcome, err := is.rounds.Apply(dbc, guard, item.CheckpointID)
		if err != nil {
			if _, ok := rounderr.AsRejection(err); ok {
				// The dedupe lookup above can predate a concurrent replay's
				// commit; once that replay holds the guard lock first, the
				// advanced state makes this duplicate look like a sequence
				// violation. Re-check under the lock before reporting a
				// rejection the device would park permanently.
				applied, existsErr := is.scanRepo.ExistsByClientUUID(dbc, item.ClientUUID)
				if existsErr != nil {
					return fmt.Errorf("dedupe re-check: %w", existsErr)
				}
				if applied {
					return errAlreadyApplied
				}
			}
			return err
		}

		event := &types.ScanEvent{
			GuardID:      guard.ID,
			CheckpointID: item.CheckpointID,
			ServiceID:    outcome.ServiceID,
			ScannedAt:    item.ScannedAt,
			Note:         item.Note,
			ClientUUID:   item.ClientUUID,
		}
		if item.Geo != nil {
			raw, err := json.Marshal(item.Geo)
			if err != nil {
				return fmt.Errorf("marshal geo: %w", err)
			}
			event.Geo = datatypes.JSON(raw)
		}

		inserted, err := is.scanRepo.Insert(dbc, event)
		if err != nil {
			return fmt.Errorf("insert scan event: %w", err)
		}
		if !inserted {
			return errAlreadyApplied
		}

		serviceID := outcome.ServiceID
		if err := is.guardRepo.UpdateProgress(dbc, guard.ID, &serviceID, outcome.NewIndex, !outcome.Completed && outcome.NewIndex > 0); err != nil {
			return fmt.Errorf("persist guard progress: %w", err)
		}
		return nil
	})
}

func (is *ingestService) invalidateStatus(ctx context.Context, badgeNumber int) {
	if is.cache == nil {
		return
	}
	if err := is.cache.Invalidate(ctx, badgeNumber); err != nil {
		is.log.Warn("Status cache invalidation failed", "badge_number", badgeNumber, "error", err)
	}
}
