package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// GuardRegistry finds or lazily creates guards by badge number. New guards
// start awaiting a round with no service; binding happens in the round state
// machine off the first checkpoint actually scanned, not here.
type GuardRegistry interface {
	// FindOrCreate must run inside the ingestion transaction; the returned
	// guard row is locked until that transaction ends.
	FindOrCreate(dbc dbctx.Context, badgeNumber int, name string) (*types.Guard, error)
}

type guardRegistry struct {
	db        *gorm.DB
	log       *logger.Logger
	guardRepo repos.GuardRepo
}

func NewGuardRegistry(db *gorm.DB, baseLog *logger.Logger, guardRepo repos.GuardRepo) GuardRegistry {
	serviceLog := baseLog.With("service", "GuardRegistry")
	return &guardRegistry{db: db, log: serviceLog, guardRepo: guardRepo}
}

func (gr *guardRegistry) FindOrCreate(dbc dbctx.Context, badgeNumber int, name string) (*types.Guard, error) {
	if badgeNumber <= 0 {
		return nil, fmt.Errorf("badge number must be positive, got %d", badgeNumber)
	}

	guard, err := gr.guardRepo.GetByBadge(dbc, badgeNumber, true)
	if err != nil {
		return nil, fmt.Errorf("fetch guard by badge %d: %w", badgeNumber, err)
	}
	if guard != nil {
		// The name on file is authoritative; a differing name in a replayed
		// scan never overwrites it.
		return guard, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("guard name required to create badge %d", badgeNumber)
	}

	fresh := &types.Guard{
		BadgeNumber:         badgeNumber,
		Name:                name,
		LastCheckpointIndex: 0,
		RoundActive:         false,
	}
	if err := gr.guardRepo.Create(dbc, fresh); err != nil {
		// A concurrent first scan may have created the badge between the
		// lookup and the insert; the unique index makes that loser re-read.
		existing, fetchErr := gr.guardRepo.GetByBadge(dbc, badgeNumber, true)
		if fetchErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create guard badge %d: %w", badgeNumber, err)
	}
	gr.log.Info("Created guard on first scan", "badge_number", badgeNumber)
	return fresh, nil
}
