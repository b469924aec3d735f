package app

import (
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/repos"
)

type Repos struct {
	Checkpoint    repos.CheckpointRepo
	ClientService repos.ClientServiceRepo
	Guard         repos.GuardRepo
	ScanEvent     repos.ScanEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Checkpoint:    repos.NewCheckpointRepo(db, log),
		ClientService: repos.NewClientServiceRepo(db, log),
		Guard:         repos.NewGuardRepo(db, log),
		ScanEvent:     repos.NewScanEventRepo(db, log),
	}
}
