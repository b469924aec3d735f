package app

import (
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/services"
)

type Services struct {
	Resolver services.ServiceResolver
	Registry services.GuardRegistry
	Round    services.RoundService
	Ingest   services.IngestService
	Status   services.StatusService
	Catalog  services.CatalogService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	resolver := services.NewServiceResolver(db, log, reposet.Checkpoint)
	registry := services.NewGuardRegistry(db, log, reposet.Guard)
	round := services.NewRoundService(db, log, resolver, reposet.Checkpoint, reposet.ClientService)
	ingest := services.NewIngestService(db, log, registry, round, reposet.Guard, reposet.ScanEvent, clients.StatusCache, cfg.IngestItemTimeout)
	status := services.NewStatusService(db, log, reposet.Guard, reposet.ClientService, reposet.Checkpoint, reposet.ScanEvent, clients.StatusCache)
	catalog := services.NewCatalogService(db, log, reposet.ClientService, reposet.Checkpoint)

	return Services{
		Resolver: resolver,
		Registry: registry,
		Round:    round,
		Ingest:   ingest,
		Status:   status,
		Catalog:  catalog,
	}
}
