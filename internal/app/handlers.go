package app

import (
	"github.com/oversite/patrol-backend/internal/handlers"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
)

type Handlers struct {
	Sync  *handlers.SyncHandler
	Guard *handlers.GuardHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Sync:  handlers.NewSyncHandler(log, serviceset.Ingest),
		Guard: handlers.NewGuardHandler(log, serviceset.Status),
	}
}
