package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
	"github.com/oversite/patrol-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "patrol", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.ClientService{},
		&types.Checkpoint{},
		&types.ServiceCheckpoint{},
		&types.Guard{},
		&types.ScanEvent{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []struct {
		name string
		ddl  string
	}{
		{
			name: "fk_service_checkpoint_service_id",
			ddl: `ALTER TABLE "service_checkpoint"
			      ADD CONSTRAINT "fk_service_checkpoint_service_id"
			      FOREIGN KEY ("service_id") REFERENCES "client_service"("id")
			      ON DELETE CASCADE`,
		},
		{
			name: "fk_service_checkpoint_checkpoint_id",
			ddl: `ALTER TABLE "service_checkpoint"
			      ADD CONSTRAINT "fk_service_checkpoint_checkpoint_id"
			      FOREIGN KEY ("checkpoint_id") REFERENCES "checkpoint"("id")
			      ON DELETE CASCADE`,
		},
		{
			name: "fk_scan_event_guard_id",
			ddl: `ALTER TABLE "scan_event"
			      ADD CONSTRAINT "fk_scan_event_guard_id"
			      FOREIGN KEY ("guard_id") REFERENCES "guard"("id")`,
		},
	}
	for _, c := range constraints {
		var count int64
		if err := s.db.Raw(
			`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, c.name,
		).Scan(&count).Error; err != nil {
			return fmt.Errorf("Failed to inspect constraint %s: %w", c.name, err)
		}
		if count > 0 {
			continue
		}
		if err := s.db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("Failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
