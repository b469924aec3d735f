package services

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// CatalogService loads the operator-maintained patrol catalog (services and
// their ordered checkpoints) from a YAML file. Loading is idempotent, so the
// file can be re-applied on every boot. A checkpoint listed under two
// services is accepted here and rejected at scan time by the resolver, which
// names the conflicting services for the operator.
type CatalogService interface {
	LoadFile(ctx context.Context, path string) error
}

type catalogFile struct {
	Services []catalogServiceEntry `yaml:"services"`
}

type catalogServiceEntry struct {
	Name        string   `yaml:"name"`
	Checkpoints []string `yaml:"checkpoints"`
}

type catalogService struct {
	db             *gorm.DB
	log            *logger.Logger
	serviceRepo    repos.ClientServiceRepo
	checkpointRepo repos.CheckpointRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, serviceRepo repos.ClientServiceRepo, checkpointRepo repos.CheckpointRepo) CatalogService {
	serviceLog := baseLog.With("service", "CatalogService")
	return &catalogService{
		db:             db,
		log:            serviceLog,
		serviceRepo:    serviceRepo,
		checkpointRepo: checkpointRepo,
	}
}

func (cs *catalogService) LoadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	var doc catalogFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		for _, entry := range doc.Services {
			if entry.Name == "" {
				return fmt.Errorf("catalog service with empty name")
			}
			svc, err := cs.ensureService(dbc, entry.Name)
			if err != nil {
				return err
			}
			for _, cpName := range entry.Checkpoints {
				if cpName == "" {
					return fmt.Errorf("service %q lists an empty checkpoint name", entry.Name)
				}
				cp, err := cs.ensureCheckpoint(dbc, cpName)
				if err != nil {
					return err
				}
				if err := cs.serviceRepo.AttachCheckpoint(dbc, svc.ID, cp.ID); err != nil {
					return fmt.Errorf("attach checkpoint %q to service %q: %w", cpName, entry.Name, err)
				}
			}
			cs.log.Info("Catalog service loaded", "service", entry.Name, "checkpoints", len(entry.Checkpoints))
		}
		return nil
	})
}

func (cs *catalogService) ensureService(dbc dbctx.Context, name string) (*types.ClientService, error) {
	svc, err := cs.serviceRepo.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("lookup service %q: %w", name, err)
	}
	if svc != nil {
		return svc, nil
	}
	fresh := &types.ClientService{Name: name}
	if err := cs.serviceRepo.Create(dbc, []*types.ClientService{fresh}); err != nil {
		return nil, fmt.Errorf("create service %q: %w", name, err)
	}
	return fresh, nil
}

func (cs *catalogService) ensureCheckpoint(dbc dbctx.Context, name string) (*types.Checkpoint, error) {
	cp, err := cs.checkpointRepo.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("lookup checkpoint %q: %w", name, err)
	}
	if cp != nil {
		return cp, nil
	}
	fresh := &types.Checkpoint{Name: name}
	if err := cs.checkpointRepo.Create(dbc, []*types.Checkpoint{fresh}); err != nil {
		return nil, fmt.Errorf("create checkpoint %q: %w", name, err)
	}
	return fresh, nil
}
