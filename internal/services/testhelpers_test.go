package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

var testDBCounter int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache DSN keeps the in-memory database alive across the
	// multiple connections gorm opens during a test.
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Checkpoint{},
		&types.ClientService{},
		&types.ServiceCheckpoint{},
		&types.Guard{},
		&types.ScanEvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

type testStack struct {
	db             *gorm.DB
	log            *logger.Logger
	checkpointRepo repos.CheckpointRepo
	serviceRepo    repos.ClientServiceRepo
	guardRepo      repos.GuardRepo
	scanRepo       repos.ScanEventRepo
	resolver       ServiceResolver
	registry       GuardRegistry
	rounds         RoundService
	ingest         IngestService
	status         StatusService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := openTestDB(t)
	log := testLogger(t)

	checkpointRepo := repos.NewCheckpointRepo(db, log)
	serviceRepo := repos.NewClientServiceRepo(db, log)
	guardRepo := repos.NewGuardRepo(db, log)
	scanRepo := repos.NewScanEventRepo(db, log)

	resolver := NewServiceResolver(db, log, checkpointRepo)
	registry := NewGuardRegistry(db, log, guardRepo)
	rounds := NewRoundService(db, log, resolver, checkpointRepo, serviceRepo)
	ingest := NewIngestService(db, log, registry, rounds, guardRepo, scanRepo, nil, 0)
	status := NewStatusService(db, log, guardRepo, serviceRepo, checkpointRepo, scanRepo, nil)

	return &testStack{
		db:             db,
		log:            log,
		checkpointRepo: checkpointRepo,
		serviceRepo:    serviceRepo,
		guardRepo:      guardRepo,
		scanRepo:       scanRepo,
		resolver:       resolver,
		registry:       registry,
		rounds:         rounds,
		ingest:         ingest,
		status:         status,
	}
}

// seedRoute creates a service and its checkpoints in order, returning the
// checkpoint ids as laid out.
func (ts *testStack) seedRoute(t *testing.T, serviceName string, checkpointNames ...string) (uuid.UUID, []uint) {
	t.Helper()
	dbc := dbctx.Context{Ctx: t.Context()}

	svc := &types.ClientService{Name: serviceName}
	if err := ts.serviceRepo.Create(dbc, []*types.ClientService{svc}); err != nil {
		t.Fatalf("create service %q: %v", serviceName, err)
	}

	ids := make([]uint, 0, len(checkpointNames))
	for _, name := range checkpointNames {
		cp, err := ts.checkpointRepo.GetByName(dbc, name)
		if err != nil {
			t.Fatalf("lookup checkpoint %q: %v", name, err)
		}
		if cp == nil {
			cp = &types.Checkpoint{Name: name}
			if err := ts.checkpointRepo.Create(dbc, []*types.Checkpoint{cp}); err != nil {
				t.Fatalf("create checkpoint %q: %v", name, err)
			}
		}
		if err := ts.serviceRepo.AttachCheckpoint(dbc, svc.ID, cp.ID); err != nil {
			t.Fatalf("attach checkpoint %q: %v", name, err)
		}
		ids = append(ids, cp.ID)
	}
	return svc.ID, ids
}

func (ts *testStack) mustGuard(t *testing.T, badge int) *types.Guard {
	t.Helper()
	guard, err := ts.guardRepo.GetByBadge(dbctx.Context{Ctx: t.Context()}, badge, false)
	if err != nil {
		t.Fatalf("fetch guard %d: %v", badge, err)
	}
	if guard == nil {
		t.Fatalf("guard %d not found", badge)
	}
	return guard
}

func submission(badge int, name string, checkpointID uint) types.ScanSubmission {
	return types.ScanSubmission{
		GuardName:    name,
		BadgeNumber:  badge,
		CheckpointID: checkpointID,
		ScannedAt:    time.Now().UTC(),
		ClientUUID:   uuid.New(),
	}
}
