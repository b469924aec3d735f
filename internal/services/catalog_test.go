package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
)

const testCatalog = `
services:
  - name: North Route
    checkpoints:
      - Gate
      - Lobby
      - Roof
  - name: South Route
    checkpoints:
      - Dock
`

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return path
}

func TestCatalogLoadFile(t *testing.T) {
	ts := newTestStack(t)
	catalog := NewCatalogService(ts.db, ts.log, ts.serviceRepo, ts.checkpointRepo)
	dbc := dbctx.Context{Ctx: t.Context()}

	if err := catalog.LoadFile(t.Context(), writeCatalogFile(t, testCatalog)); err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	north, err := ts.serviceRepo.GetByName(dbc, "North Route")
	if err != nil || north == nil {
		t.Fatalf("north route missing: %v", err)
	}
	seq, err := ts.checkpointRepo.ListForService(dbc, north.ID)
	if err != nil {
		t.Fatalf("list sequence: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("north sequence length = %d, want 3", len(seq))
	}
	if seq[0].Name != "Gate" || seq[1].Name != "Lobby" || seq[2].Name != "Roof" {
		t.Fatalf("sequence order wrong: %s, %s, %s", seq[0].Name, seq[1].Name, seq[2].Name)
	}
}

func TestCatalogReloadIsIdempotent(t *testing.T) {
	ts := newTestStack(t)
	catalog := NewCatalogService(ts.db, ts.log, ts.serviceRepo, ts.checkpointRepo)
	dbc := dbctx.Context{Ctx: t.Context()}
	path := writeCatalogFile(t, testCatalog)

	if err := catalog.LoadFile(t.Context(), path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := catalog.LoadFile(t.Context(), path); err != nil {
		t.Fatalf("reload: %v", err)
	}

	north, err := ts.serviceRepo.GetByName(dbc, "North Route")
	if err != nil || north == nil {
		t.Fatalf("north route missing: %v", err)
	}
	seq, err := ts.checkpointRepo.ListForService(dbc, north.ID)
	if err != nil {
		t.Fatalf("list sequence: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("reload duplicated associations: length = %d", len(seq))
	}
}

func TestCatalogRejectsEmptyNames(t *testing.T) {
	ts := newTestStack(t)
	catalog := NewCatalogService(ts.db, ts.log, ts.serviceRepo, ts.checkpointRepo)

	if err := catalog.LoadFile(t.Context(), writeCatalogFile(t, "services:\n  - name: \"\"\n")); err == nil {
		t.Fatalf("expected error for empty service name")
	}
	if err := catalog.LoadFile(t.Context(), writeCatalogFile(t, "services:\n  - name: X\n    checkpoints:\n      - \"\"\n")); err == nil {
		t.Fatalf("expected error for empty checkpoint name")
	}
}
