package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oversite/patrol-backend/internal/pkg/dbctx"
	"github.com/oversite/patrol-backend/internal/pkg/rounderr"
	"github.com/oversite/patrol-backend/internal/repos"
	"github.com/oversite/patrol-backend/internal/types"
)

// staleDedupeScanRepo answers the first dedupe lookup with "not seen",
// reproducing a read that ran before a concurrent replay of the same scan
// committed and advanced the guard.
type staleDedupeScanRepo struct {
	repos.ScanEventRepo
	stale bool
}

func (r *staleDedupeScanRepo) ExistsByClientUUID(dbc dbctx.Context, clientUUID uuid.UUID) (bool, error) {
	if r.stale {
		r.stale = false
		return false, nil
	}
	return r.ScanEventRepo.ExistsByClientUUID(dbc, clientUUID)
}

func TestIngestFullRound(t *testing.T) {
	ts := newTestStack(t)
	svcID, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby", "Roof")

	// In order: start, skip ahead (rejected), resume, repeat of the first
	// checkpoint (rejected), finish.
	scans := []types.ScanSubmission{
		submission(500, "Dana Cole", cpIDs[0]),
		submission(500, "Dana Cole", cpIDs[2]),
		submission(500, "Dana Cole", cpIDs[1]),
		submission(500, "Dana Cole", cpIDs[0]),
		submission(500, "Dana Cole", cpIDs[2]),
	}

	result, err := ts.ingest.Ingest(t.Context(), scans)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Applied) != 3 {
		t.Fatalf("applied = %d, want 3", len(result.Applied))
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("rejected = %d, want 2", len(result.Rejected))
	}
	for _, rej := range result.Rejected {
		if rej.Code != rounderr.CodeOutOfSequence {
			t.Fatalf("rejection code = %q, want %q", rej.Code, rounderr.CodeOutOfSequence)
		}
	}

	guard := ts.mustGuard(t, 500)
	if !guard.AwaitingStart() {
		t.Fatalf("guard should be awaiting a new round after completion, got index=%d active=%v",
			guard.LastCheckpointIndex, guard.RoundActive)
	}
	// Completion keeps the last service on record for status queries.
	if guard.CurrentServiceID == nil || *guard.CurrentServiceID != svcID {
		t.Fatalf("completed round should keep the service association")
	}

	events, err := ts.scanRepo.ListByGuard(dbctx.Context{Ctx: t.Context()}, guard.ID, 0)
	if err != nil {
		t.Fatalf("list scans: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("stored events = %d, want only accepted scans", len(events))
	}
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby", "Roof")

	scans := []types.ScanSubmission{
		submission(501, "Raj Patel", cpIDs[0]),
		submission(501, "Raj Patel", cpIDs[1]),
	}

	first, err := ts.ingest.Ingest(t.Context(), scans)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := ts.ingest.Ingest(t.Context(), scans)
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}

	// The replay acknowledges every UUID again without re-applying anything.
	if len(second.Applied) != len(first.Applied) {
		t.Fatalf("replay applied = %d, want %d", len(second.Applied), len(first.Applied))
	}
	if len(second.Rejected) != 0 {
		t.Fatalf("replay rejected = %v, want none", second.Rejected)
	}

	guard := ts.mustGuard(t, 501)
	if guard.LastCheckpointIndex != 2 || !guard.RoundActive {
		t.Fatalf("replay advanced progress: index=%d active=%v", guard.LastCheckpointIndex, guard.RoundActive)
	}

	events, err := ts.scanRepo.ListByGuard(dbctx.Context{Ctx: t.Context()}, guard.ID, 0)
	if err != nil {
		t.Fatalf("list scans: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("stored events = %d after replay, want 2", len(events))
	}
}

func TestIngestMixedReplayAndNewScans(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby")

	start := submission(502, "Mia Wong", cpIDs[0])
	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{start}); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	// A retried batch often carries the already-applied scan alongside the
	// new one; the duplicate must ack without disturbing the new scan.
	next := submission(502, "Mia Wong", cpIDs[1])
	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{start, next})
	if err != nil {
		t.Fatalf("mixed ingest: %v", err)
	}
	if len(result.Applied) != 2 || len(result.Rejected) != 0 {
		t.Fatalf("got applied=%d rejected=%d, want 2/0", len(result.Applied), len(result.Rejected))
	}

	guard := ts.mustGuard(t, 502)
	if !guard.AwaitingStart() {
		t.Fatalf("two-checkpoint round should have completed")
	}
}

func TestIngestRejectedScanLeavesNoTrace(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby")

	// Starting mid-route is rejected and must not create progress, though the
	// guard record itself is registered.
	bad := submission(503, "Ola Berg", cpIDs[1])
	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{bad})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Code != rounderr.CodeOutOfSequence {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Rejected[0].ClientUUID != bad.ClientUUID {
		t.Fatalf("rejection must carry the submitted client uuid")
	}

	guard := ts.mustGuard(t, 503)
	if guard.CurrentServiceID != nil || !guard.AwaitingStart() {
		t.Fatalf("rejected first scan must not bind or advance: %+v", guard)
	}

	events, err := ts.scanRepo.ListByGuard(dbctx.Context{Ctx: t.Context()}, guard.ID, 0)
	if err != nil {
		t.Fatalf("list scans: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("rejected scan was persisted")
	}
}

func TestIngestRebindsAfterCompletion(t *testing.T) {
	ts := newTestStack(t)
	northID, northCPs := ts.seedRoute(t, "North Route", "Gate")
	southID, southCPs := ts.seedRoute(t, "South Route", "Dock", "Pier")

	// Single-checkpoint round completes immediately and frees the guard to
	// start the next round on a different service.
	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(504, "Sam Reed", northCPs[0]),
	}); err != nil {
		t.Fatalf("north round: %v", err)
	}
	guard := ts.mustGuard(t, 504)
	if guard.CurrentServiceID == nil || *guard.CurrentServiceID != northID {
		t.Fatalf("expected north service on record after completion")
	}

	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(504, "Sam Reed", southCPs[0]),
	})
	if err != nil {
		t.Fatalf("south round: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("rebind scan not applied: %+v", result)
	}

	guard = ts.mustGuard(t, 504)
	if guard.CurrentServiceID == nil || *guard.CurrentServiceID != southID {
		t.Fatalf("guard did not rebind to south service")
	}
	if guard.LastCheckpointIndex != 1 || !guard.RoundActive {
		t.Fatalf("south round progress wrong: index=%d active=%v", guard.LastCheckpointIndex, guard.RoundActive)
	}
}

func TestIngestMidRoundLockToBoundService(t *testing.T) {
	ts := newTestStack(t)
	_, northCPs := ts.seedRoute(t, "North Route", "Gate", "Lobby")
	_, southCPs := ts.seedRoute(t, "South Route", "Dock")

	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(505, "Lee Park", northCPs[0]),
		submission(505, "Lee Park", southCPs[0]),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Applied) != 1 || len(result.Rejected) != 1 {
		t.Fatalf("got applied=%d rejected=%d, want 1/1", len(result.Applied), len(result.Rejected))
	}
	if result.Rejected[0].Code != rounderr.CodeWrongService {
		t.Fatalf("rejection code = %q, want %q", result.Rejected[0].Code, rounderr.CodeWrongService)
	}
}

func TestIngestUnknownCheckpoint(t *testing.T) {
	ts := newTestStack(t)
	ts.seedRoute(t, "North Route", "Gate")

	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(506, "Ira Katz", 9999),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Code != rounderr.CodeNoServiceForCheckpoint {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestIngestGuardNameStaysAuthoritative(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby")

	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(507, "Original Name", cpIDs[0]),
	}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(507, "Changed Name", cpIDs[1]),
	}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	guard := ts.mustGuard(t, 507)
	if guard.Name != "Original Name" {
		t.Fatalf("guard name = %q, replayed scans must not rename", guard.Name)
	}
}

func TestIngestDuplicateWithAdvancedStateIsAcked(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby")

	first := submission(509, "Kim Soto", cpIDs[0])
	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{first}); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	// Two overlapping batches can carry the same scan. The loser's dedupe
	// lookup runs before the winner commits, then the guard lock hands it
	// advanced state under which the duplicate looks out of sequence. It
	// must still be acked as applied, never rejected.
	staleRepo := &staleDedupeScanRepo{ScanEventRepo: ts.scanRepo, stale: true}
	ingest := NewIngestService(ts.db, ts.log, ts.registry, ts.rounds, ts.guardRepo, staleRepo, nil, 0)

	result, err := ingest.Ingest(t.Context(), []types.ScanSubmission{first})
	if err != nil {
		t.Fatalf("replay ingest: %v", err)
	}
	if len(result.Rejected) != 0 {
		t.Fatalf("duplicate reported as rejection: %+v", result.Rejected)
	}
	if len(result.Applied) != 1 || result.Applied[0] != first.ClientUUID {
		t.Fatalf("duplicate not acked as applied: %+v", result.Applied)
	}

	guard := ts.mustGuard(t, 509)
	if guard.LastCheckpointIndex != 1 || !guard.RoundActive {
		t.Fatalf("duplicate disturbed progress: index=%d active=%v", guard.LastCheckpointIndex, guard.RoundActive)
	}
	events, err := ts.scanRepo.ListByGuard(dbctx.Context{Ctx: t.Context()}, guard.ID, 0)
	if err != nil {
		t.Fatalf("list scans: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("stored events = %d after duplicate, want 1", len(events))
	}
}

func TestIngestEmptiedRouteMidRound(t *testing.T) {
	ts := newTestStack(t)
	svcID, cpIDs := ts.seedRoute(t, "North Route", "Gate", "Lobby")

	if _, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(510, "Ana Diaz", cpIDs[0]),
	}); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	// Operator strips every checkpoint from the route while the round is
	// still open.
	if err := ts.db.Where("service_id = ?", svcID).Delete(&types.ServiceCheckpoint{}).Error; err != nil {
		t.Fatalf("strip route: %v", err)
	}

	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{
		submission(510, "Ana Diaz", cpIDs[1]),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Code != rounderr.CodeEmptyServiceSequence {
		t.Fatalf("unexpected result: %+v", result)
	}

	guard := ts.mustGuard(t, 510)
	if guard.LastCheckpointIndex != 1 || !guard.RoundActive {
		t.Fatalf("rejection disturbed progress: index=%d active=%v", guard.LastCheckpointIndex, guard.RoundActive)
	}
}

func TestIngestItemTimeoutIsInfrastructureError(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate")

	ingest := NewIngestService(ts.db, ts.log, ts.registry, ts.rounds, ts.guardRepo, ts.scanRepo, nil, time.Nanosecond)

	scan := submission(511, "Tom Boyd", cpIDs[0])
	result, err := ingest.Ingest(t.Context(), []types.ScanSubmission{scan})
	if err == nil {
		t.Fatalf("expected an error from the expired item deadline, got %+v", result)
	}
	// Deadline expiry is retryable infrastructure failure, not a business
	// rejection the device would park.
	if _, ok := rounderr.AsRejection(err); ok {
		t.Fatalf("timeout surfaced as a business rejection: %v", err)
	}
	if len(result.Applied) != 0 || len(result.Rejected) != 0 {
		t.Fatalf("timed-out item must not be acked: %+v", result)
	}

	exists, err := ts.scanRepo.ExistsByClientUUID(dbctx.Context{Ctx: t.Context()}, scan.ClientUUID)
	if err != nil {
		t.Fatalf("dedupe lookup: %v", err)
	}
	if exists {
		t.Fatalf("timed-out scan was persisted")
	}
}

func TestIngestRequiresNameForNewGuard(t *testing.T) {
	ts := newTestStack(t)
	_, cpIDs := ts.seedRoute(t, "North Route", "Gate")

	scan := submission(508, "", cpIDs[0])
	result, err := ts.ingest.Ingest(t.Context(), []types.ScanSubmission{scan})
	if err == nil {
		t.Fatalf("expected infrastructure error for missing name, got %+v", result)
	}
}
