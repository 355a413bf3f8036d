// internal/adapters/store/scans_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(testutil.OpenSQLite(t), testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestCreateScan_AssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scan := domain.NewScan("example.com")
	testutil.AssertNoError(t, s.CreateScan(ctx, scan), "create scan")
	testutil.AssertTrue(t, scan.ID > 0, "id assigned")
	testutil.AssertFalse(t, scan.CreatedAt.IsZero(), "created_at stamped")

	got, err := s.Scan(ctx, scan.ID)
	testutil.AssertNoError(t, err, "fetch scan")
	testutil.AssertEqual(t, got.Domain, "example.com", "domain persisted")
	testutil.AssertEqual(t, got.Status, domain.ScanStatusPending, "starts pending")
	testutil.AssertNotNil(t, got.CompletedTools, "completed tools decoded")
	testutil.AssertLen(t, got.CompletedTools, 0, "no tools completed yet")
	testutil.AssertNil(t, got.CurrentTool, "no current tool")
	testutil.AssertTrue(t, got.StartedAt.IsZero(), "not started")
}

func TestScan_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Scan(context.Background(), 999)
	testutil.AssertError(t, err, "missing scan errors")
	testutil.AssertTrue(t, errors.Is(err, errors.ErrNotFound), "maps to ErrNotFound")
}

func TestUpdateScan_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scan := domain.NewScan("example.com")
	testutil.AssertNoError(t, s.CreateScan(ctx, scan), "create scan")

	tool := "subfinder"
	scan.Status = domain.ScanStatusRunning
	scan.CurrentTool = &tool
	scan.StartedAt = time.Now().UTC()
	scan.TotalTools = 4
	scan.MarkToolDone("crtsh")
	testutil.AssertNoError(t, s.UpdateScan(ctx, scan), "first update")

	got, err := s.Scan(ctx, scan.ID)
	testutil.AssertNoError(t, err, "fetch after update")
	testutil.AssertEqual(t, got.Status, domain.ScanStatusRunning, "status updated")
	testutil.AssertNotNil(t, got.CurrentTool, "current tool set")
	testutil.AssertEqual(t, *got.CurrentTool, "subfinder", "current tool value")
	testutil.AssertFalse(t, got.StartedAt.IsZero(), "started_at persisted")
	testutil.AssertEqual(t, got.TotalTools, 4, "total tools persisted")
	testutil.AssertLen(t, got.CompletedTools, 1, "completed tools persisted")

	// El pase a terminal debe escribir NULL en current_tool, no ignorarlo.
	done := time.Now().UTC()
	scan.Status = domain.ScanStatusCompleted
	scan.CurrentTool = nil
	scan.CompletedAt = &done
	scan.SubdomainCount = 42
	testutil.AssertNoError(t, s.UpdateScan(ctx, scan), "terminal update")

	got, err = s.Scan(ctx, scan.ID)
	testutil.AssertNoError(t, err, "fetch terminal")
	testutil.AssertNil(t, got.CurrentTool, "current tool cleared")
	testutil.AssertNotNil(t, got.CompletedAt, "completed_at stamped")
	testutil.AssertEqual(t, got.SubdomainCount, 42, "count persisted")
}

func TestUpdateScan_Missing(t *testing.T) {
	s := newTestStore(t)

	scan := domain.NewScan("example.com")
	scan.ID = 777
	err := s.UpdateScan(context.Background(), scan)
	testutil.AssertTrue(t, errors.Is(err, errors.ErrNotFound), "unknown scan is not found")
}

func TestScans_OrderAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"a.com", "b.com", "c.com"} {
		testutil.AssertNoError(t, s.CreateScan(ctx, domain.NewScan(d)), "create "+d)
	}

	page, err := s.Scans(ctx, 2, 0)
	testutil.AssertNoError(t, err, "first page")
	testutil.AssertLen(t, page, 2, "limit honored")
	testutil.AssertEqual(t, page[0].Domain, "c.com", "most recent first")
	testutil.AssertEqual(t, page[1].Domain, "b.com", "descending order")

	rest, err := s.Scans(ctx, 2, 2)
	testutil.AssertNoError(t, err, "second page")
	testutil.AssertLen(t, rest, 1, "offset honored")
	testutil.AssertEqual(t, rest[0].Domain, "a.com", "oldest last")
}

func TestCountScanSubdomains(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scan := domain.NewScan("example.com")
	testutil.AssertNoError(t, s.CreateScan(ctx, scan), "create scan")

	count, err := s.CountScanSubdomains(ctx, scan.ID)
	testutil.AssertNoError(t, err, "count empty")
	testutil.AssertEqual(t, count, int64(0), "no links yet")

	for _, h := range []string{"www.example.com", "api.example.com", "www.example.com"} {
		_, err := s.SaveDiscovery(ctx, scan.ID, domain.Discovery{
			Hostname: h, TargetDomain: "example.com", Source: "test",
		})
		testutil.AssertNoError(t, err, "save "+h)
	}

	count, err = s.CountScanSubdomains(ctx, scan.ID)
	testutil.AssertNoError(t, err, "count links")
	testutil.AssertEqual(t, count, int64(2), "duplicates collapse to one link")
}

func TestDeleteScan_RemovesLinksAndOrphans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := domain.NewScan("example.com")
	testutil.AssertNoError(t, s.CreateScan(ctx, first), "create first scan")
	second := domain.NewScan("example.com")
	testutil.AssertNoError(t, s.CreateScan(ctx, second), "create second scan")

	// shared vive en ambos escaneos; only en el primero.
	for _, h := range []string{"shared.example.com", "only.example.com"} {
		_, err := s.SaveDiscovery(ctx, first.ID, domain.Discovery{
			Hostname: h, TargetDomain: "example.com", Source: "test",
		})
		testutil.AssertNoError(t, err, "seed "+h)
	}
	_, err := s.SaveDiscovery(ctx, second.ID, domain.Discovery{
		Hostname: "shared.example.com", TargetDomain: "example.com", Source: "test",
	})
	testutil.AssertNoError(t, err, "seed shared on second")

	testutil.AssertNoError(t, s.DeleteScan(ctx, first.ID), "delete scan")

	_, err = s.Scan(ctx, first.ID)
	testutil.AssertTrue(t, errors.IsNotFound(err), "scan row gone")

	_, err = s.SubdomainByHostname(ctx, "only.example.com")
	testutil.AssertTrue(t, errors.IsNotFound(err), "orphaned subdomain reclaimed")

	sub, err := s.SubdomainByHostname(ctx, "shared.example.com")
	testutil.AssertNoError(t, err, "shared subdomain survives")
	testutil.AssertEqual(t, sub.Hostname, "shared.example.com", "still linked elsewhere")

	count, err := s.CountScanSubdomains(ctx, second.ID)
	testutil.AssertNoError(t, err, "count second scan")
	testutil.AssertEqual(t, count, int64(1), "second scan untouched")
}

func TestDeleteScan_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteScan(context.Background(), 4242)
	testutil.AssertError(t, err, "missing scan rejected")
	testutil.AssertTrue(t, errors.IsNotFound(err), "not found error")
}
