// internal/server/scans_test.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestCreateScan_RequiresTarget(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(t, http.MethodPost, "/api/scans", map[string]string{})
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "empty body status")
	testutil.AssertEqual(t, "Target domain is required", errorMessage(t, w), "empty body error")

	w = env.do(t, http.MethodPost, "/api/scans", map[string]string{"target_domain": "   "})
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "blank target status")
	testutil.AssertEqual(t, "Target domain is required", errorMessage(t, w), "blank target error")
}

func TestCreateScan_RejectsInvalidDomain(t *testing.T) {
	env := newServerEnv(t)

	for _, target := range []string{"localhost", "no spaces allowed.com", "bad!chars.com"} {
		w := env.do(t, http.MethodPost, "/api/scans", map[string]string{"target_domain": target})
		testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "status for "+target)
		testutil.AssertEqual(t, "Invalid domain format", errorMessage(t, w), "error for "+target)
	}
}

func TestCreateScan_RequiresEnabledTools(t *testing.T) {
	env := newServerEnv(t)
	env.seedCLITool(t, "alpha", false)

	w := env.do(t, http.MethodPost, "/api/scans", map[string]string{"target_domain": "example.com"})

	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "status code")
	testutil.AssertEqual(t,
		"No enumeration tools are enabled. Please enable at least one tool in Settings.",
		errorMessage(t, w), "error message")
}

func TestCreateScan_LaunchesAndCompletes(t *testing.T) {
	env := newServerEnv(t)
	env.seedCLITool(t, "alpha", true)
	env.registerNoopExecutor(t, domain.ToolKindCLI)

	w := env.do(t, http.MethodPost, "/api/scans", map[string]string{"target_domain": " Example.COM "})
	testutil.AssertEqual(t, http.StatusCreated, w.Code, "status code")

	var created scanJSON
	decodeBody(t, w, &created)
	testutil.AssertTrue(t, created.ID > 0, "scan id assigned")
	testutil.AssertEqual(t, "example.com", created.TargetDomain, "normalized target")
	testutil.AssertEqual(t, "pending", created.Status, "initial status")
	testutil.AssertEqual(t, 0, created.CompletedTools, "no tools completed yet")
	testutil.AssertFalse(t, created.CreatedAt.IsZero(), "created_at stamped")

	path := fmt.Sprintf("/api/scans/%d", created.ID)
	testutil.Eventually(t, 3000, func() bool {
		var got scanJSON
		decodeBody(t, env.do(t, http.MethodGet, path, nil), &got)
		return got.Status == "completed"
	}, "scan should complete in background")

	var final scanJSON
	decodeBody(t, env.do(t, http.MethodGet, path, nil), &final)
	testutil.AssertEqual(t, 1, final.TotalTools, "total tools")
	testutil.AssertEqual(t, 1, final.CompletedTools, "completed tools")
	testutil.AssertNotNil(t, final.CompletedAt, "completed_at stamped")

	feed := env.output.All(created.ID)
	testutil.AssertTrue(t, len(feed) > 0, "terminal feed populated")
	testutil.AssertContains(t, feed[0].Text, "Starting scan", "feed opening line")
}

func TestGetScan_Errors(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(t, http.MethodGet, "/api/scans/4242", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown scan status")
	testutil.AssertEqual(t, "Scan not found", errorMessage(t, w), "unknown scan error")

	w = env.do(t, http.MethodGet, "/api/scans/abc", nil)
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "bad id status")
	testutil.AssertEqual(t, "Invalid id", errorMessage(t, w), "bad id error")
}

func TestListScans_NewestFirst(t *testing.T) {
	env := newServerEnv(t)
	first := env.newScan(t, "one.example.com")
	second := env.newScan(t, "two.example.com")

	var body struct {
		Scans []scanJSON `json:"scans"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/scans", nil), &body)

	testutil.AssertLen(t, body.Scans, 2, "scan count")
	testutil.AssertEqual(t, second.ID, body.Scans[0].ID, "newest first")
	testutil.AssertEqual(t, first.ID, body.Scans[1].ID, "oldest last")

	decodeBody(t, env.do(t, http.MethodGet, "/api/scans?limit=1", nil), &body)
	testutil.AssertLen(t, body.Scans, 1, "limited scan count")
	testutil.AssertEqual(t, second.ID, body.Scans[0].ID, "limit keeps newest")
}

func TestStopScan_UnknownAndNotRunning(t *testing.T) {
	env := newServerEnv(t)

	w := env.do(t, http.MethodPost, "/api/scans/4242/stop", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown scan status")
	testutil.AssertEqual(t, "Scan not found", errorMessage(t, w), "unknown scan error")

	scan := env.newScan(t, "done.example.com")
	scan.Status = domain.ScanStatusCompleted
	testutil.AssertNoError(t, env.store.UpdateScan(context.Background(), scan), "mark completed")

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/scans/%d/stop", scan.ID), nil)
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "not running status")
	testutil.AssertEqual(t, "Scan is not running (current status: completed)", errorMessage(t, w), "not running error")
}

func TestStopScan_MarksStoppedImmediately(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "target.example.com")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/scans/%d/stop", scan.ID), nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "status code")

	var body struct {
		Message string   `json:"message"`
		Scan    scanJSON `json:"scan"`
	}
	decodeBody(t, w, &body)
	testutil.AssertEqual(t, "Scan stop requested", body.Message, "message")
	testutil.AssertEqual(t, "stopped", body.Scan.Status, "reported status")
	testutil.AssertNil(t, body.Scan.CurrentTool, "current tool cleared")
	testutil.AssertNotNil(t, body.Scan.CompletedAt, "completed_at stamped")

	testutil.AssertTrue(t, env.ctl.StopRequested(scan.ID), "stop flag raised")

	stored, err := env.store.Scan(context.Background(), scan.ID)
	testutil.AssertNoError(t, err, "reload scan")
	testutil.AssertEqual(t, domain.ScanStatusStopped, stored.Status, "persisted status")

	feed := env.output.All(scan.ID)
	testutil.AssertLen(t, feed, 1, "feed line count")
	testutil.AssertContains(t, feed[0].Text, "Stop request received", "feed line")
}

func TestDeleteScan_CleansOwnState(t *testing.T) {
	env := newServerEnv(t)
	first := env.newScan(t, "example.com")
	second := env.newScan(t, "example.org")

	env.seedDiscovery(t, first.ID, "example.com", "shared.example.com")
	env.seedDiscovery(t, second.ID, "example.com", "shared.example.com")
	env.seedDiscovery(t, first.ID, "example.com", "only.example.com")

	env.output.Append(first.ID, "some output", termlog.KindStdout)
	env.ctl.RequestStop(first.ID)

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/scans/%d", first.ID), nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "status code")

	var body struct {
		Message string `json:"message"`
	}
	decodeBody(t, w, &body)
	testutil.AssertEqual(t, "Scan deleted successfully", body.Message, "message")

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/scans/%d", first.ID), nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "scan gone")

	testutil.AssertLen(t, env.output.All(first.ID), 0, "feed dropped")
	testutil.AssertFalse(t, env.ctl.StopRequested(first.ID), "stop flag cleared")

	// El subdominio compartido sobrevive; el exclusivo se recolecta.
	var list struct {
		Subdomains []subdomainJSON `json:"subdomains"`
		Total      int64           `json:"total"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains", nil), &list)
	testutil.AssertEqual(t, int64(1), list.Total, "surviving subdomain count")
	testutil.AssertEqual(t, "shared.example.com", list.Subdomains[0].Hostname, "surviving subdomain")

	w = env.do(t, http.MethodDelete, "/api/scans/4242", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown scan status")
	testutil.AssertEqual(t, "Scan not found", errorMessage(t, w), "unknown scan error")
}

func TestScanTerminal_SinceCursor(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")

	env.output.Append(scan.ID, "line one", termlog.KindStdout)
	env.output.Append(scan.ID, "line two", termlog.KindStderr)
	env.output.Append(scan.ID, "line three", termlog.KindStdout)

	path := fmt.Sprintf("/api/scans/%d/terminal", scan.ID)

	var body struct {
		Lines  []lineJSON `json:"lines"`
		Status string     `json:"status"`
	}
	decodeBody(t, env.do(t, http.MethodGet, path, nil), &body)
	testutil.AssertLen(t, body.Lines, 3, "full feed length")
	testutil.AssertEqual(t, "pending", body.Status, "scan status")
	testutil.AssertEqual(t, termlog.KindStdout, body.Lines[0].Kind, "stdout kind")
	testutil.AssertEqual(t, termlog.KindStderr, body.Lines[1].Kind, "stderr kind")

	cursor := body.Lines[1].Timestamp.Format(time.RFC3339Nano)
	decodeBody(t, env.do(t, http.MethodGet, path+"?since="+cursor, nil), &body)
	testutil.AssertLen(t, body.Lines, 1, "lines after cursor")
	testutil.AssertEqual(t, "line three", body.Lines[0].Text, "tail line")

	w := env.do(t, http.MethodGet, path+"?since=yesterday", nil)
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "bad cursor status")
	testutil.AssertEqual(t, "Invalid since timestamp", errorMessage(t, w), "bad cursor error")

	w = env.do(t, http.MethodGet, "/api/scans/4242/terminal", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown scan status")
}

func TestScanSubdomains_ListsLinkedOnly(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")
	other := env.newScan(t, "example.org")

	env.seedDiscovery(t, scan.ID, "example.com", "beta.example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "alpha.example.com")
	env.seedDiscovery(t, other.ID, "example.org", "gamma.example.org")

	path := fmt.Sprintf("/api/scans/%d/subdomains", scan.ID)

	var subs []subdomainJSON
	decodeBody(t, env.do(t, http.MethodGet, path, nil), &subs)
	testutil.AssertLen(t, subs, 2, "linked subdomain count")
	testutil.AssertEqual(t, "alpha.example.com", subs[0].Hostname, "ordered by hostname")
	testutil.AssertEqual(t, "beta.example.com", subs[1].Hostname, "ordered by hostname")

	decodeBody(t, env.do(t, http.MethodGet, path+"?search=beta", nil), &subs)
	testutil.AssertLen(t, subs, 1, "filtered count")
	testutil.AssertTrue(t, strings.HasPrefix(subs[0].Hostname, "beta."), "filtered hostname")

	w := env.do(t, http.MethodGet, "/api/scans/4242/subdomains", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown scan status")
}
