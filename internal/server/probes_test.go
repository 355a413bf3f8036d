// internal/server/probes_test.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestProbeBatch_RunsJobToCompletion(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "a.example.com")

	w := env.do(t, http.MethodPost, "/api/probe", map[string]interface{}{
		"hostnames": []string{"a.example.com", "   ", ""},
	})
	testutil.AssertEqual(t, http.StatusAccepted, w.Code, "status code")

	var launched struct {
		JobID string `json:"job_id"`
		Total int    `json:"total"`
	}
	decodeBody(t, w, &launched)
	testutil.AssertNotEqual(t, "", launched.JobID, "job id assigned")
	testutil.AssertEqual(t, 1, launched.Total, "blank hostnames dropped")

	jobPath := "/api/probe-jobs/" + launched.JobID
	testutil.Eventually(t, 3000, func() bool {
		var job jobJSON
		decodeBody(t, env.do(t, http.MethodGet, jobPath, nil), &job)
		return job.Status == "completed" && job.Completed == 1
	}, "probe job should complete")

	var list struct {
		Subdomains []subdomainJSON `json:"subdomains"`
		Total      int64           `json:"total"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?search=a.example", nil), &list)
	testutil.AssertLen(t, list.Subdomains, 1, "probed subdomain listed")
	testutil.AssertEqual(t, "online_both", list.Subdomains[0].OnlineState, "persisted state")
	testutil.AssertNotNil(t, list.Subdomains[0].HTTPStatus, "persisted http status")
	testutil.AssertNotNil(t, list.Subdomains[0].LastProbedAt, "probe timestamp")
}

func TestProbeBatch_RejectsEmptyInput(t *testing.T) {
	env := newServerEnv(t)

	for name, body := range map[string]interface{}{
		"missing field": map[string]interface{}{},
		"empty array":   map[string]interface{}{"hostnames": []string{}},
		"only blanks":   map[string]interface{}{"hostnames": []string{"", "   "}},
	} {
		w := env.do(t, http.MethodPost, "/api/probe", body)
		testutil.AssertEqual(t, http.StatusBadRequest, w.Code, name+" status")
		testutil.AssertEqual(t, "hostnames array is required", errorMessage(t, w), name+" error")
	}
}

func TestProbeJobs_ListAndDelete(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "x.example.com")

	id := env.probes.ProbeBatch([]string{"x.example.com"})
	testutil.Eventually(t, 3000, func() bool {
		job, ok := env.probes.Tracker().Progress(id)
		return ok && job.Terminal()
	}, "job should finish")

	var body struct {
		Jobs []jobJSON `json:"jobs"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/probe-jobs", nil), &body)
	testutil.AssertLen(t, body.Jobs, 1, "job listed")
	testutil.AssertEqual(t, id, body.Jobs[0].ID, "job id")

	w := env.do(t, http.MethodDelete, "/api/probe-jobs/"+id, nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "delete status")

	w = env.do(t, http.MethodGet, "/api/probe-jobs/"+id, nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "job gone")
	testutil.AssertEqual(t, "Probe job not found", errorMessage(t, w), "job gone error")

	w = env.do(t, http.MethodDelete, "/api/probe-jobs/"+id, nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "double delete status")
}

func TestProbeSubdomain_SynchronousResult(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "b.example.com")

	sub, err := env.store.SubdomainByHostname(context.Background(), "b.example.com")
	testutil.AssertNoError(t, err, "load seeded subdomain")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/subdomains/%d/probe", sub.ID), nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "status code")

	var probed subdomainJSON
	decodeBody(t, w, &probed)
	testutil.AssertEqual(t, "online_both", probed.OnlineState, "state after probe")
	testutil.AssertNotNil(t, probed.HTTPStatus, "http status set")
	testutil.AssertEqual(t, "192.0.2.10", probed.ResolvedIP, "resolved ip")
	testutil.AssertNotNil(t, probed.LastProbedAt, "probe timestamp")

	w = env.do(t, http.MethodPost, "/api/subdomains/4242/probe", nil)
	testutil.AssertEqual(t, http.StatusNotFound, w.Code, "unknown subdomain status")
	testutil.AssertEqual(t, "Subdomain not found", errorMessage(t, w), "unknown subdomain error")
}

func TestListSubdomains_FiltersAndCounts(t *testing.T) {
	env := newServerEnv(t)
	com := env.newScan(t, "example.com")
	org := env.newScan(t, "example.org")

	env.seedDiscovery(t, com.ID, "example.com", "a.example.com")
	env.seedDiscovery(t, com.ID, "example.com", "b.example.com")
	env.seedDiscovery(t, org.ID, "example.org", "c.example.org")

	var list struct {
		Subdomains []subdomainJSON `json:"subdomains"`
		Total      int64           `json:"total"`
	}

	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains", nil), &list)
	testutil.AssertEqual(t, int64(3), list.Total, "unfiltered total")

	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?target=example.com", nil), &list)
	testutil.AssertEqual(t, int64(2), list.Total, "target filter total")
	for _, sub := range list.Subdomains {
		testutil.AssertTrue(t, strings.HasSuffix(sub.Hostname, ".example.com"), "target filter hostname")
	}

	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?search=c.example", nil), &list)
	testutil.AssertEqual(t, int64(1), list.Total, "search filter total")

	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?state=unknown", nil), &list)
	testutil.AssertEqual(t, int64(3), list.Total, "state filter total")

	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?alive=true", nil), &list)
	testutil.AssertEqual(t, int64(0), list.Total, "alive filter total")

	// El límite recorta la página pero no el total.
	decodeBody(t, env.do(t, http.MethodGet, "/api/subdomains?limit=1", nil), &list)
	testutil.AssertLen(t, list.Subdomains, 1, "limited page size")
	testutil.AssertEqual(t, int64(3), list.Total, "total ignores limit")

	w := env.do(t, http.MethodGet, "/api/subdomains?state=bogus", nil)
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "invalid state status")
	testutil.AssertEqual(t, "Invalid online state filter", errorMessage(t, w), "invalid state error")
}

func TestExportSubdomains_Formats(t *testing.T) {
	env := newServerEnv(t)
	scan := env.newScan(t, "example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "b.example.com")
	env.seedDiscovery(t, scan.ID, "example.com", "a.example.com")

	w := env.do(t, http.MethodGet, "/api/export/subdomains", nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "txt status")
	testutil.AssertEqual(t, "a.example.com\nb.example.com\n", w.Body.String(), "txt body")
	testutil.AssertEqual(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"), "txt content type")
	testutil.AssertEqual(t, "attachment; filename=subdomains.txt", w.Header().Get("Content-Disposition"), "txt disposition")

	w = env.do(t, http.MethodGet, "/api/export/subdomains?format=json", nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "json status")
	var records []struct {
		Hostname string `json:"hostname"`
	}
	decodeBody(t, w, &records)
	testutil.AssertLen(t, records, 2, "json record count")
	testutil.AssertEqual(t, "a.example.com", records[0].Hostname, "json first record")

	w = env.do(t, http.MethodGet, "/api/export/subdomains?format=csv", nil)
	testutil.AssertEqual(t, http.StatusOK, w.Code, "csv status")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	testutil.AssertLen(t, lines, 3, "csv line count")
	testutil.AssertEqual(t,
		"hostname,target_domain,uri,online_state,http_status,resolved_ip,cname,last_probed_at,first_seen_at,last_seen_at",
		lines[0], "csv header")

	w = env.do(t, http.MethodGet, "/api/export/subdomains?format=zip", nil)
	testutil.AssertEqual(t, http.StatusBadRequest, w.Code, "unknown format status")

	w = env.do(t, http.MethodGet, "/api/export/subdomains?target=example.org", nil)
	testutil.AssertEqual(t, "", w.Body.String(), "filtered export empty")
}
