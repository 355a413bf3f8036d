// internal/core/usecases/probe_tracker_test.go
package usecases

import (
	"testing"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestProbeTracker_CreateJob(t *testing.T) {
	tr := NewProbeTracker(time.Hour)

	id := tr.CreateJob(5)
	testutil.AssertTrue(t, id != "", "job id generated")

	job, ok := tr.Progress(id)
	testutil.AssertTrue(t, ok, "job registered")
	testutil.AssertEqual(t, job.Status, ProbeJobRunning, "initial status")
	testutil.AssertEqual(t, job.Total, 5, "total hosts")
	testutil.AssertEqual(t, job.Completed, 0, "nothing probed yet")
	testutil.AssertFalse(t, job.StartedAt.IsZero(), "start stamped")
	testutil.AssertNil(t, job.CompletedAt, "no completion stamp")
}

func TestProbeTracker_UpdateProgressAutoCompletes(t *testing.T) {
	tr := NewProbeTracker(time.Hour)
	id := tr.CreateJob(3)

	tr.UpdateProgress(id, 2)
	job, _ := tr.Progress(id)
	testutil.AssertEqual(t, job.Completed, 2, "partial progress")
	testutil.AssertEqual(t, job.Status, ProbeJobRunning, "still running")

	tr.UpdateProgress(id, 3)
	job, _ = tr.Progress(id)
	testutil.AssertEqual(t, job.Status, ProbeJobCompleted, "completed at total")
	testutil.AssertNotNil(t, job.CompletedAt, "completion stamped")
}

func TestProbeTracker_IncrementProgress(t *testing.T) {
	tr := NewProbeTracker(time.Hour)
	id := tr.CreateJob(2)

	tr.IncrementProgress(id)
	job, _ := tr.Progress(id)
	testutil.AssertEqual(t, job.Completed, 1, "one probe done")
	testutil.AssertEqual(t, job.Status, ProbeJobRunning, "still running")

	tr.IncrementProgress(id)
	job, _ = tr.Progress(id)
	testutil.AssertEqual(t, job.Completed, 2, "both probes done")
	testutil.AssertEqual(t, job.Status, ProbeJobCompleted, "completed at total")
}

func TestProbeTracker_UnknownJobIsIgnored(t *testing.T) {
	tr := NewProbeTracker(time.Hour)

	tr.UpdateProgress("no-such-job", 3)
	tr.IncrementProgress("no-such-job")
	tr.CompleteJob("no-such-job")
	tr.FailJob("no-such-job")

	_, ok := tr.Progress("no-such-job")
	testutil.AssertFalse(t, ok, "unknown job stays unknown")
	testutil.AssertFalse(t, tr.DeleteJob("no-such-job"), "nothing to delete")
}

func TestProbeTracker_TerminalStatusSticks(t *testing.T) {
	tr := NewProbeTracker(time.Hour)
	id := tr.CreateJob(4)

	tr.FailJob(id)
	job, _ := tr.Progress(id)
	testutil.AssertEqual(t, job.Status, ProbeJobFailed, "failed")
	testutil.AssertTrue(t, job.Terminal(), "failed is terminal")

	tr.CompleteJob(id)
	job, _ = tr.Progress(id)
	testutil.AssertEqual(t, job.Status, ProbeJobFailed, "terminal status preserved")
}

func TestProbeTracker_DeleteJob(t *testing.T) {
	tr := NewProbeTracker(time.Hour)
	id := tr.CreateJob(1)

	testutil.AssertTrue(t, tr.DeleteJob(id), "existing job deleted")

	_, ok := tr.Progress(id)
	testutil.AssertFalse(t, ok, "job gone after delete")
	testutil.AssertFalse(t, tr.DeleteJob(id), "second delete is a no-op")
}

func TestProbeTracker_CleanupOldJobs(t *testing.T) {
	tr := NewProbeTracker(time.Hour)

	stale := tr.CreateJob(1)
	tr.CompleteJob(stale)
	fresh := tr.CreateJob(1)
	tr.CompleteJob(fresh)
	running := tr.CreateJob(1)

	// Envejece el cierre del primero más allá del umbral de limpieza.
	old := time.Now().UTC().Add(-2 * time.Hour)
	tr.jobs[stale].CompletedAt = &old

	removed := tr.CleanupOldJobs(time.Hour)
	testutil.AssertEqual(t, removed, 1, "only the stale terminal job removed")

	_, ok := tr.Progress(stale)
	testutil.AssertFalse(t, ok, "stale job gone")
	_, ok = tr.Progress(fresh)
	testutil.AssertTrue(t, ok, "recent terminal job kept")
	_, ok = tr.Progress(running)
	testutil.AssertTrue(t, ok, "running job untouched")
}

func TestProbeTracker_CleanupIgnoresRunningJobs(t *testing.T) {
	tr := NewProbeTracker(time.Hour)
	id := tr.CreateJob(3)

	removed := tr.CleanupOldJobs(0)
	testutil.AssertEqual(t, removed, 0, "running jobs never reclaimed")

	_, ok := tr.Progress(id)
	testutil.AssertTrue(t, ok, "running job survives aggressive cleanup")
}

func TestProbeTracker_JobsNewestFirst(t *testing.T) {
	tr := NewProbeTracker(time.Hour)

	first := tr.CreateJob(1)
	second := tr.CreateJob(2)

	// StartedAt tiene resolución de reloj; fuerza un orden visible.
	tr.jobs[first].StartedAt = tr.jobs[first].StartedAt.Add(-time.Minute)

	jobs := tr.Jobs()
	testutil.AssertLen(t, jobs, 2, "both jobs listed")
	testutil.AssertEqual(t, jobs[0].ID, second, "newest first")
	testutil.AssertEqual(t, jobs[1].ID, first, "oldest last")
}
