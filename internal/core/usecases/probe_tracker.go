// internal/core/usecases/probe_tracker.go
package usecases

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Estados de un trabajo de sondeo.
const (
	ProbeJobRunning   = "running"
	ProbeJobCompleted = "completed"
	ProbeJobFailed    = "failed"
)

// ProbeJob es el estado observable de un lote de sondas.
type ProbeJob struct {
	ID          string
	Total       int
	Completed   int
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Terminal reporta si el trabajo ya no avanzará más.
func (j ProbeJob) Terminal() bool {
	return j.Status == ProbeJobCompleted || j.Status == ProbeJobFailed
}

// ProbeTracker lleva en memoria el progreso de los lotes de sondeo. Los
// trabajos son efímeros: un reinicio del proceso los pierde, igual que el
// feed de terminal.
type ProbeTracker struct {
	mu   sync.Mutex
	jobs map[string]*ProbeJob
	ttl  time.Duration
}

// NewProbeTracker crea un tracker. ttl marca cuándo un trabajo terminal
// pasa a ser recolectable (0 usa una hora).
func NewProbeTracker(ttl time.Duration) *ProbeTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProbeTracker{
		jobs: make(map[string]*ProbeJob),
		ttl:  ttl,
	}
}

// CreateJob registra un trabajo nuevo y retorna su id. De paso recolecta
// los trabajos terminales que ya superaron el ttl.
func (t *ProbeTracker) CreateJob(total int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanupLocked(t.ttl)

	id := uuid.NewString()
	t.jobs[id] = &ProbeJob{
		ID:        id,
		Total:     total,
		Status:    ProbeJobRunning,
		StartedAt: time.Now().UTC(),
	}
	return id
}

// UpdateProgress fija el número de sondas completadas. Alcanzar el total
// completa el trabajo automáticamente.
func (t *ProbeTracker) UpdateProgress(id string, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Completed = completed
	if job.Status == ProbeJobRunning && job.Completed >= job.Total {
		t.finishLocked(job, ProbeJobCompleted)
	}
}

// IncrementProgress suma una sonda completada.
func (t *ProbeTracker) IncrementProgress(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.Completed++
	if job.Status == ProbeJobRunning && job.Completed >= job.Total {
		t.finishLocked(job, ProbeJobCompleted)
	}
}

// Progress retorna una copia del trabajo.
func (t *ProbeTracker) Progress(id string) (ProbeJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return ProbeJob{}, false
	}
	return *job, true
}

// Jobs retorna una copia de todos los trabajos, los más recientes primero.
func (t *ProbeTracker) Jobs() []ProbeJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ProbeJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// CompleteJob marca el trabajo como completado si seguía en marcha.
func (t *ProbeTracker) CompleteJob(id string) {
	t.finish(id, ProbeJobCompleted)
}

// FailJob marca el trabajo como fallido si seguía en marcha.
func (t *ProbeTracker) FailJob(id string) {
	t.finish(id, ProbeJobFailed)
}

// DeleteJob elimina un trabajo y reporta si existía.
func (t *ProbeTracker) DeleteJob(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.jobs[id]
	delete(t.jobs, id)
	return ok
}

// CleanupOldJobs elimina los trabajos terminales cuyo cierre es más viejo
// que maxAge y retorna cuántos quitó. Los trabajos en marcha no se tocan.
func (t *ProbeTracker) CleanupOldJobs(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked(maxAge)
}

func (t *ProbeTracker) cleanupLocked(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for id, job := range t.jobs {
		if !job.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}

func (t *ProbeTracker) finish(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Terminal() {
		return
	}
	t.finishLocked(job, status)
}

func (t *ProbeTracker) finishLocked(job *ProbeJob, status string) {
	job.Status = status
	now := time.Now().UTC()
	job.CompletedAt = &now
}
