// internal/core/usecases/probe_service.go
package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/workerpool"
)

// ProbeService sondea la liveness de subdominios sobre un pool acotado de
// workers, desacoplado de la ejecución de escaneos. Cubre tres entradas:
// sondas sueltas disparadas por descubrimientos nuevos (ProbeAsync), lotes
// síncronos (ProbeHosts) y trabajos en segundo plano con seguimiento
// (ProbeScan/ProbeAll + Tracker).
type ProbeService struct {
	store   ports.SubdomainStore
	prober  ports.Prober
	pool    *workerpool.WorkerPool
	tracker *ProbeTracker
	logger  logx.Logger
}

// ProbeServiceOptions configura el servicio de sondeo.
type ProbeServiceOptions struct {
	Store  ports.SubdomainStore
	Prober ports.Prober

	// Workers fija el ancho del pool (<=0 usa 10).
	Workers int

	// JobTTL marca cuándo un trabajo terminal pasa a ser recolectable.
	JobTTL time.Duration

	Logger logx.Logger
}

// NewProbeService crea el servicio. Hay que llamar a Start antes de usarlo
// y a Stop al apagar.
func NewProbeService(opts ProbeServiceOptions) *ProbeService {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}

	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
		Workers:   opts.Workers,
		Scheduler: workerpool.NewFIFOScheduler(),
		Logger:    opts.Logger,
	})

	return &ProbeService{
		store:   opts.Store,
		prober:  opts.Prober,
		pool:    pool,
		tracker: NewProbeTracker(opts.JobTTL),
		logger:  opts.Logger.With("component", "probes"),
	}
}

// Start arranca los workers del pool.
func (p *ProbeService) Start() {
	p.pool.Start()
}

// Stop detiene el pool. Las sondas encoladas y no atendidas se descartan.
func (p *ProbeService) Stop() {
	p.pool.Stop()
}

// Tracker expone el seguimiento de trabajos para la capa HTTP.
func (p *ProbeService) Tracker() *ProbeTracker {
	return p.tracker
}

// ProbeAsync implementa ports.ProbeNotifier: encola una sonda suelta sin
// bloquear al que descubre. Con el pool compartido una sonda fresca puede
// esperar detrás de un lote en curso, pero la espera queda acotada por el
// ancho del pool en vez de crecer con el ritmo de descubrimiento.
func (p *ProbeService) ProbeAsync(hostname string) {
	if hostname == "" {
		return
	}
	task := &probeTask{svc: p, hostname: hostname}
	go p.pool.Submit([]workerpool.Task{task})
}

// ProbeHosts sondea un conjunto de hostnames sobre el pool y bloquea hasta
// terminar. onProgress, si no es nil, se invoca serializado tras cada
// sonda con (completadas, total); el orden de atención no está
// garantizado. Se cancela deteniendo el pool.
func (p *ProbeService) ProbeHosts(hosts []string, onProgress ports.ProbeProgress) []domain.ProbeResult {
	if len(hosts) == 0 {
		return nil
	}

	total := len(hosts)
	var mu sync.Mutex
	completed := 0
	tick := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	tasks := make([]workerpool.Task, len(hosts))
	for i, h := range hosts {
		tasks[i] = &probeTask{svc: p, hostname: h, done: tick}
	}

	results := p.pool.Submit(tasks)

	out := make([]domain.ProbeResult, 0, len(results))
	for _, r := range results {
		if task, ok := r.Task.(*probeTask); ok {
			out = append(out, task.result)
		}
	}
	return out
}

// ProbeScan lanza en segundo plano el sondeo de todos los subdominios
// enlazados a un escaneo y retorna el id de trabajo para seguirlo.
func (p *ProbeService) ProbeScan(ctx context.Context, scanID uint) (string, error) {
	hosts, err := p.store.ScanHostnames(ctx, scanID)
	if err != nil {
		return "", errors.Wrapf(err, "listing hostnames for scan %d", scanID)
	}
	return p.launchJob(hosts), nil
}

// ProbeBatch lanza en segundo plano el sondeo de un lote arbitrario de
// hostnames y retorna el id de trabajo para seguirlo.
func (p *ProbeService) ProbeBatch(hosts []string) string {
	return p.launchJob(hosts)
}

// ProbeAll lanza en segundo plano el sondeo de todos los subdominios
// almacenados y retorna el id de trabajo.
func (p *ProbeService) ProbeAll(ctx context.Context) (string, error) {
	hosts, err := p.store.AllHostnames(ctx)
	if err != nil {
		return "", errors.Wrap(err, "listing hostnames")
	}
	return p.launchJob(hosts), nil
}

func (p *ProbeService) launchJob(hosts []string) string {
	id := p.tracker.CreateJob(len(hosts))
	go p.runJob(id, hosts)
	return id
}

func (p *ProbeService) runJob(id string, hosts []string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("probe job panic", "job_id", id, "panic", fmt.Sprint(r))
			p.tracker.FailJob(id)
		}
	}()

	p.logger.Info("probe job started", "job_id", id, "hosts", len(hosts))
	p.ProbeHosts(hosts, func(done, total int) {
		p.tracker.UpdateProgress(id, done)
	})
	p.tracker.CompleteJob(id)
	p.logger.Info("probe job finished", "job_id", id)
}

// probeTask adapta una sonda de liveness a workerpool.Task: sondea el
// hostname y persiste el resultado sobre la fila del subdominio.
type probeTask struct {
	svc      *ProbeService
	hostname string
	done     func()

	result domain.ProbeResult
}

// Execute corre la sonda. Un fallo al persistir cuenta igualmente como
// sonda completada para el progreso del lote.
func (t *probeTask) Execute(ctx context.Context) error {
	defer func() {
		if t.done != nil {
			t.done()
		}
	}()

	t.result = t.svc.prober.Probe(ctx, t.hostname)
	if err := t.svc.store.RecordProbe(ctx, t.result); err != nil {
		t.svc.logger.Warn("recording probe result", "hostname", t.hostname, "error", err.Error())
		return err
	}
	return nil
}

func (t *probeTask) Priority() int { return 0 }

func (t *probeTask) Name() string { return "probe:" + t.hostname }
