// internal/platform/workerpool/worker_pool.go
package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
)

// Task representa una tarea a ejecutar en el worker pool.
type Task interface {
	// Execute ejecuta la tarea
	Execute(ctx context.Context) error

	// Priority retorna la prioridad de la tarea (mayor = más prioritario)
	Priority() int

	// Name retorna el nombre de la tarea
	Name() string
}

// Scheduler define la estrategia de scheduling.
type Scheduler interface {
	// Schedule ordena las tareas según la estrategia
	Schedule(tasks []Task) []Task

	// Name retorna el nombre del scheduler
	Name() string
}

// envelope empareja una tarea con el canal de resultados de su Submit.
// Cada Submit recolecta únicamente sus propios resultados, de modo que
// lotes de sondeo y sondeos sueltos pueden convivir en el mismo pool.
type envelope struct {
	task     Task
	resultCh chan TaskResult
}

// WorkerPool gestiona la ejecución concurrente de tareas con scheduling.
type WorkerPool struct {
	workers   int
	scheduler Scheduler
	logger    logx.Logger

	taskQueue chan envelope

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// TaskResult representa el resultado de una tarea.
type TaskResult struct {
	Task     Task
	Error    error
	Duration time.Duration
}

// WorkerPoolConfig configura el worker pool.
type WorkerPoolConfig struct {
	Workers   int
	Scheduler Scheduler
	Logger    logx.Logger
}

// NewWorkerPool crea un nuevo worker pool.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewFIFOScheduler()
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers:   cfg.Workers,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger.With("component", "worker-pool"),
		taskQueue: make(chan envelope, cfg.Workers*2),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start inicia el worker pool.
func (wp *WorkerPool) Start() {
	wp.logger.Debug("starting worker pool", "workers", wp.workers, "scheduler", wp.scheduler.Name())

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker es el goroutine que procesa tareas.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug("worker stopped", "worker_id", id)
			return

		case env := <-wp.taskQueue:
			wp.executeTask(id, env)
		}
	}
}

// executeTask ejecuta una tarea individual.
func (wp *WorkerPool) executeTask(workerID int, env envelope) {
	start := time.Now()
	task := env.task

	wp.logger.Debug("executing task",
		"worker_id", workerID,
		"task", task.Name(),
		"priority", task.Priority(),
	)

	err := task.Execute(wp.ctx)
	duration := time.Since(start)

	wp.logger.Debug("task completed",
		"worker_id", workerID,
		"task", task.Name(),
		"duration_ms", duration.Milliseconds(),
		"error", err != nil,
	)

	// resultCh tiene buffer para el Submit completo, nunca bloquea
	env.resultCh <- TaskResult{
		Task:     task,
		Error:    err,
		Duration: duration,
	}
}

// Submit envía tareas al pool y bloquea hasta recolectar todos sus
// resultados. Varios Submit pueden estar en vuelo a la vez.
func (wp *WorkerPool) Submit(tasks []Task) []TaskResult {
	if len(tasks) == 0 {
		return []TaskResult{}
	}

	scheduled := wp.scheduler.Schedule(tasks)
	resultCh := make(chan TaskResult, len(scheduled))

	wp.logger.Debug("submitting tasks",
		"total", len(scheduled),
		"scheduler", wp.scheduler.Name(),
	)

	go func() {
		for _, task := range scheduled {
			select {
			case wp.taskQueue <- envelope{task: task, resultCh: resultCh}:
			case <-wp.ctx.Done():
				return
			}
		}
	}()

	results := make([]TaskResult, 0, len(tasks))
	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-resultCh:
			results = append(results, result)
		case <-wp.ctx.Done():
			wp.logger.Warn("pool stopped while waiting for results",
				"collected", len(results),
				"expected", len(tasks),
			)
			return results
		}
	}

	return results
}

// Stop detiene el worker pool y espera a los workers.
func (wp *WorkerPool) Stop() {
	wp.logger.Debug("stopping worker pool")

	wp.cancel()
	wp.wg.Wait()

	wp.logger.Debug("worker pool stopped")
}

// Stats retorna estadísticas del worker pool.
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:       wp.workers,
		SchedulerName: wp.scheduler.Name(),
		QueueSize:     len(wp.taskQueue),
	}
}

// WorkerPoolStats contiene estadísticas del worker pool.
type WorkerPoolStats struct {
	Workers       int
	SchedulerName string
	QueueSize     int
}
