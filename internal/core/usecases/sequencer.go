// internal/core/usecases/sequencer.go
package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/control"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/registry"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
)

// SequencerStore es lo que el secuenciador necesita de la persistencia.
type SequencerStore interface {
	ports.ScanStore
	ports.ToolStore
	ports.SubdomainStore
	ports.SettingsReader
}

// Launcher corre una herramienta de fase pipeline aislada del proceso del
// escaneo. La implementación de producción re-ejecuta este mismo binario en
// modo exec-tool; los tests inyectan una implementación falsa.
type Launcher interface {
	Launch(ctx context.Context, scan *domain.Scan, tool *domain.Tool, stop ports.StopChecker) error
}

// Sequencer coordina la ejecución de las herramientas de un escaneo:
// primero las individuales, estrictamente en orden de catálogo, y después
// las de fase pipeline. Una herramienta que falla no tumba el escaneo;
// solo un stop del operador o un fallo de la propia secuenciación terminan
// la ejecución antes de tiempo.
type Sequencer struct {
	store    SequencerStore
	control  *control.Controller
	output   *termlog.Broadcaster
	notifier ports.ProbeNotifier
	launcher Launcher
	registry *registry.ExecutorRegistry
	deps     ports.ExecutorDeps
	logger   logx.Logger
	only     map[string]bool
}

// SequencerOptions configura el secuenciador.
type SequencerOptions struct {
	Store    SequencerStore
	Control  *control.Controller
	Output   *termlog.Broadcaster
	Notifier ports.ProbeNotifier

	// Launcher corre las herramientas de fase pipeline en un proceso
	// aparte. Con nil se ejecutan dentro de este mismo proceso.
	Launcher Launcher

	// Registry de ejecutores; nil usa el registro global.
	Registry *registry.ExecutorRegistry

	// Deps con las que se construyen los ejecutores.
	Deps ports.ExecutorDeps

	Logger logx.Logger

	// Only restringe la ejecución a estas herramientas (modo scan de la
	// CLI). Vacío ejecuta todas las habilitadas.
	Only []string
}

// NewSequencer crea un secuenciador.
func NewSequencer(opts SequencerOptions) *Sequencer {
	if opts.Logger == nil {
		opts.Logger = logx.New()
	}
	if opts.Control == nil {
		opts.Control = control.NewController()
	}
	if opts.Output == nil {
		opts.Output = termlog.New(termlog.DefaultCapacity)
	}
	if opts.Notifier == nil {
		opts.Notifier = ports.NoopProbeNotifier{}
	}
	if opts.Registry == nil {
		opts.Registry = registry.Global()
	}
	if opts.Deps.Logger == nil {
		opts.Deps.Logger = opts.Logger
	}

	var only map[string]bool
	if len(opts.Only) > 0 {
		only = make(map[string]bool, len(opts.Only))
		for _, name := range opts.Only {
			only[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	return &Sequencer{
		store:    opts.Store,
		control:  opts.Control,
		output:   opts.Output,
		notifier: opts.Notifier,
		launcher: opts.Launcher,
		registry: opts.Registry,
		deps:     opts.Deps,
		logger:   opts.Logger.With("component", "sequencer"),
		only:     only,
	}
}

// Launch arranca el escaneo en segundo plano y retorna de inmediato. El
// llamante debe haber creado ya la fila del escaneo en estado pending.
func (s *Sequencer) Launch(scanID uint, targetDomain string) {
	go func() {
		if err := s.Run(context.Background(), scanID, targetDomain); err != nil {
			s.logger.Err(err, "scan_id", scanID)
		}
	}()
}

// Run ejecuta el escaneo completo de forma síncrona. Los errores de
// herramienta se absorben; el error retornado solo refleja fallos de la
// propia secuenciación. El estado final queda siempre en la fila del
// escaneo, que es lo que observan los operadores.
func (s *Sequencer) Run(ctx context.Context, scanID uint, targetDomain string) error {
	logger := s.logger.With("scan_id", scanID)
	feed := s.output.Feed(scanID)
	stop := s.control.Handle(scanID)

	scan, err := s.store.Scan(ctx, scanID)
	if err != nil {
		return errors.Wrapf(err, "loading scan %d", scanID)
	}

	// Un pánico en la secuenciación deja el escaneo en failed en vez de
	// tumbar el proceso: el Launch es fire-and-forget y nadie más lo vigila.
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("panic during scan run", "panic", fmt.Sprint(r))
			feed.WriteLine(fmt.Sprintf("Error in orchestrated scan: %v", r))
			s.fail(ctx, scan, logger)
		}
	}()

	individual, pipelines, err := s.plan(ctx)
	if err != nil {
		feed.WriteLine(fmt.Sprintf("Error in orchestrated scan: %v", err))
		s.fail(ctx, scan, logger)
		return err
	}

	total := len(individual) + len(pipelines)
	if total == 0 {
		logger.Warn("no tools enabled")
		feed.WriteLine(fmt.Sprintf("No tools enabled for scan %d, marking as failed", scanID))
		s.fail(ctx, scan, logger)
		return nil
	}

	feed.WriteLine(fmt.Sprintf("Starting scan %d for %s", scanID, targetDomain))
	if len(individual) > 0 {
		feed.WriteLine("Individual tools: " + joinNames(individual))
	}
	if len(pipelines) > 0 {
		feed.WriteLine("Pipeline tools: " + joinNames(pipelines))
	}
	feed.WriteLine("Running tools sequentially...")

	logger.Info("scan started",
		"domain", targetDomain,
		"individual", len(individual),
		"pipeline", len(pipelines),
	)

	scan.Status = domain.ScanStatusRunning
	if scan.StartedAt.IsZero() {
		scan.StartedAt = time.Now().UTC()
	}
	scan.TotalTools = total
	scan.CompletedTools = []string{}
	scan.CurrentTool = nil
	s.persist(ctx, scan, logger)

	if stopped := s.runPhase(ctx, scan, individual, total, false, feed, stop, logger); stopped {
		return nil
	}
	if len(individual) > 0 {
		feed.WriteLine(fmt.Sprintf("All %d individual tools completed for scan %d", len(individual), scanID))
	}
	if stopped := s.runPhase(ctx, scan, pipelines, total, true, feed, stop, logger); stopped {
		return nil
	}

	// Última consulta del flag antes de cerrar: un stop que llegó mientras
	// terminaba la última herramienta debe ganar a la finalización.
	if stop.Stopped() {
		feed.WriteLine(fmt.Sprintf("Stop request detected, stopping scan %d...", scanID))
		s.stopScan(ctx, scan, logger)
		return nil
	}

	scan.CurrentTool = nil
	s.persist(ctx, scan, logger)
	feed.WriteLine(fmt.Sprintf("All enumeration completed for scan %d", scanID))
	s.finalize(ctx, scanID, feed, logger)
	return nil
}

// plan carga el catálogo habilitado y lo parte en fase individual y fase
// pipeline (run_after == "passive"), respetando el filtro Only si existe.
func (s *Sequencer) plan(ctx context.Context) (individual, pipelines []*domain.Tool, err error) {
	enabled, err := s.store.EnabledTools(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading enabled tools")
	}
	for _, tool := range enabled {
		if s.only != nil && !s.only[strings.ToLower(tool.Name)] {
			continue
		}
		if tool.Passive() {
			individual = append(individual, tool)
		} else {
			pipelines = append(pipelines, tool)
		}
	}
	return individual, pipelines, nil
}

// runPhase corre una fase completa de herramientas en orden, con consulta
// del flag de stop antes y después de cada una. Retorna true si el escaneo
// quedó detenido dentro de la fase.
func (s *Sequencer) runPhase(ctx context.Context, scan *domain.Scan, tools []*domain.Tool, total int, pipelinePhase bool, feed *termlog.Feed, stop ports.StopChecker, logger logx.Logger) bool {
	for _, tool := range tools {
		if stop.Stopped() {
			feed.WriteLine(fmt.Sprintf("Stop request detected, stopping scan %d...", scan.ID))
			s.stopScan(ctx, scan, logger)
			return true
		}

		k := len(scan.CompletedTools) + 1
		name := tool.Name
		scan.CurrentTool = &name
		s.persist(ctx, scan, logger)

		var err error
		switch {
		case pipelinePhase && s.launcher != nil:
			feed.WriteLine(fmt.Sprintf("[%d/%d] Running %s (pipeline, separate process)...", k, total, tool.Name))
			err = s.launcher.Launch(ctx, scan, tool, stop)
		case pipelinePhase:
			feed.WriteLine(fmt.Sprintf("[%d/%d] Running %s (pipeline)...", k, total, tool.Name))
			err = s.runTool(ctx, scan, tool, feed, stop)
		default:
			feed.WriteLine(fmt.Sprintf("[%d/%d] Running %s...", k, total, tool.Name))
			err = s.runTool(ctx, scan, tool, feed, stop)
		}
		if err != nil && !errors.IsScanStopped(err) {
			logger.Warn("tool failed", "tool", tool.Name, "error", err.Error())
			feed.WriteLine(fmt.Sprintf("Error running %s: %v", tool.Name, err))
		}

		if stop.Stopped() {
			feed.WriteLine(fmt.Sprintf("Stop request detected after %s, stopping scan %d...", tool.Name, scan.ID))
			s.stopScan(ctx, scan, logger)
			return true
		}

		scan.MarkToolDone(tool.Name)
		feed.WriteLine(fmt.Sprintf("[%d/%d] %s completed", k, total, tool.Name))
	}
	return false
}

// runTool construye el ejecutor del tipo de la herramienta y la corre con
// un lote de hallazgos propio. El ejecutor cierra el lote al terminar; el
// cierre se repite aquí para cubrir sus caminos de error tempranos.
func (s *Sequencer) runTool(ctx context.Context, scan *domain.Scan, tool *domain.Tool, out ports.LineWriter, stop ports.StopChecker) error {
	exec, err := s.registry.Build(tool.Kind, s.deps)
	if err != nil {
		return errors.Wrapf(err, "building %s executor", tool.Kind)
	}

	batch, err := s.store.OpenBatch(ctx, scan.ID)
	if err != nil {
		return errors.Wrapf(err, "opening batch for %s", tool.Name)
	}
	defer batch.Close()

	return exec.Run(ctx, ports.ExecJob{
		Scan:     scan,
		Tool:     tool,
		Batch:    batch,
		Output:   out,
		Settings: s.store,
		Stop:     stop,
		Lister:   s.store,
		Notify:   s.notifier,
	})
}

// stopScan deja el escaneo en stopped y limpia el flag cooperativo. La
// finalización se omite adrede: un stop conserva los contadores tal cual
// quedaron en el momento de la detención.
func (s *Sequencer) stopScan(ctx context.Context, scan *domain.Scan, logger logx.Logger) {
	scan.Status = domain.ScanStatusStopped
	scan.CurrentTool = nil
	if scan.CompletedAt == nil {
		now := time.Now().UTC()
		scan.CompletedAt = &now
	}
	s.persist(ctx, scan, logger)
	s.control.Clear(scan.ID)
	logger.Info("scan stopped", "completed_tools", len(scan.CompletedTools))
}

// fail deja el escaneo en failed con la marca de tiempo de cierre. Los
// escaneos fallidos nunca se finalizan.
func (s *Sequencer) fail(ctx context.Context, scan *domain.Scan, logger logx.Logger) {
	scan.Status = domain.ScanStatusFailed
	scan.CurrentTool = nil
	if scan.CompletedAt == nil {
		now := time.Now().UTC()
		scan.CompletedAt = &now
	}
	s.persist(ctx, scan, logger)
}

// finalize recalcula el recuento de subdominios desde la tabla de enlaces,
// no desde contadores en memoria, y marca el escaneo como completado. La
// fila se relee primero: si un stop concurrente la dejó en stopped, el
// cierre no la toca.
func (s *Sequencer) finalize(ctx context.Context, scanID uint, feed *termlog.Feed, logger logx.Logger) {
	scan, err := s.store.Scan(ctx, scanID)
	if err != nil {
		logger.Warn("reloading scan for finalize", "error", err.Error())
		return
	}
	if scan.Status == domain.ScanStatusStopped {
		logger.Debug("scan stopped, skipping finalize")
		return
	}

	count, err := s.store.CountScanSubdomains(ctx, scanID)
	if err != nil {
		logger.Warn("counting scan subdomains", "error", err.Error())
		return
	}

	scan.SubdomainCount = int(count)
	scan.Status = domain.ScanStatusCompleted
	if scan.CompletedAt == nil {
		now := time.Now().UTC()
		scan.CompletedAt = &now
	}
	s.persist(ctx, scan, logger)

	feed.WriteLine(fmt.Sprintf("Scan %d finalized: %d subdomains found", scanID, count))
	logger.Info("scan finalized", "subdomains", count)
}

// persist escribe el estado del escaneo absorbiendo el error: un fallo
// puntual al actualizar el progreso no debe abortar la secuencia.
func (s *Sequencer) persist(ctx context.Context, scan *domain.Scan, logger logx.Logger) {
	if err := s.store.UpdateScan(ctx, scan); err != nil {
		logger.Warn("updating scan progress", "error", err.Error())
	}
}

func joinNames(tools []*domain.Tool) string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
