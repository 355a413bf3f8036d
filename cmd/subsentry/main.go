// cmd/subsentry/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/adapters/export"
	"github.com/lcalzada-xor/subsentry/internal/adapters/probe"
	"github.com/lcalzada-xor/subsentry/internal/adapters/store"
	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/core/usecases"
	"github.com/lcalzada-xor/subsentry/internal/platform/cache"
	"github.com/lcalzada-xor/subsentry/internal/platform/config"
	"github.com/lcalzada-xor/subsentry/internal/platform/control"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
	"github.com/lcalzada-xor/subsentry/internal/platform/ui"
	"github.com/lcalzada-xor/subsentry/internal/server"

	// Los ejecutores se registran en el registro global vía init().
	_ "github.com/lcalzada-xor/subsentry/internal/executors/api"
	_ "github.com/lcalzada-xor/subsentry/internal/executors/cli"
	_ "github.com/lcalzada-xor/subsentry/internal/executors/pipeline"
)

var (
	// Rellenables con -ldflags en build.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Load(version, commit, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: configuration load failed: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := logx.NewWithLevel(logx.ParseLevel(cfg.LogLevel))

	// SIGINT/SIGTERM cancelan el contexto raíz. Cada modo decide cómo
	// traducir esa cancelación: el servidor apaga con gracia, el modo
	// scan la convierte en un stop cooperativo.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var runErr error
	switch cfg.Mode {
	case config.ModeServe:
		runErr = runServe(ctx, cfg, logger)
	case config.ModeScan:
		runErr = runScan(ctx, cfg, logger)
	case config.ModeProbe:
		runErr = runProbe(ctx, cfg, logger)
	case config.ModeExecTool:
		runErr = runExecTool(ctx, cfg, logger)
	}

	if runErr != nil {
		logger.Err(runErr, "mode", string(cfg.Mode))
		os.Exit(1)
	}
}

// runServe arranca el motor completo detrás de la API HTTP.
func runServe(ctx context.Context, cfg config.Config, logger logx.Logger) error {
	logger.Info("SubSentry starting",
		"version", version,
		"commit", commit,
		"date", date,
		"addr", cfg.Server.Addr,
		"driver", cfg.Database.Driver,
	)

	st, err := store.Open(store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedCatalog(ctx, cfg, st, logger); err != nil {
		return err
	}

	ctl := control.NewController()
	output := termlog.New(cfg.Scans.OutputCap)

	probes := newProbeService(cfg, st, logger)
	probes.Start()
	defer probes.Stop()

	notifier := probeNotifier(cfg, probes)

	// Con aislamiento activo las herramientas de fase pipeline corren
	// re-ejecutando este binario en modo exec-tool.
	var launcher usecases.Launcher
	if cfg.Scans.IsolatePipelines {
		launcher = usecases.NewProcessLauncher(usecases.ProcessLauncherConfig{
			ExtraArgs:    childArgs(cfg),
			PollInterval: cfg.PollInterval(),
			Output:       output,
			Notifier:     notifier,
			Logger:       logger,
		})
	}

	seq := usecases.NewSequencer(usecases.SequencerOptions{
		Store:    st,
		Control:  ctl,
		Output:   output,
		Notifier: notifier,
		Launcher: launcher,
		Deps:     executorDeps(logger),
		Logger:   logger,
	})

	srv := server.New(server.Options{
		Store:     st,
		Sequencer: seq,
		Probes:    probes,
		Control:   ctl,
		Output:    output,
		Logger:    logger,
	})
	return srv.Run(ctx, cfg.Server.Addr)
}

// runScan corre un escaneo completo desde la terminal y espera a que
// termine. Ctrl+C pide un stop cooperativo: la herramienta en curso
// termina y el escaneo queda en stopped con sus contadores.
func runScan(ctx context.Context, cfg config.Config, logger logx.Logger) error {
	st, err := store.Open(store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedCatalog(ctx, cfg, st, logger); err != nil {
		return err
	}

	scan := domain.NewScan(cfg.Target)
	if err := scan.Validate(); err != nil {
		return err
	}
	if err := st.CreateScan(ctx, scan); err != nil {
		return err
	}

	ctl := control.NewController()
	output := termlog.New(cfg.Scans.OutputCap)

	probes := newProbeService(cfg, st, logger)
	probes.Start()
	defer probes.Stop()

	seq := usecases.NewSequencer(usecases.SequencerOptions{
		Store:   st,
		Control: ctl,
		Output:  output,
		Deps:    executorDeps(logger),
		Logger:  logger,
		Only:    cfg.OnlyTools,
	})

	presenter := ui.ForWriter(os.Stdout)
	defer presenter.Close()
	presenter.Start(scanInfo(ctx, st, scan, cfg))

	// La señal se traduce en stop cooperativo, no en cancelación: el
	// secuenciador cierra la herramienta en curso y persiste el estado.
	go func() {
		<-ctx.Done()
		presenter.Warning("Stop requested, waiting for the current tool...")
		ctl.RequestStop(scan.ID)
	}()

	pumpCtx, stopPump := context.WithCancel(context.Background())
	pumpDone := pumpFeed(pumpCtx, output, scan.ID, cfg.PollInterval(), presenter)

	start := time.Now()
	runErr := seq.Run(context.Background(), scan.ID, scan.Domain)
	stopPump()
	<-pumpDone

	if runErr != nil {
		presenter.Error(runErr.Error())
		return runErr
	}

	scan, err = st.Scan(context.Background(), scan.ID)
	if err != nil {
		return err
	}

	summary := ui.ScanSummary{
		Status:     scan.Status.String(),
		Duration:   time.Since(start),
		Subdomains: scan.SubdomainCount,
		ToolsDone:  len(scan.CompletedTools),
		ToolsTotal: scan.TotalTools,
	}

	// Lote de sondas único al final del escaneo: determinista y con la
	// barra de progreso, en lugar de sondas sueltas en segundo plano.
	if cfg.Probes.Auto && scan.Status == domain.ScanStatusCompleted {
		summary.ByState = probeScanHosts(context.Background(), st, probes, scan.ID)
	}

	presenter.Finish(summary)

	if cfg.Output != "" {
		if err := exportScan(context.Background(), st, scan.ID, cfg.Output, cfg.Format); err != nil {
			return err
		}
		presenter.Info(fmt.Sprintf("Exported %d subdomains to %s", scan.SubdomainCount, cfg.Output))
	}

	if scan.Status == domain.ScanStatusFailed {
		return errors.Errorf("scan %d failed", scan.ID)
	}
	return nil
}

// runProbe sondea liveness por lotes: un hostname suelto, los de un
// fichero o todo el almacén.
func runProbe(ctx context.Context, cfg config.Config, logger logx.Logger) error {
	st, err := store.Open(store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	hosts, err := probeTargets(ctx, cfg, st)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		fmt.Println("nothing to probe")
		return nil
	}

	probes := newProbeService(cfg, st, logger)
	probes.Start()
	defer probes.Stop()

	bar := ui.NewProgressBar(os.Stdout, "Probing", len(hosts))
	start := time.Now()
	results := probes.ProbeHosts(hosts, func(done, total int) {
		bar.Set(done)
	})
	bar.Finish()

	byState := make(map[string]int)
	for _, r := range results {
		byState[r.State.String()]++
	}

	fmt.Printf("probed %d hosts in %s\n", len(results), time.Since(start).Round(time.Millisecond))
	for _, state := range []domain.OnlineState{
		domain.OnlineStateBoth,
		domain.OnlineStateHTTPS,
		domain.OnlineStateHTTP,
		domain.OnlineStateDNSOnly,
		domain.OnlineStateOffline,
	} {
		if n := byState[state.String()]; n > 0 {
			fmt.Printf("  %-12s %d\n", state.String(), n)
		}
	}
	return nil
}

// runExecTool es el lado hijo del ProcessLauncher: corre una herramienta
// de un escaneo existente y vuelca su feed por stdout. Un stop del padre
// llega como SIGTERM y se traduce en cancelación del contexto.
func runExecTool(ctx context.Context, cfg config.Config, logger logx.Logger) error {
	st, err := store.Open(store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	err = usecases.RunSingleTool(ctx, usecases.SingleToolOptions{
		Store:  st,
		Out:    os.Stdout,
		Deps:   executorDeps(logger),
		Logger: logger,
	}, cfg.ScanID, cfg.ToolName)

	// Un stop cooperativo no es un fallo del hijo.
	if errors.IsScanStopped(err) {
		return nil
	}
	return err
}

// seedCatalog siembra el catálogo inicial si la tabla está vacía. Un
// fichero ausente no es fatal: el catálogo puede vivir ya en la base o
// gestionarse por la API. Un YAML inválido sí lo es.
func seedCatalog(ctx context.Context, cfg config.Config, st *store.Store, logger logx.Logger) error {
	tools, err := store.LoadCatalog(cfg.Tools.ConfigPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("tool catalog not found, skipping seed", "path", cfg.Tools.ConfigPath)
			return nil
		}
		return err
	}
	return st.SeedTools(ctx, tools)
}

func newProbeService(cfg config.Config, st *store.Store, logger logx.Logger) *usecases.ProbeService {
	prober := probe.New(probe.Config{
		Timeout: cfg.ProbeTimeout(),
		Retries: cfg.Probes.Retries,
	}, logger)

	return usecases.NewProbeService(usecases.ProbeServiceOptions{
		Store:   st,
		Prober:  prober,
		Workers: cfg.Probes.Workers,
		JobTTL:  cfg.ProbeJobTTL(),
		Logger:  logger,
	})
}

func probeNotifier(cfg config.Config, probes *usecases.ProbeService) ports.ProbeNotifier {
	if !cfg.Probes.Auto {
		return ports.NoopProbeNotifier{}
	}
	return probes
}

func executorDeps(logger logx.Logger) ports.ExecutorDeps {
	return ports.ExecutorDeps{
		Logger: logger,
		Cache:  cache.NewMemoryCache(256),
	}
}

// childArgs construye los argumentos extra con los que el hijo exec-tool
// replica la conexión del padre.
func childArgs(cfg config.Config) []string {
	return []string{
		"--db.driver", cfg.Database.Driver,
		"--db.dsn", cfg.Database.DSN,
		"--log-level", cfg.LogLevel,
	}
}

// scanInfo reúne los datos de cabecera del modo scan. Los fallos de
// catálogo se toleran: la cabecera sale sin la lista de herramientas y el
// secuenciador reportará el problema real.
func scanInfo(ctx context.Context, st *store.Store, scan *domain.Scan, cfg config.Config) ui.ScanInfo {
	info := ui.ScanInfo{
		Target:  scan.Domain,
		ScanID:  scan.ID,
		Workers: cfg.Probes.Workers,
	}

	enabled, err := st.EnabledTools(ctx)
	if err != nil {
		return info
	}

	only := make(map[string]bool, len(cfg.OnlyTools))
	for _, name := range cfg.OnlyTools {
		only[strings.ToLower(strings.TrimSpace(name))] = true
	}

	for _, tool := range enabled {
		if len(only) > 0 && !only[strings.ToLower(tool.Name)] {
			continue
		}
		if tool.Passive() {
			info.Individual = append(info.Individual, tool.Name)
		} else {
			info.Pipelines = append(info.Pipelines, tool.Name)
		}
	}
	return info
}

// pumpFeed vuelca el feed del broadcaster al presenter con el mismo cursor
// estrictamente posterior que usa la API. Retorna el canal que se cierra
// cuando el vaciado final termina.
func pumpFeed(ctx context.Context, output *termlog.Broadcaster, scanID uint, interval time.Duration, presenter ui.Presenter) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		var cursor time.Time
		drain := func() {
			for _, line := range output.Since(scanID, cursor) {
				presenter.Line(line.Text)
				cursor = line.Timestamp
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			drain()
			select {
			case <-ctx.Done():
				drain()
				return
			case <-ticker.C:
			}
		}
	}()

	return done
}

// probeScanHosts sondea en bloque los subdominios del escaneo y retorna el
// recuento por estado.
func probeScanHosts(ctx context.Context, st *store.Store, probes *usecases.ProbeService, scanID uint) map[string]int {
	hosts, err := st.ScanHostnames(ctx, scanID)
	if err != nil || len(hosts) == 0 {
		return nil
	}

	bar := ui.NewProgressBar(os.Stdout, "Probing", len(hosts))
	results := probes.ProbeHosts(hosts, func(done, total int) {
		bar.Set(done)
	})
	bar.Finish()

	byState := make(map[string]int, len(results))
	for _, r := range results {
		byState[r.State.String()]++
	}
	return byState
}

// exportScan escribe los subdominios del escaneo en el fichero pedido.
func exportScan(ctx context.Context, st *store.Store, scanID uint, path, format string) error {
	exporter, err := export.ForFormat(format)
	if err != nil {
		return err
	}

	subs, err := st.Subdomains(ctx, ports.SubdomainFilter{ScanID: scanID})
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating export file %s", path)
	}
	defer f.Close()

	return exporter.Export(f, subs)
}

// probeTargets resuelve la lista de hostnames del modo probe: --host, el
// contenido de --file o todo el almacén.
func probeTargets(ctx context.Context, cfg config.Config, st *store.Store) ([]string, error) {
	if cfg.Host != "" {
		return []string{cfg.Host}, nil
	}

	if cfg.HostsFile != "" {
		f, err := os.Open(cfg.HostsFile)
		if err != nil {
			return nil, errors.Wrapf(err, "opening hosts file %s", cfg.HostsFile)
		}
		defer f.Close()

		var hosts []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			host := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if host == "" || strings.HasPrefix(host, "#") {
				continue
			}
			hosts = append(hosts, host)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading hosts file %s", cfg.HostsFile)
		}
		return hosts, nil
	}

	return st.AllHostnames(ctx)
}
