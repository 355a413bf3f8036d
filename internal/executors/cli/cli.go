// internal/executors/cli/cli.go

// Package cli ejecuta herramientas de línea de comandos que imprimen un
// subdominio por línea de stdout, o que escriben sus hallazgos en un
// fichero CSV que se parsea al terminar el proceso.
package cli

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/executors/common"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/registry"
	"github.com/lcalzada-xor/subsentry/internal/platform/validator"
)

// Auto-registro del ejecutor al importar el package
func init() {
	if err := registry.Global().Register(
		domain.ToolKindCLI,
		func(deps ports.ExecutorDeps) (ports.Executor, error) {
			return New(deps.Logger), nil
		},
		ports.ExecutorMetadata{
			Kind:        domain.ToolKindCLI,
			Description: "Runs command line tools that print one subdomain per stdout line",
			Version:     "1.0.0",
		},
	); err != nil {
		logx.New().Warn("failed to register cli executor", "error", err.Error())
	}
}

const (
	// commitEvery confirma el lote cada N enlaces nuevos.
	commitEvery = 10

	// commitEveryCSV las herramientas CSV escupen más filas por hallazgo.
	commitEveryCSV = 20

	// sampleEvery ecoa al feed una de cada N líneas crudas.
	sampleEvery = 100

	// terminateGrace plazo de SIGTERM antes de SIGKILL.
	terminateGrace = 5 * time.Second
)

// csvColumnCandidates son las cabeceras probadas en orden cuando la
// herramienta no declara columna.
var csvColumnCandidates = []string{"Subdomain", "domain", "Domain", "host"}

// Executor implementa ports.Executor para herramientas cli.
type Executor struct {
	logger logx.Logger
	grace  time.Duration
}

// New crea el ejecutor de herramientas cli.
func New(logger logx.Logger) *Executor {
	return &Executor{
		logger: logger.With("executor", "cli"),
		grace:  terminateGrace,
	}
}

// Kind retorna el tipo de herramienta que este ejecutor sabe correr.
func (e *Executor) Kind() domain.ToolKind {
	return domain.ToolKindCLI
}

// Run ejecuta la herramienta del job hasta agotar su salida o hasta que el
// escaneo pida stop. En modo CSV el stdout solo se muestrea; los hallazgos
// se leen del fichero declarado una vez muerto el proceso, también tras un
// stop o timeout, para confirmar lo que la herramienta llegó a escribir.
func (e *Executor) Run(ctx context.Context, job ports.ExecJob) error {
	tool := job.Tool
	logger := e.logger.With("tool", tool.Name, "scan_id", job.Scan.ID)

	argv, vars, err := e.buildArgv(ctx, job)
	if err != nil {
		job.Output.WriteLine(fmt.Sprintf("%s: %v", tool.Label(), err))
		return err
	}

	csvPath := ""
	if tool.Spec.CSVOutput {
		csvPath = common.ExpandString(tool.Spec.OutputFile, vars)
		if csvPath == "" {
			job.Output.WriteLine(fmt.Sprintf("%s has no output file declared", tool.Label()))
			return errors.Wrapf(domain.ErrInvalidToolSpec, "%s csv output without output_file", tool.Name)
		}
	}

	execPath, err := exec.LookPath(argv[0])
	if err != nil {
		job.Output.WriteLine(fmt.Sprintf("Tool not found: %s", argv[0]))
		return errors.Wrapf(errors.ErrToolNotFound, "%s", argv[0])
	}

	if tool.Spec.TimeoutS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(tool.Spec.TimeoutS)*time.Second)
		defer cancel()
	}

	sink := common.NewSink(job.Batch, job.Output, job.Notify, common.SinkConfig{
		Source:       tool.Name,
		TargetDomain: job.Scan.Domain,
		CommitEvery:  e.commitEvery(tool),
		SampleEvery:  sampleEvery,
	})

	logger.Info("executing tool", "exec_path", execPath, "args", argv[1:])

	cmd := exec.CommandContext(ctx, execPath, argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "creating stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "creating stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		job.Output.WriteLine(fmt.Sprintf("Failed to start %s: %v", tool.Label(), err))
		return errors.Wrapf(err, "starting %s", tool.Name)
	}
	logger.Debug("subprocess started", "pid", cmd.Process.Pid)

	// stderr se drena en background para que el proceso no se bloquee; cada
	// línea baja al feed etiquetada como stderr.
	var stderrTail string
	var stderrWg sync.WaitGroup
	stderrWg.Add(1)
	go func() {
		defer stderrWg.Done()
		drainErr(stderr, job.Output, &stderrTail)
	}()

	stopped, scanErr := e.consume(ctx, job, tool, stdout, sink)

	if stopped || scanErr != nil {
		// El proceso sigue vivo con la tubería a medio leer.
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		common.Terminate(cmd.Process, done, e.grace, logger)
		stderrWg.Wait()
		if scanErr == nil && csvPath != "" {
			// Lo que el proceso dejó escrito antes de morir sigue valiendo.
			if err := e.harvestCSV(job, tool, csvPath, sink); err != nil {
				logger.Warn("harvesting csv after stop", "error", err.Error())
			}
		}
		if err := sink.Close(); err != nil {
			logger.Warn("closing sink after interrupt", "error", err.Error())
		}
		if scanErr != nil {
			return scanErr
		}
		return errors.Wrapf(errors.ErrScanStopped, "%s interrupted", tool.Name)
	}

	// Ambas tuberías están en EOF; Wait puede cerrarlas sin perder datos.
	stderrWg.Wait()
	waitErr := cmd.Wait()

	if csvPath != "" {
		if err := e.harvestCSV(job, tool, csvPath, sink); err != nil {
			return err
		}
	}

	if err := sink.Close(); err != nil {
		return err
	}

	// Un exit code != 0 con resultados suele ser solo una fuente caída de la
	// propia herramienta; sin resultados es un fallo real.
	total := sink.Total()
	if waitErr != nil && total == 0 {
		job.Output.WriteLine(fmt.Sprintf("%s exited with error", tool.Label()))
		if tail := errTail(stderrTail); tail != "" {
			return errors.Wrapf(waitErr, "%s failed without results: %s", tool.Name, tail)
		}
		return errors.Wrapf(waitErr, "%s failed without results", tool.Name)
	}

	job.Output.WriteLine(fmt.Sprintf("%s completed: %d subdomains found", tool.Label(), total))
	logger.Info("tool completed", "subdomains", total)
	return nil
}

// consume procesa stdout línea a línea hasta EOF o stop. En modo CSV las
// líneas solo se muestrean: los hallazgos viven en el fichero de salida.
func (e *Executor) consume(ctx context.Context, job ports.ExecJob, tool *domain.Tool, stdout io.Reader, sink *common.Sink) (stopped bool, err error) {
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		if job.Stop.Stopped() {
			return true, nil
		}
		if ctx.Err() != nil {
			// Timeout o cancelación: CommandContext ya está matando el
			// proceso, basta con dejar de leer.
			return false, nil
		}

		line := scanner.Text()
		sink.Sample(line)

		if tool.Spec.CSVOutput {
			continue
		}

		clean := validator.CleanHostname(line)
		if clean == "" || strings.HasPrefix(clean, "[") {
			continue
		}
		if _, err := sink.Offer(clean); err != nil {
			return false, err
		}
	}

	if err := scanner.Err(); err != nil {
		e.logger.Warn("scanner error", "tool", tool.Name, "error", err.Error())
	}
	return false, nil
}

// harvestCSV parsea el fichero de salida de la herramienta y ofrece al sink
// la columna del hostname. Un fichero ausente no es fatal: la política de
// código de salida decide después si el run falló de verdad.
func (e *Executor) harvestCSV(job ports.ExecJob, tool *domain.Tool, path string, sink *common.Sink) error {
	f, err := os.Open(path)
	if err != nil {
		job.Output.WriteLine(fmt.Sprintf("CSV output not found: %s", path))
		e.logger.Debug("csv output missing", "tool", tool.Name, "path", path)
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		job.Output.WriteLine(fmt.Sprintf("CSV output unreadable: %s", path))
		return nil
	}
	idx := resolveCSVColumn(header, tool.Spec.CSVColumn)

	for {
		record, err := r.Read()
		if err != nil {
			// EOF o una última fila truncada por un kill: lo leído vale.
			break
		}
		if idx >= len(record) {
			continue
		}
		if _, err := sink.Offer(strings.TrimSpace(record[idx])); err != nil {
			return err
		}
	}
	return nil
}

// drainErr baja el stderr de la herramienta al feed línea a línea y guarda
// la última no vacía para el mensaje de fallo.
func drainErr(r io.Reader, out ports.LineWriter, tail *string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out.ErrLine(line)
		*tail = line
	}
}

// errTail normaliza la cola de stderr para incrustarla en un error.
func errTail(tail string) string {
	tail = strings.TrimSpace(validator.StripANSI(tail))
	if len(tail) > 2048 {
		tail = tail[:2048]
	}
	return tail
}

// buildArgv expande placeholders del comando. Las rutas de wordlists y de
// ficheros de entrada se cargan de settings por prefijo; un placeholder sin
// valor queda literal y es la propia herramienta quien lo rechaza.
func (e *Executor) buildArgv(ctx context.Context, job ports.ExecJob) ([]string, map[string]string, error) {
	command := job.Tool.Spec.Command
	if len(command) == 0 {
		return nil, nil, errors.Wrapf(domain.ErrInvalidToolSpec, "%s has no command", job.Tool.Name)
	}

	vars := map[string]string{"domain": job.Scan.Domain}
	if err := common.PathVars(ctx, job.Settings, vars); err != nil {
		return nil, nil, err
	}

	return common.ExpandArgs(command, vars), vars, nil
}

func (e *Executor) commitEvery(tool *domain.Tool) int {
	if tool.Spec.CSVOutput {
		return commitEveryCSV
	}
	return commitEvery
}

func resolveCSVColumn(header []string, preferred string) int {
	candidates := csvColumnCandidates
	if preferred != "" {
		candidates = append([]string{preferred}, candidates...)
	}

	for _, want := range candidates {
		for i, cell := range header {
			if strings.TrimSpace(cell) == want {
				return i
			}
		}
	}
	return 0
}
