// internal/executors/pipeline/pipeline.go

// Package pipeline ejecuta herramientas compuestas por varios comandos
// encadenados al estilo unix: el stdout de cada paso alimenta el stdin del
// siguiente y solo la salida del último paso se procesa como hallazgos.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
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
		domain.ToolKindPipeline,
		func(deps ports.ExecutorDeps) (ports.Executor, error) {
			return New(deps.Logger), nil
		},
		ports.ExecutorMetadata{
			Kind:        domain.ToolKindPipeline,
			Description: "Chains external commands stdout to stdin and harvests the last step",
			Version:     "1.0.0",
		},
	); err != nil {
		logx.New().Warn("failed to register pipeline executor", "error", err.Error())
	}
}

const (
	// commitEvery confirma el lote cada N enlaces nuevos. El lote grande y
	// la pausa posterior evitan saturar la base con herramientas de fuerza
	// bruta que escupen miles de líneas por segundo.
	commitEvery = 25
	flushPause  = 50 * time.Millisecond

	// sampleEvery ecoa al feed una de cada N líneas crudas.
	sampleEvery = 100

	// progressEvery escribe una línea de avance cada N enlaces nuevos.
	progressEvery = 100

	// maxSeen acota el dedup en memoria; por encima manda el upsert de la base.
	maxSeen = 100000

	// preloadLimit evita precargar el dedup con escaneos enormes.
	preloadLimit = 10000

	// terminateGrace plazo entre SIGTERM y SIGKILL al parar la cadena.
	terminateGrace = 1 * time.Second
)

// Executor implementa ports.Executor para herramientas pipeline.
type Executor struct {
	logger logx.Logger
	grace  time.Duration
}

// New crea el ejecutor de herramientas pipeline.
func New(logger logx.Logger) *Executor {
	return &Executor{
		logger: logger.With("executor", "pipeline"),
		grace:  terminateGrace,
	}
}

// Kind retorna el tipo de herramienta que este ejecutor sabe correr.
func (e *Executor) Kind() domain.ToolKind {
	return domain.ToolKindPipeline
}

// runningStep es un paso ya arrancado de la cadena.
type runningStep struct {
	name string
	cmd  *exec.Cmd
}

// Run lanza la cadena de pasos y procesa el stdout del último hasta EOF o
// hasta que el escaneo pida stop.
func (e *Executor) Run(ctx context.Context, job ports.ExecJob) error {
	tool := job.Tool
	spec := tool.Spec
	logger := e.logger.With("tool", tool.Name, "scan_id", job.Scan.ID)

	if len(spec.Steps) == 0 {
		job.Output.WriteLine("No steps configured")
		return errors.Wrapf(domain.ErrInvalidToolSpec, "%s has no steps", tool.Name)
	}

	// Los subdominios ya enlazados sirven de entrada para la cadena y de
	// precarga del dedup.
	hosts, err := job.Lister.ScanHostnames(ctx, job.Scan.ID)
	if err != nil {
		return errors.Wrap(err, "listing scan subdomains")
	}

	inputFile := ""
	if spec.Input == domain.ToolInputScanSubdomains {
		if len(hosts) == 0 {
			job.Output.WriteLine("No subdomains found from passive enumeration, skipping")
			return nil
		}
		job.Output.WriteLine(fmt.Sprintf("Using %d subdomains as input", len(hosts)))

		inputFile, err = writeInputFile(hosts)
		if err != nil {
			return errors.Wrap(err, "writing input file")
		}
		defer os.Remove(inputFile)
	}

	vars := map[string]string{
		"domain":     job.Scan.Domain,
		"input_file": inputFile,
	}
	if err := common.PathVars(ctx, job.Settings, vars); err != nil {
		job.Output.WriteLine(fmt.Sprintf("%s: %v", tool.Label(), err))
		return err
	}

	sink := common.NewSink(job.Batch, job.Output, job.Notify, common.SinkConfig{
		Source:        tool.Name,
		TargetDomain:  job.Scan.Domain,
		CommitEvery:   commitEvery,
		SampleEvery:   sampleEvery,
		ProgressEvery: progressEvery,
		MaxSeen:       maxSeen,
		FlushPause:    flushPause,
	})
	if len(hosts) <= preloadLimit {
		sink.Preload(hosts)
	} else {
		job.Output.WriteLine(fmt.Sprintf("Large dataset detected (%d subdomains), using database-level deduplication", len(hosts)))
	}

	steps, lastOut, stderrWg, err := e.launch(job, vars, logger)
	if err != nil {
		return err
	}

	stopped, scanErr := e.consume(ctx, job, lastOut, sink)

	if stopped {
		job.Output.WriteLine("Stop requested, terminating processes...")
	}
	if stopped || scanErr != nil {
		e.terminateAll(steps, logger)
	}

	// Con la cadena muerta o en EOF los drenajes de stderr terminan solos;
	// Wait puede cerrar sus tuberías sin perder líneas.
	stderrWg.Wait()
	for _, st := range steps {
		if err := st.cmd.Wait(); err != nil && !stopped && scanErr == nil {
			// Los pasos intermedios salen con códigos != 0 de forma rutinaria
			// (grep sin matches, dnsx sin resolver). No es un fallo del tool.
			logger.Debug("step exited with error", "step", st.name, "error", err.Error())
		}
	}

	if scanErr != nil {
		if err := sink.Close(); err != nil {
			logger.Warn("closing sink after failure", "error", err.Error())
		}
		return scanErr
	}
	if err := sink.Close(); err != nil {
		return err
	}

	total := sink.Total()
	job.Output.WriteLine(fmt.Sprintf("%s completed: %d new subdomains", tool.Label(), total))
	logger.Info("pipeline completed", "subdomains", total, "steps", len(steps))

	if stopped {
		return errors.Wrapf(errors.ErrScanStopped, "%s interrupted", tool.Name)
	}
	return nil
}

// launch arranca todos los pasos encadenando el stdout de cada uno con el
// stdin del siguiente. El padre cierra sus copias de cada tubería según
// conecta: así la muerte de un paso propaga EOF al siguiente en vez de
// dejar la cadena colgada.
func (e *Executor) launch(job ports.ExecJob, vars map[string]string, logger logx.Logger) ([]runningStep, io.Reader, *sync.WaitGroup, error) {
	spec := job.Tool.Spec

	var (
		steps    []runningStep
		stderrWg sync.WaitGroup
		carry    *os.File // lectura de la tubería anterior, pendiente de conectar
		lastOut  io.Reader
	)

	// fail desmonta lo ya arrancado tras un fallo de lanzamiento.
	fail := func(files ...*os.File) {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
		if carry != nil {
			carry.Close()
		}
		for _, st := range steps {
			if st.cmd.Process != nil {
				_ = st.cmd.Process.Kill()
			}
		}
		stderrWg.Wait()
		for _, st := range steps {
			_ = st.cmd.Wait()
		}
	}

	for i, step := range spec.Steps {
		name := stepName(step, i)

		argv := common.ExpandArgs(step.Command, vars)
		if len(argv) == 0 || argv[0] == "" {
			fail()
			return nil, nil, nil, errors.Wrapf(domain.ErrInvalidToolSpec, "%s step %s has no command", job.Tool.Name, name)
		}
		if _, err := exec.LookPath(argv[0]); err != nil {
			job.Output.WriteLine(fmt.Sprintf("Tool not found: %s", argv[0]))
			fail()
			return nil, nil, nil, errors.Wrapf(errors.ErrToolNotFound, "%s", argv[0])
		}
		if spec.LowPriority {
			argv = common.NiceArgs(argv)
		}

		cmd := exec.Command(argv[0], argv[1:]...)
		if carry != nil {
			cmd.Stdin = carry
		}

		var read, write *os.File
		if i == len(spec.Steps)-1 {
			pipe, err := cmd.StdoutPipe()
			if err != nil {
				fail()
				return nil, nil, nil, errors.Wrap(err, "creating stdout pipe")
			}
			lastOut = pipe
		} else {
			var err error
			read, write, err = os.Pipe()
			if err != nil {
				fail()
				return nil, nil, nil, errors.Wrap(err, "creating step pipe")
			}
			cmd.Stdout = write
		}

		stderr, err := cmd.StderrPipe()
		if err != nil {
			fail(read, write)
			return nil, nil, nil, errors.Wrap(err, "creating stderr pipe")
		}

		job.Output.WriteLine(fmt.Sprintf("Step %s: %s", name, strings.Join(argv, " ")))
		if err := cmd.Start(); err != nil {
			job.Output.WriteLine(fmt.Sprintf("Failed to start %s: %v", name, err))
			fail(read, write)
			return nil, nil, nil, errors.Wrapf(err, "starting step %s", name)
		}
		logger.Debug("step started", "step", name, "pid", cmd.Process.Pid)

		// El hijo ya tiene sus propios descriptores.
		if carry != nil {
			carry.Close()
		}
		if write != nil {
			write.Close()
		}
		carry = read

		steps = append(steps, runningStep{name: name, cmd: cmd})

		stderrWg.Add(1)
		go func(name string, r io.Reader) {
			defer stderrWg.Done()
			drainStderr(name, r, job.Output)
		}(name, stderr)
	}

	return steps, lastOut, &stderrWg, nil
}

// consume procesa el stdout del último paso línea a línea hasta EOF o stop.
func (e *Executor) consume(ctx context.Context, job ports.ExecJob, out io.Reader, sink *common.Sink) (stopped bool, err error) {
	scanner := bufio.NewScanner(out)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		// La cancelación del contexto cuenta como stop: aquí no hay
		// CommandContext y nadie más va a matar la cadena.
		if job.Stop.Stopped() || ctx.Err() != nil {
			return true, nil
		}

		line := scanner.Text()
		sink.Sample(line)

		clean := validator.CleanHostname(line)
		if clean == "" || strings.HasPrefix(clean, "[") {
			continue
		}
		if _, err := sink.Offer(clean); err != nil {
			return false, err
		}
	}

	if err := scanner.Err(); err != nil {
		e.logger.Warn("scanner error", "tool", job.Tool.Name, "error", err.Error())
	}
	return false, nil
}

// terminateAll apaga la cadena entera: SIGTERM a todos los pasos vivos, una
// única espera compartida y SIGKILL a los que sigan en pie.
func (e *Executor) terminateAll(steps []runningStep, logger logx.Logger) {
	for _, st := range steps {
		if st.cmd.Process == nil {
			continue
		}
		if err := st.cmd.Process.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
			logger.Debug("SIGTERM failed", "step", st.name, "error", err.Error())
		}
	}

	time.Sleep(e.grace)

	for _, st := range steps {
		if st.cmd.Process == nil {
			continue
		}
		if err := st.cmd.Process.Kill(); err != nil && err != os.ErrProcessDone {
			logger.Debug("kill failed", "step", st.name, "error", err.Error())
		}
	}
}

// drainStderr vierte el stderr de un paso al feed, línea a línea y con el
// nombre del paso como prefijo.
func drainStderr(name string, r io.Reader, out ports.LineWriter) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out.ErrLine(fmt.Sprintf("[%s] %s", name, line))
	}
}

// stepName retorna el nombre declarado del paso o uno posicional.
func stepName(step domain.PipelineStep, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("step%d", i)
}

// writeInputFile vuelca los hostnames a un fichero temporal, uno por línea.
func writeInputFile(hosts []string) (string, error) {
	f, err := os.CreateTemp("", "subsentry-input-*.txt")
	if err != nil {
		return "", err
	}

	w := bufio.NewWriter(f)
	for _, h := range hosts {
		fmt.Fprintln(w, h)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
