// internal/core/usecases/launcher.go
package usecases

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lcalzada-xor/subsentry/internal/core/domain"
	"github.com/lcalzada-xor/subsentry/internal/core/ports"
	"github.com/lcalzada-xor/subsentry/internal/platform/errors"
	"github.com/lcalzada-xor/subsentry/internal/platform/logx"
	"github.com/lcalzada-xor/subsentry/internal/platform/termlog"
)

// Marcadores de control del feed hijo→padre. probeMarker pide al padre que
// encole una sonda de liveness; errMarker reetiqueta la línea como stderr.
const (
	probeMarker = "@probe "
	errMarker   = "@err "
)

// ProcessLauncher corre una herramienta re-ejecutando este binario en modo
// exec-tool. El hijo escribe su feed de terminal por stdout, que el padre
// vuelca al broadcaster; las líneas "@probe <host>" se interceptan y se
// encolan en el pool de sondas del padre en vez de mostrarse.
type ProcessLauncher struct {
	bin      string
	extra    []string
	poll     time.Duration
	grace    time.Duration
	output   *termlog.Broadcaster
	notifier ports.ProbeNotifier
	logger   logx.Logger
}

// ProcessLauncherConfig configura el lanzador de procesos.
type ProcessLauncherConfig struct {
	// Binary es la ruta del ejecutable a relanzar; vacío usa el propio.
	Binary string

	// ExtraArgs se añaden a la invocación del hijo (conexión a la base,
	// ruta del catálogo, nivel de log).
	ExtraArgs []string

	// PollInterval marca cada cuánto se consultan el flag de stop y la
	// vida del hijo.
	PollInterval time.Duration

	// Grace es la espera entre SIGTERM y SIGKILL.
	Grace time.Duration

	Output   *termlog.Broadcaster
	Notifier ports.ProbeNotifier
	Logger   logx.Logger
}

// NewProcessLauncher crea un lanzador de procesos.
func NewProcessLauncher(cfg ProcessLauncherConfig) *ProcessLauncher {
	if cfg.Binary == "" {
		if bin, err := os.Executable(); err == nil {
			cfg.Binary = bin
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Second
	}
	if cfg.Output == nil {
		cfg.Output = termlog.New(termlog.DefaultCapacity)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = ports.NoopProbeNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.New()
	}

	return &ProcessLauncher{
		bin:      cfg.Binary,
		extra:    cfg.ExtraArgs,
		poll:     cfg.PollInterval,
		grace:    cfg.Grace,
		output:   cfg.Output,
		notifier: cfg.Notifier,
		logger:   cfg.Logger.With("component", "launcher"),
	}
}

// Launch corre la herramienta en un proceso hijo y bloquea hasta que
// termina. Un stop del operador envía SIGTERM, espera la gracia y remata
// con SIGKILL; el código de salida del hijo no se considera un fallo de la
// herramienta (su ejecutor ya reportó lo que tuviera que reportar).
func (l *ProcessLauncher) Launch(ctx context.Context, scan *domain.Scan, tool *domain.Tool, stop ports.StopChecker) error {
	if l.bin == "" {
		return errors.Wrap(errors.ErrInvalidInput, "launcher has no binary path")
	}

	args := []string{
		"exec-tool",
		"--scan", strconv.FormatUint(uint64(scan.ID), 10),
		"--tool", tool.Name,
		"--domain", scan.Domain,
	}
	args = append(args, l.extra...)

	cmd := exec.Command(l.bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrapf(err, "piping stdout for %s", tool.Name)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrapf(err, "piping stderr for %s", tool.Name)
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "starting %s child process", tool.Name)
	}

	logger := l.logger.With("tool", tool.Name, "scan_id", scan.ID, "pid", cmd.Process.Pid)
	logger.Debug("tool child started")

	var drains sync.WaitGroup
	drains.Add(2)
	go l.drainFeed(scan.ID, stdout, &drains)
	go l.drainStderr(scan.ID, stderr, &drains)

	// Wait cierra los pipes del hijo; solo puede llamarse cuando los
	// drenajes han visto EOF.
	done := make(chan error, 1)
	go func() {
		drains.Wait()
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				logger.Debug("tool child exited with error", "error", err.Error())
			}
			return nil

		case <-ctx.Done():
			l.terminate(cmd, done, logger)
			return ctx.Err()

		case <-ticker.C:
			if !stop.Stopped() {
				continue
			}
			l.output.Appendf(scan.ID, "Stop requested, terminating %s...", tool.Name)
			l.terminate(cmd, done, logger)
			return nil
		}
	}
}

// terminate envía SIGTERM, espera la gracia y remata con SIGKILL. Siempre
// espera a que el hijo quede cosechado antes de retornar.
func (l *ProcessLauncher) terminate(cmd *exec.Cmd, done <-chan error, logger logx.Logger) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug("signaling tool child", "error", err.Error())
	}
	select {
	case <-done:
		return
	case <-time.After(l.grace):
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Debug("killing tool child", "error", err.Error())
	}
	<-done
}

// drainFeed vuelca el stdout del hijo al broadcaster del escaneo,
// interceptando las líneas de control.
func (l *ProcessLauncher) drainFeed(scanID uint, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, probeMarker):
			host := strings.TrimSpace(strings.TrimPrefix(line, probeMarker))
			if host != "" {
				l.notifier.ProbeAsync(host)
			}
		case strings.HasPrefix(line, errMarker):
			l.output.Append(scanID, strings.TrimPrefix(line, errMarker), termlog.KindStderr)
		default:
			l.output.Append(scanID, line, termlog.KindStdout)
		}
	}
}

// drainStderr vuelca el stderr del hijo, donde viven sus logs, al feed del
// escaneo etiquetado como stderr.
func (l *ProcessLauncher) drainStderr(scanID uint, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()

	capture := termlog.NewCapture(l.output, scanID, termlog.KindStderr, nil)
	_, _ = io.Copy(capture, r)
	_ = capture.Close()
}
